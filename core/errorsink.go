package core

import "log"

// defaultErrorSink logs unhandled pipeline and responder failures via the
// standard library logger, the way the teacher's core/middleware.Logging and
// Recovery middleware log — the core itself emits no other developer-facing
// output (spec §1 scopes developer-facing logging out, but an error sink with no
// default destination would silently swallow exactly the failures spec §7 says
// must never be silently swallowed).
func defaultErrorSink(err error, c *Context) {
	if c != nil {
		log.Printf("[coworkers] queue=%s error=%v", c.Queue(), err)
		return
	}
	log.Printf("[coworkers] error=%v", err)
}
