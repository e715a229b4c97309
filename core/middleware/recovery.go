package middleware

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/miladsoleymani/coworkers/core"
)

// Recovery returns middleware that recovers from panics in downstream
// middleware and handlers, logs the stack trace tagged with the delivery's
// queue, tag, and redelivery status, and returns the panic as an error so the
// pipeline unwinds normally instead of crashing the consume loop.
//
// A panic on a delivery the broker has marked as redelivered is treated as a
// poison message instead: Recovery nacks it without requeue and swallows the
// panic rather than handing the broker a delivery that would panic forever.
// The decision rests on the Redelivered flag alone; Recovery keeps no record
// of whether an earlier attempt panicked.
func Recovery() core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Printf("[coworkers] PANIC recovered queue=%s tag=%d redelivered=%t: %v\n%s",
						c.Queue(), c.DeliveryTag(), c.Redelivered(), r, buf[:n])

					if c.Redelivered() {
						c.Nack(false)
						return
					}
					err = fmt.Errorf("coworkers: panic recovered on queue %q (delivery %d): %v", c.Queue(), c.DeliveryTag(), r)
				}
			}()
			return next(ctx, c)
		}
	}
}
