package middleware

import (
	"context"

	"github.com/miladsoleymani/coworkers/core"
)

// NackOnError returns middleware that records a nack decision (requeueing if
// requeue is true) and swallows the error when a downstream middleware or handler
// fails, so the pipeline still completes successfully and the Responder carries
// out the nack.
//
// Without this, the core's default on an unhandled pipeline error is to make no
// ack/nack decision at all (spec §9 design note): the Responder is never invoked
// on a pipeline failure, relying on the broker to redeliver after channel loss.
// This template is the documented opt-in for callers who want an explicit nack
// instead; it does not change that default, and must be installed as the first
// (outermost) middleware to see errors from everything after it.
func NackOnError(requeue bool) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			if err := next(ctx, c); err != nil {
				c.Nack(requeue)
			}
			return nil
		}
	}
}
