package middleware

import (
	"context"

	"github.com/miladsoleymani/coworkers/core"
)

// SchemaValidate returns middleware that validates an inbound message's body
// against the Application's schema collaborator (if one is configured)
// before running the rest of the pipeline. A violation is recorded as a nack
// without requeue and swallowed, the same way NackOnError swallows a
// downstream failure, so a payload the schema rejects doesn't loop forever
// being redelivered against a handler that will always reject it.
//
// An Application with no schema collaborator configured, or a queue the
// schema has no entry for, passes every message through unchanged, so this
// is safe to install on any queue regardless of whether a schema is in use.
func SchemaValidate() core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			app := c.App()
			if app == nil {
				return next(ctx, c)
			}
			registry := app.SchemaRegistry()
			if registry == nil {
				return next(ctx, c)
			}
			if err := registry.Validate(c.Queue(), c.Body()); err != nil {
				c.Nack(false)
				return nil
			}
			return next(ctx, c)
		}
	}
}
