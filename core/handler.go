package core

import (
	"context"

	"github.com/miladsoleymani/coworkers/transport"
)

// messageHandler returns the transport.DeliveryFunc bound to queueName: for every
// delivery, it builds a fresh Context, runs the flattened global+queue middleware
// pipeline over it, and on success calls the Responder. On pipeline failure it
// emits an error event instead of calling the Responder, leaving the
// acknowledgement decision to whatever error-handler middleware the caller
// installed first (spec §4.3 step 5): the core chooses no default ack/nack on an
// unhandled error, to preserve at-least-once delivery.
func (app *Application) messageHandler(queueName string) transport.DeliveryFunc {
	entry, ok := app.registry.entry(queueName)
	if !ok {
		// No entry is registered under queueName; nothing to dispatch to.
		return func(transport.Delivery) {}
	}

	mws := make([]Middleware, 0, len(app.registry.globalMiddleware())+len(entry.Middleware))
	mws = append(mws, app.registry.globalMiddleware()...)
	mws = append(mws, entry.Middleware...)

	return func(d transport.Delivery) {
		ctx := context.Background()
		mc := newContext(ctx, app, queueName, d)

		if err := runPipeline(ctx, mc, mws); err != nil {
			app.emitError(err, mc)
			return
		}
		app.respond(mc)
	}
}
