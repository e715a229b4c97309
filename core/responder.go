package core

import (
	"fmt"

	"github.com/miladsoleymani/coworkers/transport"
)

// respond reads c's post-pipeline decision and issues exactly one of ack, nack, or
// (if a reply was set) a publish followed by an ack, per spec §4.4. Exactly one
// decision is made per message; if none was recorded by middleware, the default is
// ack. Transport failures here are reported to the Application's error sink but do
// not fail the caller: the broker's own redelivery handles consistency for an
// ack/nack that didn't make it through.
func (app *Application) respond(c *Context) {
	d, requeue, reply, replyKey := c.snapshot()

	consumerCh := app.consumerChannelHandle()
	if consumerCh == nil {
		return
	}

	if reply != nil {
		publisherCh := app.publisherChannelHandle()
		if publisherCh != nil {
			if err := publisherCh.Publish(c.Context(), *reply, transport.PublishOptions{RoutingKey: replyKey}); err != nil {
				app.emitError(fmt.Errorf("coworkers: publish reply: %w", err), c)
			}
		}
		if err := consumerCh.Ack(c.delivery.DeliveryTag, false); err != nil {
			app.emitError(fmt.Errorf("coworkers: ack after reply: %w", err), c)
		}
		return
	}

	switch d {
	case decisionNack:
		if err := consumerCh.Nack(c.delivery.DeliveryTag, false, requeue); err != nil {
			app.emitError(fmt.Errorf("coworkers: nack: %w", err), c)
		}
	default: // decisionAck or decisionNone (default ack)
		if err := consumerCh.Ack(c.delivery.DeliveryTag, false); err != nil {
			app.emitError(fmt.Errorf("coworkers: ack: %w", err), c)
		}
	}
}
