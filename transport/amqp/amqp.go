// Package amqp implements transport.Dialer on top of RabbitMQ's amqp091-go client.
//
// Design decisions, carried from the original rabbitmq plugin this is adapted from:
//   - Manual ack mode — consumers must call Ack() or Nack() explicitly.
//   - One amqp.Connection, many amqp.Channel: one per consumerChannel/publisherChannel
//     slot the core opens, per spec.
//   - Consumer cancellation by tag, so the core can tear down a single queue's
//     subscription without closing the whole channel.
package amqp

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/miladsoleymani/coworkers/transport"
)

// Dialer is the AMQP 0-9-1 transport.Dialer implementation.
type Dialer struct{}

// New returns an AMQP transport.Dialer.
func New() transport.Dialer { return Dialer{} }

type connection struct {
	conn *amqp.Connection
}

func (c *connection) Close() error { return c.conn.Close() }

// Dial opens a connection to the broker at url. socketOpts.Heartbeat and
// socketOpts.TLSConfig are forwarded to amqp091-go's dial config when set.
func (Dialer) Dial(_ context.Context, url string, socketOpts transport.SocketOptions) (transport.Connection, error) {
	cfg := amqp.Config{}
	if socketOpts.Heartbeat > 0 {
		cfg.Heartbeat = socketOpts.Heartbeat
	}
	if socketOpts.TLSConfig != nil {
		cfg.TLSClientConfig = socketOpts.TLSConfig
	}

	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, fmt.Errorf("coworkers/amqp: dial %q: %w", url, err)
	}
	return &connection{conn: conn}, nil
}

type channel struct {
	ch *amqp.Channel
	mu sync.Mutex
}

func (Dialer) OpenChannel(_ context.Context, conn transport.Connection) (transport.Channel, error) {
	c, ok := conn.(*connection)
	if !ok {
		return nil, fmt.Errorf("coworkers/amqp: OpenChannel called with a foreign Connection")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("coworkers/amqp: open channel: %w", err)
	}
	return &channel{ch: ch}, nil
}

func (c *channel) Close() error { return c.ch.Close() }

func (c *channel) Publish(ctx context.Context, msg transport.Message, opts transport.PublishOptions) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	err := c.ch.PublishWithContext(ctx, opts.Exchange, opts.RoutingKey, false, false, amqp.Publishing{
		Body:          msg.Body,
		Headers:       headers,
		ContentType:   msg.ContentType,
		ReplyTo:       msg.ReplyTo,
		CorrelationId: msg.CorrelationID,
	})
	if err != nil {
		return fmt.Errorf("coworkers/amqp: publish to %q: %w", opts.RoutingKey, err)
	}
	return nil
}

func (c *channel) Ack(deliveryTag uint64, multiple bool) error {
	if err := c.ch.Ack(deliveryTag, multiple); err != nil {
		return fmt.Errorf("coworkers/amqp: ack: %w", err)
	}
	return nil
}

func (c *channel) Nack(deliveryTag uint64, multiple, requeue bool) error {
	if err := c.ch.Nack(deliveryTag, multiple, requeue); err != nil {
		return fmt.Errorf("coworkers/amqp: nack: %w", err)
	}
	return nil
}

// AssertAndConsume declares the named queue with qOpts, sets the channel's prefetch
// count when cOpts.PrefetchCount is non-zero, and attaches deliver as the consume
// callback, translating each amqp.Delivery into a transport.Delivery.
func (Dialer) AssertAndConsume(_ context.Context, ch transport.Channel, queue string, qOpts transport.QueueOptions, cOpts transport.ConsumeOptions, deliver transport.DeliveryFunc) (transport.ConsumerTag, error) {
	c, ok := ch.(*channel)
	if !ok {
		return "", fmt.Errorf("coworkers/amqp: AssertAndConsume called with a foreign Channel")
	}

	args := amqp.Table{}
	for k, v := range qOpts.Args {
		args[k] = v
	}

	q, err := c.ch.QueueDeclare(queue, qOpts.Durable, qOpts.AutoDelete, qOpts.Exclusive, false, args)
	if err != nil {
		return "", fmt.Errorf("coworkers/amqp: declare queue %q: %w", queue, err)
	}

	if cOpts.PrefetchCount > 0 {
		if err := c.ch.Qos(cOpts.PrefetchCount, 0, false); err != nil {
			return "", fmt.Errorf("coworkers/amqp: set qos for %q: %w", queue, err)
		}
	}

	consumerTag := "coworkers-" + uuid.NewString()

	deliveries, err := c.ch.Consume(q.Name, consumerTag, false, cOpts.Exclusive, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("coworkers/amqp: consume %q: %w", queue, err)
	}

	go func() {
		for d := range deliveries {
			deliver(transport.Delivery{
				Message: transport.Message{
					Body:          d.Body,
					Headers:       stringHeaders(d.Headers),
					ContentType:   d.ContentType,
					ReplyTo:       d.ReplyTo,
					CorrelationID: d.CorrelationId,
				},
				DeliveryTag: d.DeliveryTag,
				Redelivered: d.Redelivered,
			})
		}
	}()

	return transport.ConsumerTag(consumerTag), nil
}

func (Dialer) CancelConsumer(_ context.Context, ch transport.Channel, tag transport.ConsumerTag) error {
	c, ok := ch.(*channel)
	if !ok {
		return fmt.Errorf("coworkers/amqp: CancelConsumer called with a foreign Channel")
	}
	if err := c.ch.Cancel(string(tag), false); err != nil {
		return fmt.Errorf("coworkers/amqp: cancel consumer %q: %w", tag, err)
	}
	return nil
}

func stringHeaders(h amqp.Table) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
