// Package transport defines the broker-agnostic collaborator the core lifecycle
// coordinator drives. A concrete implementation (transport/amqp) speaks AMQP 0-9-1;
// tests drive the core against internal/mock instead.
package transport

import (
	"context"
	"crypto/tls"
	"time"
)

// Message is a broker-agnostic envelope for both inbound deliveries and outbound
// publishes.
type Message struct {
	Body          []byte
	Headers       map[string]string
	ContentType   string
	ReplyTo       string
	CorrelationID string
}

// QueueOptions configures queue assertion. A schema collaborator that owns a queue's
// assertion options supplies these instead of the caller.
type QueueOptions struct {
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Args       map[string]any
}

// ConsumeOptions configures how a queue is consumed.
type ConsumeOptions struct {
	PrefetchCount int
	Exclusive     bool
	Args          map[string]any
}

// SocketOptions configures the underlying dial, independent of the broker URL.
type SocketOptions struct {
	Heartbeat time.Duration
	TLSConfig *tls.Config
}

// PublishOptions configures an outbound publish, used by the Responder when a
// middleware sets a reply.
type PublishOptions struct {
	Exchange   string
	RoutingKey string
}

// ConsumerTag is the opaque identifier of a live consumer binding, as returned by
// Dialer.AssertAndConsume, recorded so it can be cancelled later.
type ConsumerTag string

// Delivery is a single inbound message together with its delivery tag and
// redelivery flag; it is acked or nacked through the Channel it arrived on, by
// that tag.
type Delivery struct {
	Message     Message
	DeliveryTag uint64
	Redelivered bool
}

// DeliveryFunc is invoked by the transport for every inbound message on a queue.
type DeliveryFunc func(Delivery)

// Connection is a live broker connection.
type Connection interface {
	Close() error
}

// Channel is a logical session on a Connection, used for either consuming or
// publishing (the core opens one of each).
type Channel interface {
	Close() error
	Publish(ctx context.Context, msg Message, opts PublishOptions) error
	Ack(deliveryTag uint64, multiple bool) error
	Nack(deliveryTag uint64, multiple, requeue bool) error
}

// Dialer is the transport collaborator described in spec §6: it owns every
// broker-facing call the lifecycle coordinator issues.
type Dialer interface {
	Dial(ctx context.Context, url string, socketOpts SocketOptions) (Connection, error)
	OpenChannel(ctx context.Context, conn Connection) (Channel, error)
	AssertAndConsume(ctx context.Context, ch Channel, queue string, qOpts QueueOptions, cOpts ConsumeOptions, deliver DeliveryFunc) (ConsumerTag, error)
	CancelConsumer(ctx context.Context, ch Channel, tag ConsumerTag) error
}
