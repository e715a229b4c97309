// Package mock provides test doubles for the transport collaborator, in the style
// of the retrieved eventmux sources' internal/mock/broker.go: a small, introspectable
// fake the core's own tests drive directly, instead of a generated mock.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/miladsoleymani/coworkers/transport"
)

// Dialer is a test double for transport.Dialer. It records every call so tests can
// assert on dial/open/assert/cancel ordering and inject failures at any step.
type Dialer struct {
	mu sync.Mutex

	DialErr             error
	OpenChannelErr      error
	AssertAndConsumeErr error
	CancelConsumerErr   error

	// DialDelay, if set, is slept through at the start of Dial, so tests can
	// race a Close against a slow-to-resolve Connect.
	DialDelay time.Duration

	Dialed          []string
	ChannelsOpened  int
	Channels        []*Channel
	Asserted        []string
	Cancelled       []transport.ConsumerTag
	nextConsumerTag int

	deliverFuncs map[string]transport.DeliveryFunc
}

// NewDialer creates an empty mock Dialer.
func NewDialer() *Dialer {
	return &Dialer{deliverFuncs: make(map[string]transport.DeliveryFunc)}
}

func (d *Dialer) Dial(_ context.Context, url string, _ transport.SocketOptions) (transport.Connection, error) {
	if d.DialDelay > 0 {
		time.Sleep(d.DialDelay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	d.Dialed = append(d.Dialed, url)
	return &Connection{}, nil
}

func (d *Dialer) OpenChannel(_ context.Context, _ transport.Connection) (transport.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenChannelErr != nil {
		return nil, d.OpenChannelErr
	}
	d.ChannelsOpened++
	ch := NewChannel()
	d.Channels = append(d.Channels, ch)
	return ch, nil
}

func (d *Dialer) AssertAndConsume(_ context.Context, ch transport.Channel, queue string, _ transport.QueueOptions, _ transport.ConsumeOptions, deliver transport.DeliveryFunc) (transport.ConsumerTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AssertAndConsumeErr != nil {
		return "", d.AssertAndConsumeErr
	}
	d.Asserted = append(d.Asserted, queue)
	d.nextConsumerTag++
	tag := transport.ConsumerTag(fmt.Sprintf("tag-%d", d.nextConsumerTag))
	d.deliverFuncs[queue] = deliver
	if mc, ok := ch.(*Channel); ok {
		mc.registerConsumer(tag, deliver)
	}
	return tag, nil
}

func (d *Dialer) CancelConsumer(_ context.Context, _ transport.Channel, tag transport.ConsumerTag) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CancelConsumerErr != nil {
		return d.CancelConsumerErr
	}
	d.Cancelled = append(d.Cancelled, tag)
	return nil
}

// Deliver simulates an inbound delivery for queue, invoking the DeliveryFunc
// AssertAndConsume recorded for it.
func (d *Dialer) Deliver(queue string, delivery transport.Delivery) {
	d.mu.Lock()
	deliver, ok := d.deliverFuncs[queue]
	d.mu.Unlock()
	if !ok {
		return
	}
	deliver(delivery)
}

// Connection is a no-op test double for transport.Connection.
type Connection struct {
	mu     sync.Mutex
	closed bool
	Err    error
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.closed = true
	return nil
}

func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Channel is a test double for transport.Channel that records published,
// acked, and nacked messages for assertions.
type Channel struct {
	mu sync.Mutex

	CloseErr   error
	PublishErr error
	AckErr     error
	NackErr    error

	// CloseDelay, if set, is slept through at the start of Close, so tests can
	// race a Connect against a slow-to-resolve Close.
	CloseDelay time.Duration

	closed    bool
	Published []PublishedMessage
	Acked     []uint64
	Nacked    []NackedMessage

	consumers map[transport.ConsumerTag]transport.DeliveryFunc
}

// PublishedMessage records a single Publish call.
type PublishedMessage struct {
	Message transport.Message
	Opts    transport.PublishOptions
}

// NackedMessage records a single Nack call.
type NackedMessage struct {
	DeliveryTag uint64
	Requeue     bool
}

// NewChannel creates an empty mock Channel.
func NewChannel() *Channel {
	return &Channel{consumers: make(map[transport.ConsumerTag]transport.DeliveryFunc)}
}

func (c *Channel) registerConsumer(tag transport.ConsumerTag, deliver transport.DeliveryFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumers[tag] = deliver
}

func (c *Channel) Close() error {
	if c.CloseDelay > 0 {
		time.Sleep(c.CloseDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CloseErr != nil {
		return c.CloseErr
	}
	c.closed = true
	return nil
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) Publish(_ context.Context, msg transport.Message, opts transport.PublishOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.Published = append(c.Published, PublishedMessage{Message: msg, Opts: opts})
	return nil
}

func (c *Channel) Ack(deliveryTag uint64, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AckErr != nil {
		return c.AckErr
	}
	c.Acked = append(c.Acked, deliveryTag)
	return nil
}

func (c *Channel) Nack(deliveryTag uint64, _ bool, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.NackErr != nil {
		return c.NackErr
	}
	c.Nacked = append(c.Nacked, NackedMessage{DeliveryTag: deliveryTag, Requeue: requeue})
	return nil
}
