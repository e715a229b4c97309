package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/miladsoleymani/coworkers/transport"
)

// decision is the ack/nack choice a middleware records on a Context for the
// Responder to act on once the pipeline finishes.
type decision int

const (
	decisionNone decision = iota
	decisionAck
	decisionNack
)

// Context is the per-message bundle exposed to middleware, created fresh for every
// inbound delivery and discarded once the Responder finishes with it. It holds a
// non-owning back-reference to the Application: the Application outlives every
// Context by construction, so Context never needs to manage that lifetime.
type Context struct {
	ctx      context.Context
	app      *Application
	queue    string
	delivery transport.Delivery

	mu       sync.RWMutex
	store    map[string]any
	decision decision
	requeue  bool
	reply    *transport.Message
	replyKey string
}

func newContext(ctx context.Context, app *Application, queue string, d transport.Delivery) *Context {
	return &Context{
		ctx:      ctx,
		app:      app,
		queue:    queue,
		delivery: d,
		store:    make(map[string]any),
	}
}

// NewContext builds a Context outside of a live Application, for middleware unit
// tests and for the Application's own handler factory. app may be nil.
func NewContext(ctx context.Context, app *Application, queue string, d transport.Delivery) *Context {
	return newContext(ctx, app, queue, d)
}

// Context returns the underlying context.Context: the context.Background() the
// message handler starts each delivery with, unless middleware replaced it with
// SetContext.
func (c *Context) Context() context.Context { return c.ctx }

// SetContext replaces the underlying context.Context. Middleware that enriches the
// context with values or a deadline should call this before calling next.
func (c *Context) SetContext(ctx context.Context) { c.ctx = ctx }

// Queue returns the name of the queue this message was received on.
func (c *Context) Queue() string { return c.queue }

// App returns the Application this Context was dispatched from, the
// non-owning back-reference of spec §9's design note. Middleware that needs
// a collaborator the Context itself doesn't expose (the schema registry,
// for instance) reaches it through here rather than the core growing a
// forwarding method for every collaborator.
func (c *Context) App() *Application { return c.app }

// DeliveryTag returns the broker-assigned delivery tag of the inbound
// message, the identifier Ack/Nack correlate against on the wire.
func (c *Context) DeliveryTag() uint64 { return c.delivery.DeliveryTag }

// Message returns the raw inbound message: content bytes plus broker envelope
// fields.
func (c *Context) Message() transport.Message { return c.delivery.Message }

// Body returns the raw message body.
func (c *Context) Body() []byte { return c.delivery.Message.Body }

// Header returns a single header value by key.
func (c *Context) Header(key string) string { return c.delivery.Message.Headers[key] }

// Headers returns all message headers.
func (c *Context) Headers() map[string]string { return c.delivery.Message.Headers }

// Redelivered reports whether the broker marked this delivery as a redelivery.
func (c *Context) Redelivered() bool { return c.delivery.Redelivered }

// Bind deserializes the message body as JSON into v.
func (c *Context) Bind(v any) error {
	if err := json.Unmarshal(c.delivery.Message.Body, v); err != nil {
		return fmt.Errorf("coworkers: bind: %w", err)
	}
	return nil
}

// Ack records an ack decision. It is the default if no middleware records any
// decision at all.
func (c *Context) Ack() {
	c.mu.Lock()
	c.decision = decisionAck
	c.mu.Unlock()
}

// Nack records a nack decision. requeue controls whether the broker redelivers the
// message or drops it.
func (c *Context) Nack(requeue bool) {
	c.mu.Lock()
	c.decision = decisionNack
	c.requeue = requeue
	c.mu.Unlock()
}

// Reply sets a message to be published back to the original caller, using the
// inbound message's ReplyTo as the routing key unless routingKey overrides it.
// Replying also acks the inbound message; see Responder.
func (c *Context) Reply(msg transport.Message, routingKey ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.CorrelationID == "" {
		msg.CorrelationID = c.delivery.Message.CorrelationID
	}
	c.reply = &msg
	if len(routingKey) > 0 && routingKey[0] != "" {
		c.replyKey = routingKey[0]
	} else {
		c.replyKey = c.delivery.Message.ReplyTo
	}
}

// Set stores a key-value pair in the context store, for passing data to
// downstream middleware.
func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	c.store[key] = val
	c.mu.Unlock()
}

// Get retrieves a value previously stored with Set.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.store[key]
	return val, ok
}

// snapshot reads the pending ack/nack/reply decision under lock, for the
// Responder.
func (c *Context) snapshot() (decision, bool, *transport.Message, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decision, c.requeue, c.reply, c.replyKey
}
