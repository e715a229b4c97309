package core_test

import (
	"context"
	"testing"

	"github.com/miladsoleymani/coworkers/core"
	"github.com/miladsoleymani/coworkers/transport"
)

// TestResponder_DefaultIsAck verifies spec's "no decision recorded" default:
// a handler that returns nil without calling Ack/Nack still acks.
func TestResponder_DefaultIsAck(t *testing.T) {
	ta := newTestApp(t)
	done := make(chan struct{})
	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				defer close(done)
				return nil
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	ch := ta.dialer.Channels[0]
	if len(ch.Acked) != 1 {
		t.Errorf("expected exactly one ack, got %d", len(ch.Acked))
	}
	if len(ch.Nacked) != 0 {
		t.Errorf("expected no nacks, got %d", len(ch.Nacked))
	}
}

// TestResponder_ExplicitNack verifies a handler calling Nack(requeue) produces
// exactly one nack with that requeue flag, and no ack.
func TestResponder_ExplicitNack(t *testing.T) {
	ta := newTestApp(t)
	done := make(chan struct{})
	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				defer close(done)
				c.Nack(true)
				return nil
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	ch := ta.dialer.Channels[0]
	if len(ch.Acked) != 0 {
		t.Errorf("expected no acks, got %d", len(ch.Acked))
	}
	if len(ch.Nacked) != 1 || !ch.Nacked[0].Requeue {
		t.Errorf("expected one requeueing nack, got %+v", ch.Nacked)
	}
}

// TestResponder_ReplyPublishesThenAcks verifies Reply publishes to the
// publisher channel (using the inbound ReplyTo as routing key by default) and
// then acks the inbound delivery.
func TestResponder_ReplyPublishesThenAcks(t *testing.T) {
	ta := newTestApp(t)
	done := make(chan struct{})
	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				defer close(done)
				c.Reply(transport.Message{Body: []byte("ok")})
				return nil
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	orig := transport.Delivery{Message: transport.Message{Body: []byte("payload"), ReplyTo: "orders.reply"}}
	ta.dialer.Deliver("orders", orig)
	waitOrTimeout(t, done)

	consumerCh := ta.dialer.Channels[0]
	publisherCh := ta.dialer.Channels[1]

	if len(publisherCh.Published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(publisherCh.Published))
	}
	if publisherCh.Published[0].Opts.RoutingKey != "orders.reply" {
		t.Errorf("routing key = %q, want %q", publisherCh.Published[0].Opts.RoutingKey, "orders.reply")
	}
	if len(consumerCh.Acked) != 1 {
		t.Errorf("expected reply to ack the inbound delivery, got %d acks", len(consumerCh.Acked))
	}
}

// TestResponder_SkippedOnPipelineFailure verifies spec §4.3 step 5: a pipeline
// error means no ack/nack decision is made at all, leaving redelivery to the
// broker unless middleware like NackOnError intervenes.
func TestResponder_SkippedOnPipelineFailure(t *testing.T) {
	var sinkCalled bool
	done := make(chan struct{})
	ta := newTestApp(t, core.WithErrorSink(func(err error, c *core.Context) {
		sinkCalled = true
		close(done)
	}))

	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				return errFailing
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	if !sinkCalled {
		t.Fatal("expected the error sink to be invoked")
	}
	ch := ta.dialer.Channels[0]
	if len(ch.Acked) != 0 || len(ch.Nacked) != 0 {
		t.Errorf("expected no ack/nack on pipeline failure, got acked=%d nacked=%d", len(ch.Acked), len(ch.Nacked))
	}
}

var errFailing = &mockErr{"handler failed"}
