package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miladsoleymani/coworkers/core"
	"github.com/miladsoleymani/coworkers/internal/mock"
	"github.com/miladsoleymani/coworkers/transport"
)

// testApp wires an Application to a mock.Dialer and connects it, so pipeline
// tests can deliver messages the way the transport collaborator would.
type testApp struct {
	app    *core.Application
	dialer *mock.Dialer
}

func newTestApp(t *testing.T, opts ...core.Option) *testApp {
	t.Helper()
	dialer := mock.NewDialer()
	app := core.New(dialer, core.Config{Cluster: false, QueueName: "orders"}, opts...)
	return &testApp{app: app, dialer: dialer}
}

func (ta *testApp) connect(t *testing.T) {
	t.Helper()
	if err := ta.app.Connect(context.Background(), "amqp://test", transport.SocketOptions{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		_ = ta.app.Close(context.Background())
	})
}

func (ta *testApp) deliver(queue string, body []byte) {
	ta.dialer.Deliver(queue, transport.Delivery{Message: transport.Message{Body: body}})
}

func orderingMiddleware(name string, order *[]string) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			*order = append(*order, name+":before")
			err := next(ctx, c)
			*order = append(*order, name+":after")
			return err
		}
	}
}

// TestPipeline_Ordering verifies the two-phase downstream/upstream traversal
// (scenario S1): middleware enter in registration order and exit in reverse.
func TestPipeline_Ordering(t *testing.T) {
	ta := newTestApp(t)
	var order []string

	if err := ta.app.Use(orderingMiddleware("A", &order)); err != nil {
		t.Fatalf("Use: %v", err)
	}
	done := make(chan struct{})
	if err := ta.app.Queue("orders", []core.Middleware{
		orderingMiddleware("B", &order),
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				order = append(order, "handler")
				close(done)
				return nil
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	assertOrder(t, order, []string{"A:before", "B:before", "handler", "B:after", "A:after"})
}

// TestPipeline_ShortCircuit verifies scenario S2: a middleware that never
// calls next stops every remaining middleware and the final handler.
func TestPipeline_ShortCircuit(t *testing.T) {
	ta := newTestApp(t)
	var order []string
	done := make(chan struct{})

	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				order = append(order, "gate")
				close(done)
				return nil // never calls next
			}
		},
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				order = append(order, "unreachable")
				return next(ctx, c)
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	assertOrder(t, order, []string{"gate"})
}

// TestPipeline_ErrorUnwind verifies scenario S3: an error from a downstream
// middleware is visible to every upstream middleware's call to next, and the
// Responder is skipped in favor of the error sink.
func TestPipeline_ErrorUnwind(t *testing.T) {
	boom := errors.New("boom")
	var seen error
	done := make(chan struct{})

	var sinkErr error
	ta := newTestApp(t, core.WithErrorSink(func(err error, c *core.Context) {
		sinkErr = err
		close(done)
	}))

	if err := ta.app.Queue("orders", []core.Middleware{
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				seen = next(ctx, c)
				return seen
			}
		},
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				return boom
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	if !errors.Is(seen, boom) {
		t.Errorf("expected upstream middleware to observe boom, got %v", seen)
	}
	if !errors.Is(sinkErr, boom) {
		t.Errorf("expected the error sink to receive boom, got %v", sinkErr)
	}
}

// TestPipeline_NextCalledTwice verifies a middleware calling next a second
// time gets KindPipelineMisuse instead of re-entering downstream.
func TestPipeline_NextCalledTwice(t *testing.T) {
	downstreamCalls := 0
	var secondCallErr error
	done := make(chan struct{})

	mw := func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			_ = next(ctx, c)
			secondCallErr = next(ctx, c)
			close(done)
			return nil
		}
	}

	ta := newTestApp(t)
	if err := ta.app.Queue("orders", []core.Middleware{
		mw,
		func(next core.Handler) core.Handler {
			return func(ctx context.Context, c *core.Context) error {
				downstreamCalls++
				return next(ctx, c)
			}
		},
	}); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	ta.connect(t)

	ta.deliver("orders", []byte("payload"))
	waitOrTimeout(t, done)

	if downstreamCalls != 1 {
		t.Errorf("expected downstream to run exactly once, ran %d times", downstreamCalls)
	}
	if !core.IsKind(secondCallErr, core.KindPipelineMisuse) {
		t.Errorf("expected KindPipelineMisuse on second next call, got %v", secondCallErr)
	}
}

func waitOrTimeout(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery to be processed")
	}
}

func assertOrder(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
