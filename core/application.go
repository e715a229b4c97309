// Package core implements the Application lifecycle coordinator, the middleware
// pipeline executor, the queue registry, and the responder — the hard center of
// the coworkers framework, per spec §2.
package core

import (
	"context"
	"os"
	"sync"

	"github.com/miladsoleymani/coworkers/schema"
	"github.com/miladsoleymani/coworkers/transport"
)

// ErrorSink receives every asynchronous error the core cannot surface
// synchronously: a pipeline failure (with the Context it happened on, if any) or a
// Responder failure.
type ErrorSink func(err error, c *Context)

// ClusterSupervisor is the Cluster Manager collaborator the Application delegates
// to when Config.Cluster is true and this process is the master (spec §4.5). It is
// an interface here, not a concrete *cluster.Manager, so core never imports the
// cluster package (which in turn imports os/exec) — cmd/coworkers wires a concrete
// implementation in.
type ClusterSupervisor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Application is the root entity of spec §3: it owns a Config, the global
// middleware list (via Registry), the transport handles, the in-flight lifecycle
// futures, and an optional cluster supervisor.
type Application struct {
	cfg      Config
	dialer   transport.Dialer
	registry *Registry
	errSink  ErrorSink

	mu                sync.Mutex
	connection        transport.Connection
	consumerChannel   transport.Channel
	publisherChannel  transport.Channel
	consumerTags      map[string]transport.ConsumerTag
	connecting        *future
	closing           *future
	sigHandlerRemoved func()

	cluster ClusterSupervisor
}

// Option configures an Application at construction time.
type Option func(*Application)

// WithErrorSink overrides the default error sink (which logs via
// core/middleware-style stdlib logging) with a caller-supplied one.
func WithErrorSink(sink ErrorSink) Option {
	return func(app *Application) { app.errSink = sink }
}

// WithClusterSupervisor wires a Cluster Manager implementation. Callers that want
// clustering must supply one; the core has no default, since forking worker
// processes requires knowing how to re-invoke the binary (cmd/coworkers' concern).
func WithClusterSupervisor(cs ClusterSupervisor) Option {
	return func(app *Application) { app.cluster = cs }
}

// New creates an Application bound to dialer, the transport collaborator spec §6
// describes.
func New(dialer transport.Dialer, cfg Config, opts ...Option) *Application {
	app := &Application{
		cfg:          cfg,
		dialer:       dialer,
		registry:     NewRegistry(cfg.Schema),
		consumerTags: make(map[string]transport.ConsumerTag),
		errSink:      defaultErrorSink,
	}
	for _, o := range opts {
		o(app)
	}
	return app
}

// SchemaRegistry returns the schema collaborator this Application was configured
// with, or nil.
func (app *Application) SchemaRegistry() schema.Registry { return app.cfg.Schema }

// Use registers global middleware, applied to every queue ahead of that queue's own
// middleware, in registration order.
func (app *Application) Use(mw Middleware) error { return app.registry.Use(mw) }

// Queue registers a queue entry. See Registry.Queue.
func (app *Application) Queue(name string, middleware []Middleware, opts ...QueueOption) error {
	return app.registry.Queue(name, middleware, opts...)
}

// QueueNames returns the registered queue names in registration order.
func (app *Application) QueueNames() []string { return app.registry.QueueNames() }

func (app *Application) emitError(err error, c *Context) {
	if app.errSink != nil {
		app.errSink(err, c)
	}
}

func (app *Application) consumerChannelHandle() transport.Channel {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.consumerChannel
}

func (app *Application) publisherChannelHandle() transport.Channel {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.publisherChannel
}

// isWorker reports whether this process was launched by a Cluster Manager as a
// worker bound to one queue (spec §6, COWORKERS_QUEUE_WORKER_NUM).
func (app *Application) isWorker() bool {
	_, ok := WorkerNum()
	return ok
}

// queueNamesForConnect is the set of queues this process should assert+consume:
// every registered queue normally, or just this worker's single queue under
// clustering (spec §4.5 cluster path).
func (app *Application) queueNamesForConnect() []string {
	if app.cfg.Cluster && app.isWorker() {
		name := app.cfg.QueueName
		if name == "" {
			name = os.Getenv(EnvQueue)
		}
		return []string{name}
	}
	return app.registry.QueueNames()
}
