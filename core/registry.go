package core

import (
	"sync"

	"github.com/miladsoleymani/coworkers/schema"
	"github.com/miladsoleymani/coworkers/transport"
)

// Entry is a registered queue: its assertion/consume options and the middleware
// pipeline that runs for every message delivered on it.
type Entry struct {
	Name        string
	QueueOpts   transport.QueueOptions
	ConsumeOpts transport.ConsumeOptions
	Middleware  []Middleware
}

// QueueOption configures a Queue registration. Go favors functional options over
// spec §4.2's positional-optional-argument signature; semantics are unchanged.
type QueueOption func(*queueConfig)

type queueConfig struct {
	queueOpts    transport.QueueOptions
	hasQueueOpts bool
	consumeOpts  transport.ConsumeOptions
}

// WithQueueOptions supplies queue-assertion options. Rejected with
// KindSchemaViolation if the registry carries a schema collaborator, which owns
// queue-assertion options itself (spec §4.2).
func WithQueueOptions(opts transport.QueueOptions) QueueOption {
	return func(c *queueConfig) {
		c.queueOpts = opts
		c.hasQueueOpts = true
	}
}

// WithConsumeOptions supplies consume options (prefetch, exclusivity, ...).
func WithConsumeOptions(opts transport.ConsumeOptions) QueueOption {
	return func(c *queueConfig) { c.consumeOpts = opts }
}

// Registry validates and stores {queue -> (consume-options, middleware list)},
// plus the global middleware list applied ahead of every queue's own middleware.
type Registry struct {
	mu     sync.RWMutex
	schema schema.Registry
	global []Middleware
	byName map[string]*Entry
	order  []string
}

// NewRegistry creates an empty Registry. s may be nil when no schema collaborator
// is configured.
func NewRegistry(s schema.Registry) *Registry {
	return &Registry{
		schema: s,
		byName: make(map[string]*Entry),
	}
}

// Use appends mw to the global middleware list, applied to every queue ahead of
// that queue's own middleware, in registration order.
func (r *Registry) Use(mw Middleware) error {
	if mw == nil {
		return validationErrorf("coworkers: use: middleware must not be nil")
	}
	r.mu.Lock()
	r.global = append(r.global, mw)
	r.mu.Unlock()
	return nil
}

// Queue registers a queue entry. name must be non-empty and not already
// registered; middleware must be non-empty and contain no nil entries. If a schema
// collaborator is configured, name must resolve in it and callers must not supply
// WithQueueOptions (the schema owns those).
func (r *Registry) Queue(name string, middleware []Middleware, opts ...QueueOption) error {
	if name == "" {
		return validationErrorf("coworkers: queue: name must not be empty")
	}
	if len(middleware) == 0 {
		return validationErrorf("coworkers: queue %q: at least one middleware is required", name)
	}
	for _, mw := range middleware {
		if mw == nil {
			return validationErrorf("coworkers: queue %q: middleware must not be nil", name)
		}
	}

	cfg := queueConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return alreadyExistsErrorf("coworkers: queue %q is already registered", name)
	}

	queueOpts := cfg.queueOpts
	if r.schema != nil {
		resolved, ok := r.schema.Resolves(name)
		if !ok {
			return schemaViolationErrorf("coworkers: queue %q does not resolve in the configured schema", name)
		}
		if cfg.hasQueueOpts {
			return schemaViolationErrorf("coworkers: queue %q: queue options are owned by the schema and must not be supplied", name)
		}
		queueOpts = resolved
	}

	entry := &Entry{
		Name:        name,
		QueueOpts:   queueOpts,
		ConsumeOpts: cfg.consumeOpts,
		Middleware:  append([]Middleware(nil), middleware...),
	}
	r.byName[name] = entry
	r.order = append(r.order, name)
	return nil
}

// QueueNames returns the registered queue names in registration order.
func (r *Registry) QueueNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// entry returns the registered Entry for name, if any.
func (r *Registry) entry(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// globalMiddleware returns a snapshot of the global middleware list.
func (r *Registry) globalMiddleware() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Middleware, len(r.global))
	copy(out, r.global)
	return out
}
