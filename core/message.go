package core

import "context"

// Handler processes one message via its Context. Middleware wraps a Handler to
// produce another Handler; the pipeline (pipeline.go) composes the global and
// per-queue middleware lists into one Handler per message.
type Handler func(ctx context.Context, c *Context) error

// Middleware is a resumable unit: it receives the downstream Handler (its "next")
// and returns the Handler that runs in its place. A middleware observes its context
// before calling next, and again after next returns, which is the two-phase
// traversal spec §4.1 requires — expressed here as ordinary Go call-stack nesting
// rather than an explicit coroutine, since a synchronous call already suspends the
// caller at the call site and resumes it when the callee returns.
type Middleware func(next Handler) Handler
