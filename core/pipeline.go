package core

import "context"

// compose flattens mws into a single Handler that runs final after the last
// middleware. This mirrors the teacher's applyMiddleware (core/router.go in the
// retrieved eventmux sources), generalized with a once-guard around each
// middleware's next so a second call fails with KindPipelineMisuse instead of
// silently re-entering downstream.
//
// The two-phase traversal of spec §4.1 falls out of ordinary Go call nesting: when
// m1 calls next, it calls m2, which calls next to call m3, and so on; mn's next is
// the no-op final handler. Each mI's code after its call to next is its upstream
// half, run in reverse order as the call stack unwinds — no explicit stack is
// needed because the Go call stack already is one.
//
// Short-circuiting (a middleware that never calls next) and error unwinding (a
// middleware that returns before or instead of calling next) both fall out the same
// way: the remaining middleware simply never get called, and already-entered
// middleware see the error only as the return value of their own call to next.
func compose(mws []Middleware, final Handler) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		h = guard(mws[i], h)
	}
	return h
}

// guard wraps downstream so mw can call it at most once; a second call returns
// KindPipelineMisuse without running downstream again.
func guard(mw Middleware, downstream Handler) Handler {
	return func(ctx context.Context, c *Context) error {
		called := false
		next := func(ctx context.Context, c *Context) error {
			if called {
				return pipelineMisuse()
			}
			called = true
			return downstream(ctx, c)
		}
		return mw(next)(ctx, c)
	}
}

// runPipeline executes mws over c and reports the final error, if any. final is
// invoked once every middleware that called next has reached the end of the chain;
// it never itself fails.
func runPipeline(ctx context.Context, c *Context, mws []Middleware) error {
	noop := func(context.Context, *Context) error { return nil }
	return compose(mws, noop)(ctx, c)
}
