package core

import "context"

// future is a single-assignment promise: many callers may wait on it concurrently,
// and all observe the same resolved error. It backs connectingPromise/
// closingPromise (spec §4.5), standing in for the source language's promise in an
// idiomatic Go way — a closed channel any number of goroutines can select on.
type future struct {
	done chan struct{}
	err  error
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(err error) {
	f.err = err
	close(f.done)
}

func (f *future) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
