package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/miladsoleymani/coworkers/transport"
)

// Connect opens a broker connection, its two channels, and asserts+consumes every
// registered queue (or, under clustering on a worker, just this worker's one
// queue). It is idempotent: a Connect in flight is returned to every caller that
// arrives while it is pending, and a fully-open Application resolves immediately.
// cb, if supplied, additionally receives the same error Connect returns, giving
// both promise- and callback-style usage from the one implementation.
func (app *Application) Connect(ctx context.Context, url string, socketOpts transport.SocketOptions, cb ...func(error)) error {
	var err error
	if app.cfg.Cluster && !app.isWorker() {
		err = app.connectCluster(ctx)
	} else {
		err = app.connectSingle(ctx, url, socketOpts)
	}
	invokeCallbacks(cb, err)
	return err
}

// Close tears down every resource Connect opened: cancels active consumers,
// closes both channels and the connection, and removes the installed SIGINT
// handler by the exact reference Connect installed. It is idempotent the same way
// Connect is.
func (app *Application) Close(ctx context.Context, cb ...func(error)) error {
	var err error
	if app.cfg.Cluster && !app.isWorker() {
		err = app.closeCluster(ctx)
	} else {
		err = app.closeSingle(ctx)
	}
	invokeCallbacks(cb, err)
	return err
}

func invokeCallbacks(cbs []func(error), err error) {
	for _, cb := range cbs {
		if cb != nil {
			cb(err)
		}
	}
}

func (app *Application) connectCluster(ctx context.Context) error {
	if app.cluster == nil {
		return validationErrorf("coworkers: cluster mode requires a ClusterSupervisor (see WithClusterSupervisor)")
	}
	return app.cluster.Start(ctx)
}

func (app *Application) closeCluster(ctx context.Context) error {
	if app.cluster == nil {
		return nil
	}
	return app.cluster.Stop(ctx)
}

// connectSingle is the single-process lifecycle path of spec §4.5, also used by a
// cluster worker (bound to its one queue).
func (app *Application) connectSingle(ctx context.Context, url string, socketOpts transport.SocketOptions) error {
	app.mu.Lock()
	if app.connecting != nil {
		f := app.connecting
		app.mu.Unlock()
		return f.wait(ctx)
	}
	if app.closing != nil {
		f := app.closing
		app.mu.Unlock()
		if closeErr := f.wait(ctx); closeErr != nil {
			return cancelledByPeer(
				fmt.Sprintf("Connect cancelled because pending close failed (%v)", closeErr),
				closeErr,
			)
		}
		return app.connectSingle(ctx, url, socketOpts)
	}
	if app.isFullyOpenLocked() {
		app.mu.Unlock()
		return nil
	}
	fut := newFuture()
	app.connecting = fut
	app.mu.Unlock()

	err := app.doConnect(ctx, url, socketOpts)

	app.mu.Lock()
	app.connecting = nil
	app.mu.Unlock()

	fut.resolve(err)
	return err
}

// closeSingle is the single-process half of the lifecycle coordinator's close.
func (app *Application) closeSingle(ctx context.Context) error {
	app.mu.Lock()
	if app.closing != nil {
		f := app.closing
		app.mu.Unlock()
		return f.wait(ctx)
	}
	if app.connecting != nil {
		f := app.connecting
		app.mu.Unlock()
		if connectErr := f.wait(ctx); connectErr != nil {
			return cancelledByPeer(
				fmt.Sprintf("Close cancelled because pending connect failed (%v)", connectErr),
				connectErr,
			)
		}
		return app.closeSingle(ctx)
	}
	if app.isFullyClosedLocked() {
		app.mu.Unlock()
		return nil
	}
	fut := newFuture()
	app.closing = fut
	app.mu.Unlock()

	err := app.teardown(ctx)

	app.mu.Lock()
	app.closing = nil
	app.mu.Unlock()

	fut.resolve(err)
	return err
}

// isFullyOpenLocked reports whether connection, both channels, and a consumer tag
// for every queue this process should be consuming are all present. Callers must
// hold app.mu.
func (app *Application) isFullyOpenLocked() bool {
	if app.connection == nil || app.consumerChannel == nil || app.publisherChannel == nil {
		return false
	}
	for _, name := range app.queueNamesForConnect() {
		if _, ok := app.consumerTags[name]; !ok {
			return false
		}
	}
	return true
}

// isFullyClosedLocked reports whether no broker resources are held. Callers must
// hold app.mu.
func (app *Application) isFullyClosedLocked() bool {
	return app.connection == nil && app.consumerChannel == nil && app.publisherChannel == nil && len(app.consumerTags) == 0
}

// doConnect performs spec §4.5 step 4a-d: dial, open both channels, assert+consume
// every relevant queue, and install the SIGINT handler. Any failure triggers an
// implicit teardown of whatever succeeded and surfaces the original error.
func (app *Application) doConnect(ctx context.Context, url string, socketOpts transport.SocketOptions) error {
	if url == "" {
		url = os.Getenv(EnvRabbitMQURL)
	}

	conn, err := app.dialer.Dial(ctx, url, socketOpts)
	if err != nil {
		return app.rollbackConnect(ctx, transportError(err))
	}
	app.mu.Lock()
	app.connection = conn
	app.mu.Unlock()

	consumerCh, err := app.dialer.OpenChannel(ctx, conn)
	if err != nil {
		return app.rollbackConnect(ctx, transportError(err))
	}
	app.mu.Lock()
	app.consumerChannel = consumerCh
	app.mu.Unlock()

	publisherCh, err := app.dialer.OpenChannel(ctx, conn)
	if err != nil {
		return app.rollbackConnect(ctx, transportError(err))
	}
	app.mu.Lock()
	app.publisherChannel = publisherCh
	app.mu.Unlock()

	for _, name := range app.queueNamesForConnect() {
		entry, ok := app.registry.entry(name)
		if !ok {
			return app.rollbackConnect(ctx, validationErrorf("coworkers: queue %q is not registered", name))
		}
		tag, err := app.dialer.AssertAndConsume(ctx, consumerCh, name, entry.QueueOpts, entry.ConsumeOpts, app.messageHandler(name))
		if err != nil {
			return app.rollbackConnect(ctx, transportError(err))
		}
		app.mu.Lock()
		app.consumerTags[name] = tag
		app.mu.Unlock()
	}

	app.installSignalHandler()
	return nil
}

// rollbackConnect releases whatever doConnect managed to open, swallowing any
// teardown error, and returns originalErr — spec §4.5 step 5.
func (app *Application) rollbackConnect(ctx context.Context, originalErr error) error {
	_ = app.teardown(ctx)
	return originalErr
}

// teardown is the resource-release sequence of spec §4.5 close step 4, factored
// out so both the public Close and a failed Connect's rollback can run it without
// the two chaining onto each other's in-flight futures (which would deadlock: a
// Connect cannot await its own connectingPromise).
func (app *Application) teardown(ctx context.Context) error {
	app.mu.Lock()
	consumerCh := app.consumerChannel
	tags := make(map[string]transport.ConsumerTag, len(app.consumerTags))
	for k, v := range app.consumerTags {
		tags[k] = v
	}
	publisherCh := app.publisherChannel
	conn := app.connection
	app.mu.Unlock()

	for name, tag := range tags {
		if consumerCh == nil {
			break
		}
		if err := app.dialer.CancelConsumer(ctx, consumerCh, tag); err != nil {
			return transportError(fmt.Errorf("cancel consumer for %q: %w", name, err))
		}
		app.mu.Lock()
		delete(app.consumerTags, name)
		app.mu.Unlock()
	}

	if consumerCh != nil {
		if err := consumerCh.Close(); err != nil {
			return transportError(fmt.Errorf("close consumer channel: %w", err))
		}
		app.mu.Lock()
		app.consumerChannel = nil
		app.mu.Unlock()
	}

	if publisherCh != nil {
		if err := publisherCh.Close(); err != nil {
			return transportError(fmt.Errorf("close publisher channel: %w", err))
		}
		app.mu.Lock()
		app.publisherChannel = nil
		app.mu.Unlock()
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			return transportError(fmt.Errorf("close connection: %w", err))
		}
		app.mu.Lock()
		app.connection = nil
		app.mu.Unlock()
	}

	app.removeSignalHandler()
	return nil
}

// installSignalHandler registers a SIGINT handler that calls Close (idempotent:
// re-entering Close while one is already in flight returns that same completion).
// The handler is recorded so it can be uninstalled by exact reference on close,
// per spec design note §9, rather than uninstalling every SIGINT handler in the
// process.
func (app *Application) installSignalHandler() {
	app.mu.Lock()
	if app.sigHandlerRemoved != nil {
		app.mu.Unlock()
		return
	}
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT)
	app.sigHandlerRemoved = func() {
		signal.Stop(sigCh)
		close(stopCh)
	}
	app.mu.Unlock()

	go func() {
		select {
		case <-sigCh:
			_ = app.Close(context.Background())
		case <-stopCh:
		}
	}()
}

func (app *Application) removeSignalHandler() {
	app.mu.Lock()
	remove := app.sigHandlerRemoved
	app.sigHandlerRemoved = nil
	app.mu.Unlock()
	if remove != nil {
		remove()
	}
}
