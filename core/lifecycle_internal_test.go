package core

import (
	"context"
	"testing"

	"github.com/miladsoleymani/coworkers/transport"
)

// TestInstallSignalHandler_IdempotentAndRemovedByReference exercises
// installSignalHandler/removeSignalHandler directly: invariant 5 requires
// the SIGINT handler to be removed by the exact reference Connect installed,
// and installing while one is already recorded must not leak a second
// signal.Notify registration.
func TestInstallSignalHandler_IdempotentAndRemovedByReference(t *testing.T) {
	app := &Application{}

	app.installSignalHandler()
	if app.sigHandlerRemoved == nil {
		t.Fatal("expected installSignalHandler to record a removal closure")
	}

	// A second install while one is already recorded must be a no-op: if it
	// replaced sigHandlerRemoved with a new closure, the first signal.Notify
	// registration would leak (never removed by anything).
	app.installSignalHandler()
	if app.sigHandlerRemoved == nil {
		t.Fatal("second install call cleared the handler")
	}

	app.removeSignalHandler()
	if app.sigHandlerRemoved != nil {
		t.Error("expected removeSignalHandler to clear the stored closure")
	}

	// Removing again must be a no-op rather than re-invoking (and double-
	// closing the stop channel of) the closure already removed once.
	app.removeSignalHandler()
}

// fakeClusterSupervisor is a minimal ClusterSupervisor for exercising the
// cluster master dispatch path without forking real worker processes.
type fakeClusterSupervisor struct {
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (f *fakeClusterSupervisor) Start(context.Context) error {
	f.started = true
	return f.startErr
}

func (f *fakeClusterSupervisor) Stop(context.Context) error {
	f.stopped = true
	return f.stopErr
}

// TestConnect_ClusterMaster_NeverTouchesTransportHandles verifies invariant
// 6: under cluster master mode, Connect/Close delegate entirely to the
// ClusterSupervisor and never set connection, consumerChannel, or
// publisherChannel on the master-side Application.
func TestConnect_ClusterMaster_NeverTouchesTransportHandles(t *testing.T) {
	cs := &fakeClusterSupervisor{}
	app := New(nil, Config{Cluster: true}, WithClusterSupervisor(cs))

	if err := app.Connect(context.Background(), "amqp://test", transport.SocketOptions{}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !cs.started {
		t.Fatal("expected Connect to delegate to the cluster supervisor's Start")
	}
	if app.connection != nil || app.consumerChannel != nil || app.publisherChannel != nil {
		t.Error("cluster master must never hold its own transport handles after Connect")
	}

	if err := app.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !cs.stopped {
		t.Fatal("expected Close to delegate to the cluster supervisor's Stop")
	}
	if app.connection != nil || app.consumerChannel != nil || app.publisherChannel != nil {
		t.Error("cluster master must never hold its own transport handles after Close")
	}
}

// TestConnect_ClusterMaster_WithoutSupervisorFails verifies connectCluster's
// guard: cluster mode on the master without a configured ClusterSupervisor
// is a validation error, not a silent single-process fallback.
func TestConnect_ClusterMaster_WithoutSupervisorFails(t *testing.T) {
	app := New(nil, Config{Cluster: true})

	err := app.Connect(context.Background(), "amqp://test", transport.SocketOptions{})
	if !IsKind(err, KindValidationError) {
		t.Errorf("got %v, want KindValidationError", err)
	}
	if app.connection != nil || app.consumerChannel != nil || app.publisherChannel != nil {
		t.Error("a failed cluster Connect must not have touched transport handles")
	}
}
