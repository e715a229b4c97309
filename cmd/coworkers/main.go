// Command coworkers is the loader and cluster-worker re-exec target: it
// registers queue handlers, connects to the broker either directly or (as
// cluster master) through the Cluster Manager, wires Connect/Close to process
// signals, and emits the worker readiness signal cluster.Manager waits for.
//
// A real deployment vendors this package's registration logic into its own
// binary; this one stands in as the smoke-test entry point spec.md's loader
// describes, the generalized, env-driven counterpart of the teacher's
// examples/basic/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/miladsoleymani/coworkers"
	"github.com/miladsoleymani/coworkers/cluster"
	"github.com/miladsoleymani/coworkers/core/middleware"
	"github.com/miladsoleymani/coworkers/transport"
	"github.com/miladsoleymani/coworkers/transport/amqp"
)

// queueNames is fixed at build time, the way a real service's route table is:
// the Cluster Manager needs the full queue list before any process connects,
// master or worker.
var queueNames = []string{"orders.created", "payments.completed"}

func main() {
	cfg := coworkers.ConfigFromEnv()
	dialer := amqp.New()

	var manager *cluster.Manager
	var opts []coworkers.Option
	if cfg.Cluster {
		manager = cluster.NewManager(queueNames)
		opts = append(opts, coworkers.WithClusterSupervisor(manager))
	}

	app := coworkers.New(dialer, cfg, opts...)
	app.Use(middleware.Recovery())
	app.Use(middleware.Logging())
	registerQueues(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Connect(ctx, "", transport.SocketOptions{}); err != nil {
		log.Printf("coworkers: connect failed: %v", err)
		os.Exit(1)
	}

	if _, isWorker := coworkers.WorkerNum(); isWorker {
		fmt.Println(cluster.ReadySignal)
	}

	<-ctx.Done()
	log.Println("coworkers: shutting down...")

	if err := app.Close(context.Background()); err != nil {
		log.Printf("coworkers: close failed: %v", err)
		os.Exit(1)
	}
}

func registerQueues(app *coworkers.Application) {
	err := app.Queue("orders.created", []coworkers.Middleware{
		func(next coworkers.Handler) coworkers.Handler {
			return func(ctx context.Context, c *coworkers.Context) error {
				fmt.Printf("order created: %s\n", c.Body())
				return next(ctx, c)
			}
		},
	})
	if err != nil {
		log.Fatalf("coworkers: register orders.created: %v", err)
	}

	err = app.Queue("payments.completed", []coworkers.Middleware{
		middleware.NackOnError(true),
		func(next coworkers.Handler) coworkers.Handler {
			return func(ctx context.Context, c *coworkers.Context) error {
				fmt.Printf("payment completed: %s\n", c.Body())
				return next(ctx, c)
			}
		},
	})
	if err != nil {
		log.Fatalf("coworkers: register payments.completed: %v", err)
	}
}
