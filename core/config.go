package core

import (
	"os"
	"strconv"

	"github.com/miladsoleymani/coworkers/schema"
)

// Environment variable names recognized per spec §6.
const (
	EnvCluster        = "COWORKERS_CLUSTER"
	EnvQueue          = "COWORKERS_QUEUE"
	EnvQueueWorkerNum = "COWORKERS_QUEUE_WORKER_NUM"
	EnvRabbitMQURL    = "COWORKERS_RABBITMQ_URL"
)

// Config holds the recognized Application options of spec §6.
type Config struct {
	// Cluster enables master/worker supervision. ConfigFromEnv defaults it to
	// true; the zero Config has it false.
	Cluster bool

	// QueueName is the single queue a cluster worker consumes; when empty, the
	// worker falls back to the COWORKERS_QUEUE env var. A non-clustered
	// Application does not read it and consumes every registered queue.
	QueueName string

	// Schema is the optional collaborator that constrains queue registration
	// (spec §4.2) and can own queue-assertion options.
	Schema schema.Registry
}

// ConfigFromEnv builds a Config from COWORKERS_* environment variables, the way
// the thin loader/CLI glue is expected to (spec §1 scopes that glue out of the
// core, but the env contract it reads is specified in §6 and is exercised here by
// cmd/coworkers).
func ConfigFromEnv() Config {
	cfg := Config{Cluster: true}
	if v, ok := os.LookupEnv(EnvCluster); ok {
		cfg.Cluster = v == "true"
	}
	cfg.QueueName = os.Getenv(EnvQueue)
	return cfg
}

// WorkerNum reports this process's worker index within its queue's pool, injected
// by the Cluster Manager, and whether it is set (i.e. this process is a worker).
func WorkerNum() (int, bool) {
	v := os.Getenv(EnvQueueWorkerNum)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
