package middleware

import (
	"context"
	"time"

	"github.com/miladsoleymani/coworkers/core"
)

// ProcessedMessage carries the AMQP delivery bookkeeping a metrics backend
// needs to tell a fresh delivery apart from a redelivered one, alongside how
// long processing took and whether it failed.
type ProcessedMessage struct {
	Queue       string
	DeliveryTag uint64
	Redelivered bool
	Duration    time.Duration
	Err         error
}

// Collector is the interface metrics backends must implement. This keeps the
// middleware decoupled from any specific metrics library.
type Collector interface {
	// MessageProcessed records the outcome of processing one delivery.
	MessageProcessed(ProcessedMessage)
}

// Metrics returns middleware that reports processing metrics to collector,
// tagging every report with the delivery's redelivery status so a collector
// can distinguish a poison-message retry loop from steady first-pass traffic.
func Metrics(collector Collector) core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			start := time.Now()
			err := next(ctx, c)
			collector.MessageProcessed(ProcessedMessage{
				Queue:       c.Queue(),
				DeliveryTag: c.DeliveryTag(),
				Redelivered: c.Redelivered(),
				Duration:    time.Since(start),
				Err:         err,
			})
			return err
		}
	}
}
