package middleware

import (
	"context"
	"log"
	"time"

	"github.com/miladsoleymani/coworkers/core"
)

// Logging returns middleware that logs message processing duration and
// errors, tagged with the delivery tag and redelivery flag so a poison
// message cycling through retries shows up as one tag reappearing rather
// than a string of unrelated failures.
func Logging() core.Middleware {
	return func(next core.Handler) core.Handler {
		return func(ctx context.Context, c *core.Context) error {
			start := time.Now()
			err := next(ctx, c)
			elapsed := time.Since(start)

			if err != nil {
				log.Printf("[coworkers] ERROR queue=%s tag=%d redelivered=%t elapsed=%s err=%v",
					c.Queue(), c.DeliveryTag(), c.Redelivered(), elapsed, err)
			} else {
				log.Printf("[coworkers] OK    queue=%s tag=%d redelivered=%t elapsed=%s",
					c.Queue(), c.DeliveryTag(), c.Redelivered(), elapsed)
			}
			return err
		}
	}
}
