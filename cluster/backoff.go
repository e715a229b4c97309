package cluster

import (
	"math"
	"math/rand"
	"time"
)

// BackoffFunc returns the wait duration before restarting a worker for the
// given one-based restart attempt (1 for the first restart, 2 for the second,
// and so on).
type BackoffFunc func(attempt int) time.Duration

// ConstantBackoff always waits delay, jittered by ±jitter (0.0 = none, 0.2 =
// ±20%), to avoid every worker restarting in lockstep.
func ConstantBackoff(delay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newJitterFunc(jitter)
	return func(attempt int) time.Duration {
		return applyJitter(delay)
	}
}

// ExponentialBackoff waits initialDelay * factor^(attempt-1), capped at
// maxDelay (0 = uncapped) and jittered by ±jitter.
func ExponentialBackoff(initialDelay time.Duration, factor float64, maxDelay time.Duration, jitter float64) BackoffFunc {
	applyJitter := newJitterFunc(jitter)
	return func(attempt int) time.Duration {
		d := time.Duration(float64(initialDelay) * math.Pow(factor, float64(attempt-1)))
		if maxDelay > 0 && d > maxDelay {
			d = maxDelay
		}
		return applyJitter(d)
	}
}

func newJitterFunc(jitter float64) func(time.Duration) time.Duration {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return func(d time.Duration) time.Duration {
		factor := 1.0 + (rand.Float64()*2*jitter - jitter)
		return time.Duration(float64(d) * factor)
	}
}
