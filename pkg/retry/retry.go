// Package retry computes backoff delays and runs bounded retry loops.
//
// The job executor uses [Policy.Delay] to schedule re-delivery of failed
// jobs, and the merger uses [Do] to absorb optimistic-concurrency conflicts.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes an exponential backoff.
type Policy struct {
	Attempts int           // total attempts including the first; <= 0 means 1
	Base     time.Duration // delay before the second attempt
	Max      time.Duration // cap on any single delay; 0 means uncapped
	Jitter   float64       // fraction of the delay randomized, in [0, 1]
}

// Default is the policy used for provider calls when none is configured.
var Default = Policy{Attempts: 5, Base: 2 * time.Second, Max: 5 * time.Minute, Jitter: 0.2}

// Delay returns how long to wait after the given failed attempt (1-based).
// The delay doubles per attempt from Base, is capped at Max, and then has
// up to Jitter of itself subtracted at random.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			d = p.Max
			break
		}
		if d <= 0 {
			d = p.Max
			break
		}
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 && d > 0 {
		j := min(p.Jitter, 1)
		d -= time.Duration(rand.Float64() * j * float64(d))
	}
	return d
}

// Exhausted reports whether attempt has used up the policy.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= max(p.Attempts, 1)
}

// Do executes fn until it succeeds, retryable reports false for its error,
// or the attempts run out. It returns the last error, or ctx.Err() if the
// context ends while waiting.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || p.Exhausted(attempt) {
			return lastErr
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
