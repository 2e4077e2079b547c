package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/merge"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/ratelimit"
	"github.com/matzehuels/impactrefresh/pkg/retry"
	"github.com/matzehuels/impactrefresh/pkg/status"
	"github.com/matzehuels/impactrefresh/pkg/store/memory"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return t0 }

// fastRetry keeps retried jobs in tests from sleeping noticeably.
var fastRetry = retry.Policy{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}

type env struct {
	store   *memory.Store
	tracker *countingTracker
	exec    *Executor
}

func newEnv(t *testing.T, limiter ratelimit.Limiter, ps ...provider.Provider) *env {
	t.Helper()
	if limiter == nil {
		limiter = ratelimit.NewMemory(ratelimit.Rules{}, nil)
	}
	s := memory.New()
	m := merge.New(s, merge.Options{Now: fixedClock})
	exec := NewExecutor(provider.NewRegistry(ps...), s, limiter, m, ExecutorOptions{
		Retry:          fastRetry,
		ThrottleJitter: -1,
	})
	return &env{
		store:   s,
		tracker: &countingTracker{Tracker: status.NewMemory(0, fixedClock), completes: make(map[string]int)},
		exec:    exec,
	}
}

func (e *env) create(t *testing.T, aliases ...alias.Alias) *artifact.Artifact {
	t.Helper()
	a := artifact.New(t0, aliases...)
	if err := e.store.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}

// countingTracker records how often each job id is completed.
type countingTracker struct {
	status.Tracker
	mu        sync.Mutex
	completes map[string]int
}

func (c *countingTracker) Complete(ctx context.Context, id, jobID string) (int, error) {
	c.mu.Lock()
	c.completes[jobID]++
	c.mu.Unlock()
	return c.Tracker.Complete(ctx, id, jobID)
}

func (c *countingTracker) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.completes {
		n += v
	}
	return n
}

type stubLimiter struct {
	dec ratelimit.Decision
	err error
}

func (l stubLimiter) Acquire(context.Context, string) (ratelimit.Decision, error) { return l.dec, l.err }
