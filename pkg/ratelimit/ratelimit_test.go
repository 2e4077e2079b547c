package ratelimit

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRulesFor(t *testing.T) {
	rs := Rules{PerProvider: map[string]Rule{
		"github": {Limit: 5, Window: time.Minute},
		"broken": {Limit: 0, Window: time.Second},
	}}
	if got := rs.For("github"); got.Limit != 5 {
		t.Errorf("For(github) = %+v", got)
	}
	if got := rs.For("unknown"); got != DefaultRule {
		t.Errorf("For(unknown) = %+v, want default", got)
	}
	if got := rs.For("broken"); got != DefaultRule {
		t.Errorf("For(broken) = %+v, want default", got)
	}
	rs.Default = Rule{Limit: 1, Window: time.Second}
	if got := rs.For("unknown"); got.Limit != 1 {
		t.Errorf("For(unknown) with Default = %+v", got)
	}
}

func TestMemorySlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := NewMemory(Rules{Default: Rule{Limit: 2, Window: time.Second}}, clock.Now)
	ctx := context.Background()

	for i := range 2 {
		if d, _ := l.Acquire(ctx, "p"); !d.Allowed {
			t.Fatalf("call %d refused", i)
		}
		clock.Advance(300 * time.Millisecond)
	}
	d, err := l.Acquire(ctx, "p")
	if err != nil || d.Allowed {
		t.Fatalf("third call = %+v, %v, want refusal", d, err)
	}
	if d.Wait != 400*time.Millisecond {
		t.Errorf("Wait = %v, want 400ms", d.Wait)
	}

	if d, _ := l.Acquire(ctx, "other"); !d.Allowed {
		t.Error("limits leaked across providers")
	}

	clock.Advance(d.Wait)
	if d, _ := l.Acquire(ctx, "p"); !d.Allowed {
		t.Errorf("call after waiting = %+v, want allowed", d)
	}
}

func TestMemoryBoundUnderConcurrency(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := NewMemory(Rules{}, clock.Now)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := l.Acquire(context.Background(), "crossref"); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != int64(DefaultRule.Limit) {
		t.Errorf("allowed %d calls in one window, want %d", got, DefaultRule.Limit)
	}
}

func TestMemoryCanceled(t *testing.T) {
	l := NewMemory(Rules{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if d, err := l.Acquire(ctx, "p"); err == nil || d.Allowed {
		t.Errorf("Acquire(canceled) = %+v, %v", d, err)
	}
}

// Set IMPACT_TEST_REDIS_ADDR to run against a live server.
func TestRedisBoundUnderConcurrency(t *testing.T) {
	addr := os.Getenv("IMPACT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IMPACT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	l := NewRedis(client, Rules{Default: Rule{Limit: 10, Window: time.Minute}}, "test:"+uuid.NewString()+":")
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Acquire(context.Background(), "crossref")
			if err != nil {
				t.Error(err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			} else if d.Wait <= 0 || d.Wait > time.Minute {
				t.Errorf("Wait = %v out of range", d.Wait)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 10 {
		t.Errorf("allowed %d calls, want 10", got)
	}
}

func TestRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { client.Close() })
	l := NewRedis(client, Rules{}, "")
	d, err := l.Acquire(context.Background(), "p")
	if err == nil || d.Allowed {
		t.Errorf("Acquire() = %+v, %v, want refusal with error", d, err)
	}
	if d.Wait != DefaultRule.Window {
		t.Errorf("Wait = %v, want one window", d.Wait)
	}
}
