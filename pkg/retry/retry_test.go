package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func always(error) bool { return true }

func TestDelay(t *testing.T) {
	p := Policy{Base: time.Second, Max: 10 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayJitter(t *testing.T) {
	p := Policy{Base: time.Second, Max: time.Minute, Jitter: 0.5}
	for range 100 {
		d := p.Delay(3)
		if d < 2*time.Second || d > 4*time.Second {
			t.Fatalf("Delay(3) = %v, want within [2s, 4s]", d)
		}
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: 3, Base: time.Millisecond}, always, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("Do() = %v after %d calls, want nil after 3", err, calls)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: 2, Base: time.Millisecond}, always, func(context.Context) error {
			calls++
			return errBoom
		})
		if !errors.Is(err, errBoom) || calls != 2 {
			t.Errorf("Do() = %v after %d calls, want errBoom after 2", err, calls)
		}
	})

	t.Run("non-retryable stops", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{Attempts: 5, Base: time.Millisecond}, func(error) bool { return false }, func(context.Context) error {
			calls++
			return errBoom
		})
		if !errors.Is(err, errBoom) || calls != 1 {
			t.Errorf("Do() = %v after %d calls, want 1 call", err, calls)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Do(ctx, Policy{Attempts: 5, Base: time.Hour}, always, func(context.Context) error { return errBoom })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() = %v, want context.Canceled", err)
		}
	})
}
