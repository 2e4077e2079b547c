package status

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	n       int
	expires time.Time
	done    map[string]struct{}
}

// Memory is an in-process Tracker.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

// NewMemory returns a tracker whose counters live for ttl (DefaultTTL when
// zero). A nil now uses time.Now.
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{ttl: ttl, now: now, counters: make(map[string]*counter)}
}

// live returns id's counter, dropping it first if it expired.
func (m *Memory) live(id string) *counter {
	c, ok := m.counters[id]
	if !ok {
		return nil
	}
	if !m.now().Before(c.expires) {
		delete(m.counters, id)
		return nil
	}
	return c
}

func (m *Memory) Begin(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.live(id)
	if c == nil {
		c = &counter{done: make(map[string]struct{})}
		m.counters[id] = c
	}
	c.n += n
	c.expires = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) Complete(ctx context.Context, id, jobID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.live(id)
	if c == nil {
		return 0, nil
	}
	if _, seen := c.done[jobID]; seen {
		return c.n, nil
	}
	c.done[jobID] = struct{}{}
	c.n--
	if c.n <= 0 {
		delete(m.counters, id)
		return 0, nil
	}
	return c.n, nil
}

func (m *Memory) IsUpdating(ctx context.Context, id string) (bool, error) {
	n, err := m.Outstanding(ctx, id)
	return n > 0, err
}

func (m *Memory) Outstanding(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.live(id); c != nil {
		return c.n, nil
	}
	return 0, nil
}

var _ Tracker = (*Memory)(nil)
