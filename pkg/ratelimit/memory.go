package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process sliding-log limiter.
type Memory struct {
	rules Rules
	now   func() time.Time

	mu  sync.Mutex
	log map[string][]time.Time
}

// NewMemory returns a limiter using rules. A nil now uses time.Now.
func NewMemory(rules Rules, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{rules: rules, now: now, log: make(map[string][]time.Time)}
}

func (m *Memory) Acquire(ctx context.Context, provider string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{Wait: m.rules.For(provider).Window}, err
	}
	rule := m.rules.For(provider)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.log[provider]
	cutoff := now.Add(-rule.Window)
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	entries = entries[i:]

	if len(entries) < rule.Limit {
		m.log[provider] = append(entries, now)
		return Decision{Allowed: true}, nil
	}
	m.log[provider] = entries
	return Decision{Wait: entries[0].Add(rule.Window).Sub(now)}, nil
}

var _ Limiter = (*Memory)(nil)
