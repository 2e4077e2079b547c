package jobqueue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	job Job
	due time.Time
	seq int64
}

// entries is a heap ordered by due time then insertion.
type entries []*entry

func (h entries) Len() int { return len(h) }
func (h entries) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	return h[i].seq < h[j].seq
}
func (h entries) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entries) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *entries) Pop() any {
	old := *h
	e := old[len(old)-1]
	*h = old[:len(old)-1]
	return e
}

// Memory is an in-process Queue with one heap per priority.
type Memory struct {
	mu     sync.Mutex
	high   entries
	low    entries
	seq    int64
	signal chan struct{} // closed and replaced on every change
	closed bool
	now    func() time.Time
}

// NewMemory returns an empty queue.
func NewMemory() *Memory {
	return &Memory{signal: make(chan struct{}), now: time.Now}
}

func (m *Memory) Push(ctx context.Context, job Job, delay time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seq++
	e := &entry{job: job, due: m.now().Add(max(delay, 0)), seq: m.seq}
	if job.Priority == High {
		heap.Push(&m.high, e)
	} else {
		heap.Push(&m.low, e)
	}
	m.broadcast()
	m.mu.Unlock()
	return nil
}

// next removes and returns the best due job, or reports how long until one
// becomes due.
func (m *Memory) next() (*Job, time.Duration, bool) {
	now := m.now()
	for _, h := range []*entries{&m.high, &m.low} {
		if h.Len() > 0 && !(*h)[0].due.After(now) {
			e := heap.Pop(h).(*entry)
			return &e.job, 0, true
		}
	}
	wait := time.Duration(-1)
	for _, h := range []*entries{&m.high, &m.low} {
		if h.Len() > 0 {
			if d := (*h)[0].due.Sub(now); wait < 0 || d < wait {
				wait = d
			}
		}
	}
	return nil, wait, false
}

func (m *Memory) Pop(ctx context.Context) (*Job, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		job, wait, ok := m.next()
		changed := m.signal
		m.mu.Unlock()
		if ok {
			return job, nil
		}

		var (
			t     *time.Timer
			timer <-chan time.Time
		)
		if wait >= 0 {
			t = time.NewTimer(wait)
			timer = t.C
		}
		select {
		case <-ctx.Done():
			stopTimer(t)
			return nil, ctx.Err()
		case <-changed:
			stopTimer(t)
		case <-timer:
		}
	}
}

// broadcast wakes every waiting Pop. Callers hold mu.
func (m *Memory) broadcast() {
	close(m.signal)
	m.signal = make(chan struct{})
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.high.Len() + m.low.Len(), nil
}

// Close makes every pending and future Pop return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.broadcast()
	}
	return nil
}

type runState struct {
	run  *Run
	left []int
	done map[string]bool
}

// MemoryBarrier is an in-process Barrier.
type MemoryBarrier struct {
	mu   sync.Mutex
	runs map[string]*runState
}

// NewMemoryBarrier returns an empty barrier.
func NewMemoryBarrier() *MemoryBarrier {
	return &MemoryBarrier{runs: make(map[string]*runState)}
}

func (b *MemoryBarrier) SaveRun(ctx context.Context, run *Run) error {
	st := &runState{run: run, left: make([]int, len(run.Stages)), done: make(map[string]bool)}
	for i, s := range run.Stages {
		st.left[i] = len(s)
	}
	b.mu.Lock()
	b.runs[run.ID] = st
	b.mu.Unlock()
	return nil
}

func (b *MemoryBarrier) Arrive(ctx context.Context, runID string, stage int, jobID string) ([]Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.runs[runID]
	if !ok {
		return nil, fmt.Errorf("arrive: unknown run %s", runID)
	}
	if stage < 0 || stage >= len(st.left) {
		return nil, fmt.Errorf("arrive: run %s has no stage %d", runID, stage)
	}
	key := fmt.Sprintf("%d/%s", stage, jobID)
	if st.done[key] {
		return nil, nil
	}
	st.done[key] = true
	st.left[stage]--
	if st.left[stage] != 0 {
		return nil, nil
	}
	for next := stage + 1; next < len(st.run.Stages); next++ {
		if len(st.run.Stages[next]) > 0 {
			return st.run.Stages[next], nil
		}
	}
	delete(b.runs, runID)
	return nil, nil
}

var (
	_ Queue   = (*Memory)(nil)
	_ Barrier = (*MemoryBarrier)(nil)
)
