package jobqueue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Pop once the queue is closed.
var ErrClosed = errors.New("queue closed")

// Queue delivers jobs by priority.
type Queue interface {
	// Push enqueues job, invisible to Pop until delay has passed.
	Push(ctx context.Context, job Job, delay time.Duration) error

	// Pop blocks until a job is due or ctx is done. Among due jobs the
	// highest priority wins, then the earliest due.
	Pop(ctx context.Context) (*Job, error)

	// Len returns the number of queued jobs, due or not.
	Len(ctx context.Context) (int, error)

	Close() error
}

// Barrier releases each stage of a run once the stage before it drains.
type Barrier interface {
	// SaveRun records the run's layout. Stage 0 is considered dispatched.
	SaveRun(ctx context.Context, run *Run) error

	// Arrive records that jobID of the given stage reached a terminal
	// outcome. The arrival that drains the stage receives the next
	// non-empty stage's jobs; every other arrival, including a repeat of
	// the same jobID, receives nil.
	Arrive(ctx context.Context, runID string, stage int, jobID string) ([]Job, error)
}
