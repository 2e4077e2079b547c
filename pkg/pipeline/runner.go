package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/status"
)

// DefaultConcurrency bounds the jobs of one stage running at once.
const DefaultConcurrency = 8

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Concurrency int
	Logger      *log.Logger
}

// Runner executes runs inside the calling process. Each stage fans out
// across goroutines and the next stage starts once they all return.
// Retries wait in place.
//
// Runner satisfies [Dispatcher], so a [Service] can refresh synchronously.
type Runner struct {
	exec        *Executor
	tracker     status.Tracker
	concurrency int
	logger      *log.Logger
}

// NewRunner returns a runner executing jobs with exec and retiring them in
// tracker.
func NewRunner(exec *Executor, tracker status.Tracker, opts RunnerOptions) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Runner{exec: exec, tracker: tracker, concurrency: opts.Concurrency, logger: opts.Logger}
}

// Report counts the terminal outcomes of a run.
type Report struct {
	RunID    string
	Outcomes map[Status]int
	Duration time.Duration
}

// Jobs returns the number of jobs that reached a terminal outcome.
func (r *Report) Jobs() int {
	n := 0
	for _, c := range r.Outcomes {
		n += c
	}
	return n
}

// Run executes run stage by stage. It returns early only when ctx ends.
func (r *Runner) Run(ctx context.Context, run *jobqueue.Run) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: run.ID, Outcomes: make(map[Status]int)}
	var mu sync.Mutex

	for i, jobs := range run.Stages {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, job := range jobs {
			g.Go(func() error {
				out, err := r.runJob(gctx, job)
				if err != nil {
					return err
				}
				mu.Lock()
				report.Outcomes[out.Status]++
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
		r.logger.Debug("stage done", "artifact", run.ArtifactID, "stage", i, "jobs", len(jobs))
	}
	report.Duration = time.Since(start)
	return report, nil
}

// Dispatch runs run to completion.
func (r *Runner) Dispatch(ctx context.Context, run *jobqueue.Run) error {
	_, err := r.Run(ctx, run)
	return err
}

// runJob executes job until it reaches a terminal outcome, then retires it.
func (r *Runner) runJob(ctx context.Context, job jobqueue.Job) (Outcome, error) {
	for {
		out := r.exec.Execute(ctx, job)
		if out.Status.Terminal() {
			if _, err := r.tracker.Complete(ctx, job.ArtifactID, job.ID); err != nil {
				r.logger.Warn("status complete failed", "artifact", job.ArtifactID, "job", job.ID, "err", err)
			}
			return out, nil
		}
		if err := sleep(ctx, out.Delay); err != nil {
			return out, err
		}
		job = out.Job
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
