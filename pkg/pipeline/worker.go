package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/status"
)

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// Concurrency is the number of jobs processed at once.
	Concurrency int
	// ErrorBackoff is the pause after a failed Pop.
	ErrorBackoff time.Duration
	Logger       *log.Logger
}

// Worker consumes jobs from a shared queue. Any number of workers, in any
// number of processes, may share one queue and barrier.
type Worker struct {
	queue   jobqueue.Queue
	barrier jobqueue.Barrier
	exec    *Executor
	tracker status.Tracker
	opts    WorkerOptions
}

// NewWorker returns a worker popping from queue.
func NewWorker(queue jobqueue.Queue, barrier jobqueue.Barrier, exec *Executor, tracker status.Tracker, opts WorkerOptions) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Worker{queue: queue, barrier: barrier, exec: exec, tracker: tracker, opts: opts}
}

// Run processes jobs until ctx ends or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.opts.Logger.Info("worker started", "concurrency", w.opts.Concurrency)
	g, gctx := errgroup.WithContext(ctx)
	for range w.opts.Concurrency {
		g.Go(func() error { return w.loop(gctx) })
	}
	err := g.Wait()
	w.opts.Logger.Info("worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for ctx.Err() == nil {
		job, err := w.queue.Pop(ctx)
		if err == nil {
			// A popped job is out of the queue; it is handled even when
			// shutdown began during Pop.
			w.Handle(ctx, *job)
			continue
		}
		switch {
		case errors.Is(err, jobqueue.ErrClosed), ctx.Err() != nil:
			return nil
		default:
			w.opts.Logger.Warn("pop failed", "err", err)
			if sleep(ctx, w.opts.ErrorBackoff) != nil {
				return nil
			}
		}
	}
	return nil
}

// Handle executes one job and routes its outcome: a retry goes back on the
// queue with its delay; a terminal outcome retires the job and, when it was
// the last of its stage, enqueues the next stage. A job cut short by ctx
// ending is put back unchanged instead of being retired.
//
// Bookkeeping after the call runs detached from ctx so a shutdown cannot
// leave a finished job half recorded.
func (w *Worker) Handle(ctx context.Context, job jobqueue.Job) Outcome {
	logger := w.opts.Logger.With("artifact", job.ArtifactID, "job", job.ID)

	out := w.exec.Execute(ctx, job)
	bg := context.WithoutCancel(ctx)

	if ctx.Err() != nil && out.Status != Completed && out.Status != Skipped {
		logger.Info("job interrupted, requeued", "status", out.Status)
		if err := w.queue.Push(bg, job, 0); err != nil {
			logger.Error("requeue failed", "err", err)
		}
		out.Status, out.Job, out.Delay = Retry, job, 0
		return out
	}

	if !out.Status.Terminal() {
		if err := w.queue.Push(bg, out.Job, out.Delay); err != nil {
			logger.Error("requeue failed", "err", err)
		}
		return out
	}

	if _, err := w.tracker.Complete(bg, job.ArtifactID, job.ID); err != nil {
		logger.Warn("status complete failed", "err", err)
	}
	next, err := w.barrier.Arrive(bg, job.RunID, job.Stage, job.ID)
	if err != nil {
		logger.Error("barrier arrive failed", "run", job.RunID, "stage", job.Stage, "err", err)
		return out
	}
	if len(next) > 0 {
		logger.Debug("stage released", "run", job.RunID, "stage", next[0].Stage, "jobs", len(next))
	}
	for _, j := range next {
		j.EnqueuedAt = time.Now().UTC()
		if err := w.queue.Push(bg, j, 0); err != nil {
			logger.Error("enqueue failed", "job", j.ID, "err", err)
		}
	}
	return out
}

// QueueDispatcher hands runs to workers through a queue and barrier.
type QueueDispatcher struct {
	Queue   jobqueue.Queue
	Barrier jobqueue.Barrier
}

// Dispatch records the run's layout and enqueues its first stage.
func (d QueueDispatcher) Dispatch(ctx context.Context, run *jobqueue.Run) error {
	if len(run.Stages) == 0 {
		return nil
	}
	if err := d.Barrier.SaveRun(ctx, run); err != nil {
		return err
	}
	for _, j := range run.Stages[0] {
		if err := d.Queue.Push(ctx, j, 0); err != nil {
			return err
		}
	}
	return nil
}
