package pipeline

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/merge"
	"github.com/matzehuels/impactrefresh/pkg/observability"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/ratelimit"
	"github.com/matzehuels/impactrefresh/pkg/retry"
)

// Defaults for ExecutorOptions.
const (
	DefaultJobTimeout         = 120 * time.Second
	DefaultThrottleJitter     = 2 * time.Second
	DefaultMaxThrottleRetries = 100
)

// Status is how a job execution ended.
type Status int

const (
	// Completed means the provider answered and the result was merged.
	Completed Status = iota
	// Skipped means the provider accepts none of the artifact's aliases.
	Skipped
	// Dropped means the job failed in a way retrying cannot fix.
	Dropped
	// Abandoned means the job ran out of retries.
	Abandoned
	// Retry means the job should run again after Outcome.Delay.
	Retry
)

var statusNames = [...]string{"completed", "skipped", "dropped", "abandoned", "retry"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Terminal reports whether the job is finished.
func (s Status) Terminal() bool { return s != Retry }

// Outcome is the result of one Execute.
type Outcome struct {
	Status Status
	// Job is the executed job with its attempt counters advanced. A Retry
	// outcome is re-run from this value.
	Job    jobqueue.Job
	Delay  time.Duration
	Change merge.Change
	Err    error
}

// ExecutorOptions configures an Executor. Zero values select the defaults.
type ExecutorOptions struct {
	Retry              retry.Policy
	JobTimeout         time.Duration
	Timeouts           map[string]time.Duration // per-provider JobTimeout
	ThrottleJitter     time.Duration
	MaxThrottleRetries int
	Logger             *log.Logger
}

func (o *ExecutorOptions) setDefaults() {
	if o.Retry.Attempts == 0 {
		o.Retry = retry.Default
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
	if o.ThrottleJitter < 0 {
		o.ThrottleJitter = 0
	} else if o.ThrottleJitter == 0 {
		o.ThrottleJitter = DefaultThrottleJitter
	}
	if o.MaxThrottleRetries <= 0 {
		o.MaxThrottleRetries = DefaultMaxThrottleRetries
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Executor runs single jobs. It is safe for concurrent use.
type Executor struct {
	registry *provider.Registry
	store    artifact.Store
	limiter  ratelimit.Limiter
	merger   *merge.Merger
	opts     ExecutorOptions
}

// NewExecutor returns an executor calling providers from registry and
// merging into store through merger.
func NewExecutor(registry *provider.Registry, store artifact.Store, limiter ratelimit.Limiter, merger *merge.Merger, opts ExecutorOptions) *Executor {
	opts.setDefaults()
	return &Executor{registry: registry, store: store, limiter: limiter, merger: merger, opts: opts}
}

// Execute runs job once. It never blocks on the limiter: a refused call
// comes back as a Retry outcome carrying the wait.
func (e *Executor) Execute(ctx context.Context, job jobqueue.Job) Outcome {
	start := time.Now()
	out := e.execute(ctx, job)
	observability.Jobs().OnJobComplete(ctx, job.Provider, job.Operation.String(), out.Status.String(), time.Since(start))

	logger := e.opts.Logger.With("artifact", job.ArtifactID, "provider", job.Provider, "op", job.Operation, "job", job.ID)
	switch out.Status {
	case Completed:
		logger.Debug("job completed", "aliases", len(out.Change.Aliases), "fields", len(out.Change.Fields), "observations", out.Change.Observations)
	case Skipped:
		logger.Debug("job skipped")
	case Dropped:
		logger.Warn("job dropped", "err", out.Err)
	case Abandoned:
		logger.Error("job abandoned", "attempt", out.Job.Attempt, "throttled", out.Job.Throttled, "err", out.Err)
	case Retry:
		logger.Debug("job retry", "attempt", out.Job.Attempt, "wait", out.Delay, "err", out.Err)
	}
	return out
}

func (e *Executor) execute(ctx context.Context, job jobqueue.Job) Outcome {
	p, ok := e.registry.Get(job.Provider)
	if !ok {
		return Outcome{Status: Dropped, Job: job, Err: apperr.New(apperr.ErrCodeConfiguration, "provider %q is not configured", job.Provider)}
	}
	if !provider.Supports(p, job.Operation) {
		return Outcome{Status: Dropped, Job: job, Err: apperr.New(apperr.ErrCodeUnsupported, "%s does not support %s", job.Provider, job.Operation)}
	}

	aliases, err := e.aliases(ctx, job)
	if err != nil {
		return e.fail(job, err)
	}
	if !provider.Accepts(p, aliases) {
		return Outcome{Status: Skipped, Job: job}
	}

	dec, err := e.limiter.Acquire(ctx, job.Provider)
	if err != nil || !dec.Allowed {
		return e.throttle(ctx, job, dec.Wait, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout(job.Provider))
	defer cancel()

	observability.Jobs().OnJobStart(ctx, job.Provider, job.Operation.String())
	res, err := provider.Call(callCtx, p, job.Operation, aliases)
	if err != nil {
		if apperr.GetCode(err) == "" && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = apperr.Wrap(apperr.ErrCodeTimeout, err, "%s %s", job.Provider, job.Operation)
		}
		return e.fail(job, err)
	}

	change, err := e.merger.Apply(ctx, job.ArtifactID, res)
	if err != nil {
		return e.fail(job, err)
	}
	return Outcome{Status: Completed, Job: job, Change: change}
}

// aliases returns the job's snapshot, or the artifact's current aliases.
func (e *Executor) aliases(ctx context.Context, job jobqueue.Job) (*alias.Set, error) {
	if job.Aliases != nil {
		return alias.NewSet(job.Aliases...), nil
	}
	a, err := e.store.Get(ctx, job.ArtifactID)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		return nil, apperr.Wrap(apperr.ErrCodeNotFound, err, "artifact %s", job.ArtifactID)
	case err != nil:
		return nil, apperr.Wrap(apperr.ErrCodeServerError, err, "load artifact %s", job.ArtifactID)
	}
	return a.AliasSet(), nil
}

func (e *Executor) throttle(ctx context.Context, job jobqueue.Job, wait time.Duration, err error) Outcome {
	job.Throttled++
	if job.Throttled > e.opts.MaxThrottleRetries {
		return Outcome{Status: Abandoned, Job: job, Err: apperr.New(apperr.ErrCodeRateLimited, "%s: throttled %d times", job.Provider, job.Throttled-1)}
	}
	if e.opts.ThrottleJitter > 0 {
		wait += rand.N(e.opts.ThrottleJitter)
	}
	observability.Jobs().OnThrottle(ctx, job.Provider, wait)
	return Outcome{Status: Retry, Job: job, Delay: wait, Err: err}
}

// fail applies the job error policy: transient failures are retried with
// backoff, never sooner than a provider's own retry hint, everything else
// drops the job.
func (e *Executor) fail(job jobqueue.Job, err error) Outcome {
	if !apperr.IsRetryable(err) {
		return Outcome{Status: Dropped, Job: job, Err: err}
	}
	job.Attempt++
	if e.opts.Retry.Exhausted(job.Attempt) {
		return Outcome{Status: Abandoned, Job: job, Err: err}
	}
	delay := max(e.opts.Retry.Delay(job.Attempt), apperr.RetryAfter(err))
	return Outcome{Status: Retry, Job: job, Delay: delay, Err: err}
}

func (e *Executor) timeout(name string) time.Duration {
	if d, ok := e.opts.Timeouts[name]; ok && d > 0 {
		return d
	}
	return e.opts.JobTimeout
}
