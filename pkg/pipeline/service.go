package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	"github.com/matzehuels/impactrefresh/pkg/classify"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
	"github.com/matzehuels/impactrefresh/pkg/observability"
	"github.com/matzehuels/impactrefresh/pkg/status"
)

// Dispatcher starts a run. [Runner] runs it in place; [QueueDispatcher]
// hands it to workers.
type Dispatcher interface {
	Dispatch(ctx context.Context, run *jobqueue.Run) error
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Now    func() time.Time
	Logger *log.Logger
}

// Service registers artifacts and starts their refreshes.
type Service struct {
	store    artifact.Store
	planner  *classify.Planner
	builder  *Builder
	tracker  status.Tracker
	dispatch Dispatcher
	now      func() time.Time
	logger   *log.Logger
}

// NewService returns a service planning with planner and starting runs
// through dispatch.
func NewService(store artifact.Store, planner *classify.Planner, tracker status.Tracker, dispatch Dispatcher, opts ServiceOptions) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Service{
		store:    store,
		planner:  planner,
		builder:  NewBuilder(opts.Now),
		tracker:  tracker,
		dispatch: dispatch,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// Register finds the artifact holding a, creating it when there is none,
// and starts a high-priority refresh of it.
func (s *Service) Register(ctx context.Context, a alias.Alias) (*artifact.Artifact, *jobqueue.Run, error) {
	a = alias.New(a.Namespace, a.Identifier)
	if err := apperr.ValidateAlias(a.Namespace, a.Identifier); err != nil {
		return nil, nil, err
	}

	art, err := s.store.FindByAlias(ctx, a)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		art = artifact.New(s.now(), a)
		if err := s.store.Create(ctx, art); err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrCodeInternal, err, "create artifact for %s", a)
		}
		s.logger.Info("artifact created", "artifact", art.ID, "alias", a)
	case err != nil:
		return nil, nil, apperr.Wrap(apperr.ErrCodeInternal, err, "find artifact for %s", a)
	}

	run, err := s.start(ctx, art, jobqueue.High)
	return art, run, err
}

// Refresh starts a low-priority refresh of the artifact id.
func (s *Service) Refresh(ctx context.Context, id string) (*jobqueue.Run, error) {
	art, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		return nil, apperr.Wrap(apperr.ErrCodeNotFound, err, "artifact %s", id)
	case err != nil:
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "load artifact %s", id)
	}
	return s.start(ctx, art, jobqueue.Low)
}

// Plan returns the plan a refresh of art would follow.
func (s *Service) Plan(art *artifact.Artifact) classify.Plan {
	_, hasTitle := art.Title()
	return s.planner.Plan(art.AliasSet(), hasTitle)
}

func (s *Service) start(ctx context.Context, art *artifact.Artifact, priority jobqueue.Priority) (*jobqueue.Run, error) {
	plan := s.Plan(art)
	run := s.builder.Build(art.ID, art.Aliases, plan, priority)
	n := run.Jobs()
	if n == 0 {
		s.logger.Info("nothing to refresh", "artifact", art.ID, "genre", plan.Genre)
		return run, nil
	}

	if err := s.tracker.Begin(ctx, art.ID, n); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "begin refresh of %s", art.ID)
	}
	observability.Jobs().OnRunStart(ctx, art.ID, len(run.Stages), n)
	s.logger.Info("refresh started", "artifact", art.ID, "run", run.ID, "genre", plan.Genre, "host", plan.Host,
		"stages", len(run.Stages), "jobs", n, "priority", priority)

	if err := s.dispatch.Dispatch(ctx, run); err != nil {
		return run, apperr.Wrap(apperr.ErrCodeInternal, err, "dispatch refresh of %s", art.ID)
	}
	return run, nil
}
