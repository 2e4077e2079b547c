// Package pipeline turns a refresh plan into provider jobs and runs them.
//
// A refresh of one artifact is a [jobqueue.Run]: up to three stages
// (identifiers, biblio, metrics) that execute one after another, with the
// jobs inside a stage running concurrently. A stage only starts once every
// job of the stage before it reached a terminal outcome, so later stages
// see the aliases and title earlier stages stored.
//
// # Architecture
//
//   - [Builder] lays a [classify.Plan] out as jobs
//   - [Executor] runs one job: limiter, provider call, merge
//   - [Runner] drives a whole run inside one process
//   - [Worker] pulls jobs from a shared queue and releases later stages
//     through a [jobqueue.Barrier]
//   - [Service] is the entry point that registers and refreshes artifacts
//
// # Usage
//
//	exec := pipeline.NewExecutor(reg, store, limiter, merger, pipeline.ExecutorOptions{})
//	runner := pipeline.NewRunner(exec, tracker, pipeline.RunnerOptions{Concurrency: 8})
//	svc := pipeline.NewService(store, classify.NewPlanner(reg), tracker, runner, pipeline.ServiceOptions{})
//
//	art, run, err := svc.Register(ctx, alias.New("doi", "10.1371/journal.pone.0000308"))
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/classify"
	"github.com/matzehuels/impactrefresh/pkg/jobqueue"
)

// Builder lays plans out as runs.
type Builder struct {
	newID func() string
	now   func() time.Time
}

// NewBuilder returns a builder that uses random UUIDs for run and job ids.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{newID: uuid.NewString, now: now}
}

// Build returns one job per planned task. Jobs of the first stage carry
// priority and a snapshot of aliases; later jobs are chained at Low priority
// and read the artifact when they run. Stages without tasks are left out.
func (b *Builder) Build(artifactID string, aliases []alias.Alias, plan classify.Plan, priority jobqueue.Priority) *jobqueue.Run {
	run := &jobqueue.Run{
		ID:         b.newID(),
		ArtifactID: artifactID,
		Priority:   priority,
	}
	now := b.now().UTC()
	for _, st := range plan.Stages {
		if len(st.Tasks) == 0 {
			continue
		}
		stage := len(run.Stages)
		jobs := make([]jobqueue.Job, 0, len(st.Tasks))
		for _, t := range st.Tasks {
			j := jobqueue.Job{
				ID:         b.newID(),
				RunID:      run.ID,
				ArtifactID: artifactID,
				Stage:      stage,
				Operation:  t.Operation,
				Provider:   t.Provider,
				Priority:   jobqueue.Low,
				EnqueuedAt: now,
			}
			if stage == 0 {
				j.Priority = priority
				j.Aliases = alias.NewSet(aliases...).Items()
			}
			jobs = append(jobs, j)
		}
		run.Stages = append(run.Stages, jobs)
	}
	return run
}
