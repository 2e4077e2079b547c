// Package jobqueue carries refresh jobs between processes.
//
// A [Queue] delivers jobs by priority, holding retried jobs back until their
// delay elapses. A [Barrier] remembers the later stages of each run and
// releases a stage's jobs exactly once, to whichever worker finishes the
// last job of the stage before it.
//
// Both have an in-process and a Redis implementation.
package jobqueue

import (
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Priority orders delivery. High jobs are delivered before Low ones.
type Priority int

const (
	Low Priority = iota
	High
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

// Job is one provider call for one artifact.
type Job struct {
	ID         string             `json:"id"`
	RunID      string             `json:"run_id"`
	ArtifactID string             `json:"artifact_id"`
	Stage      int                `json:"stage"`
	Operation  provider.Operation `json:"operation"`
	Provider   string             `json:"provider"`
	Priority   Priority           `json:"priority"`
	// Aliases is a snapshot for jobs that must not wait on a store read.
	// When nil the executor reads the artifact's current aliases.
	Aliases    []alias.Alias `json:"aliases,omitempty"`
	Attempt    int           `json:"attempt"`
	Throttled  int           `json:"throttled"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Run is the full job layout of one refresh, stage by stage.
type Run struct {
	ID         string   `json:"id"`
	ArtifactID string   `json:"artifact_id"`
	Priority   Priority `json:"priority"`
	Stages     [][]Job  `json:"stages"`
}

// Jobs returns the total number of jobs in the run.
func (r *Run) Jobs() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s)
	}
	return n
}
