// Package status tracks how many jobs of an artifact's refresh are still
// outstanding, so clients can poll until the record is ready.
//
// Begin adds jobs to the artifact's counter and pushes back its expiry.
// Complete retires one job; a job id is only ever counted once, so a
// redelivered job cannot drive the counter below the number of jobs really
// outstanding. The counter expires on its own, so an artifact whose jobs
// were lost stops reporting as updating after the TTL.
package status

import (
	"context"
	"time"
)

// DefaultTTL is how long a counter survives without a new Begin.
const DefaultTTL = 30 * time.Minute

// Tracker counts outstanding jobs per artifact.
type Tracker interface {
	// Begin adds n outstanding jobs for id and resets its expiry.
	Begin(ctx context.Context, id string, n int) error

	// Complete retires jobID and returns how many jobs remain. Completing
	// the same job id again has no effect.
	Complete(ctx context.Context, id, jobID string) (int, error)

	// IsUpdating reports whether id has unexpired outstanding jobs.
	IsUpdating(ctx context.Context, id string) (bool, error)

	// Outstanding returns the number of unexpired outstanding jobs.
	Outstanding(ctx context.Context, id string) (int, error)
}
