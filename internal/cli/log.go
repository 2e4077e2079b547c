// Package cli implements the impactrefresh command-line interface.
//
// Commands either act on the store directly (status, show, dedup), start
// refreshes for workers to pick up (register, refresh), or run the long-lived
// processes (worker, serve). refresh --local runs the whole refresh in the
// calling process, which needs no Redis.
//
// # Commands
//
//   - register: create or find an artifact by alias and refresh it
//   - refresh: refresh a known artifact, optionally waiting for the result
//   - status, show: report progress and the stored record
//   - classify: print the refresh plan for a set of aliases
//   - dedup: find artifacts that share an alias
//   - worker, serve: run the job worker and the HTTP API
//   - cache: manage the provider response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "refreshed 7 jobs (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, or log.Default() when
// none is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
