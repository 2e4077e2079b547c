// Package observability lets the pipeline, the response cache and the
// provider HTTP client report events without importing a metrics backend.
//
// Each event category has a hook interface with a no-op default. A process
// installs real hooks once at startup; libraries fetch the current hooks at
// the call site, so installation order does not matter to them.
//
// The [prometheus] subpackage implements every hook interface on top of
// Prometheus collectors.
//
// # Usage
//
// Register hooks at application startup:
//
//	c := prometheus.NewCollector(reg)
//	observability.SetJobHooks(c)
//	observability.SetCacheHooks(c)
//	observability.SetHTTPHooks(c)
//
// Libraries call hooks to emit events:
//
//	observability.Jobs().OnJobStart(ctx, provider, op)
//	// ... call the provider ...
//	observability.Jobs().OnJobComplete(ctx, provider, op, outcome, duration)
//
// [prometheus]: github.com/matzehuels/impactrefresh/pkg/observability/prometheus
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Job Hooks
// =============================================================================

// JobHooks receives events from the refresh pipeline.
type JobHooks interface {
	// OnRunStart records a refresh run with its stage and job counts.
	OnRunStart(ctx context.Context, artifactID string, stages, jobs int)

	// OnJobStart records a job about to call its provider.
	OnJobStart(ctx context.Context, provider, op string)

	// OnJobComplete records a job outcome (completed, skipped, dropped,
	// abandoned or retry).
	OnJobComplete(ctx context.Context, provider, op, outcome string, duration time.Duration)

	// OnThrottle records a limiter refusal and the wait it imposed.
	OnThrottle(ctx context.Context, provider string, wait time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from provider HTTP calls.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopJobHooks is a no-op implementation of JobHooks.
type NoopJobHooks struct{}

func (NoopJobHooks) OnRunStart(context.Context, string, int, int)                         {}
func (NoopJobHooks) OnJobStart(context.Context, string, string)                           {}
func (NoopJobHooks) OnJobComplete(context.Context, string, string, string, time.Duration) {}
func (NoopJobHooks) OnThrottle(context.Context, string, time.Duration)                    {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	jobHooks   JobHooks   = NoopJobHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetJobHooks installs h. A nil h is ignored.
func SetJobHooks(h JobHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		jobHooks = h
	}
}

// SetCacheHooks installs h. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks installs h. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Jobs returns the registered job hooks.
func Jobs() JobHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return jobHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores the no-op hooks.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	jobHooks = NoopJobHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
