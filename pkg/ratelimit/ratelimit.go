// Package ratelimit bounds how often each provider is called.
//
// The limiter keeps a sliding log per provider: a call is allowed when fewer
// than Rule.Limit calls were admitted during the last Rule.Window. A refused
// call learns how long to wait before the oldest admission leaves the
// window. The limiter never blocks; callers decide what to do with the wait.
//
// Two backends share the algorithm:
//   - [Memory] for a single process
//   - [Redis] for a fleet of workers, evaluated atomically on the server
//     with the server's clock
package ratelimit

import (
	"context"
	"time"
)

// DefaultRule admits 25 calls per second.
var DefaultRule = Rule{Limit: 25, Window: time.Second}

// Rule is the admission bound for one provider.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Valid reports whether r can admit anything.
func (r Rule) Valid() bool { return r.Limit > 0 && r.Window > 0 }

// Decision is the outcome of one Acquire.
type Decision struct {
	Allowed bool
	// Wait is how long to back off before asking again. Zero when allowed.
	Wait time.Duration
}

// Limiter admits or refuses calls to a provider.
type Limiter interface {
	// Acquire records one call to provider if the rule allows it. When the
	// backend is unreachable it returns a refusal together with the error.
	Acquire(ctx context.Context, provider string) (Decision, error)
}

// Rules maps provider names to their rules. Providers without an entry use
// Default, or DefaultRule when Default is unset.
type Rules struct {
	Default     Rule
	PerProvider map[string]Rule
}

// For returns the rule for provider.
func (rs Rules) For(provider string) Rule {
	if r, ok := rs.PerProvider[provider]; ok && r.Valid() {
		return r
	}
	if rs.Default.Valid() {
		return rs.Default
	}
	return DefaultRule
}
