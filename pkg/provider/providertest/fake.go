// Package providertest provides a scriptable provider for tests.
package providertest

import (
	"context"
	"sync"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Fake is a provider whose capabilities and responses are set by the test.
// Operations not enabled are reported as unsupported. Unset response
// functions return empty results.
type Fake struct {
	name       string
	namespaces []string
	emits      []string
	ops        map[provider.Operation]bool

	IdentifiersFunc func(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error)
	BiblioFunc      func(ctx context.Context, aliases *alias.Set) (map[string]any, error)
	MetricsFunc     func(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error)
	MembersFunc     func(ctx context.Context, query string) ([]alias.Alias, error)

	mu    sync.Mutex
	calls map[provider.Operation]int
}

// New returns a fake called name that accepts namespaces and supports ops.
func New(name string, namespaces []string, ops ...provider.Operation) *Fake {
	f := &Fake{
		name:       name,
		namespaces: namespaces,
		ops:        make(map[provider.Operation]bool),
		calls:      make(map[provider.Operation]int),
	}
	for _, op := range ops {
		f.ops[op] = true
	}
	return f
}

// WithEmits sets the namespaces identifier discovery may produce.
func (f *Fake) WithEmits(ns ...string) *Fake {
	f.emits = ns
	return f
}

func (f *Fake) Name() string                       { return f.name }
func (f *Fake) Namespaces() []string               { return f.namespaces }
func (f *Fake) Emits() []string                    { return f.emits }
func (f *Fake) Enabled(op provider.Operation) bool { return f.ops[op] }

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op provider.Operation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) record(op provider.Operation) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *Fake) DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error) {
	f.record(provider.Identifiers)
	if f.IdentifiersFunc == nil {
		return nil, nil
	}
	return f.IdentifiersFunc(ctx, aliases)
}

func (f *Fake) DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error) {
	f.record(provider.Biblio)
	if f.BiblioFunc == nil {
		return nil, nil
	}
	return f.BiblioFunc(ctx, aliases)
}

func (f *Fake) DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]provider.Metric, error) {
	f.record(provider.Metrics)
	if f.MetricsFunc == nil {
		return nil, nil
	}
	return f.MetricsFunc(ctx, aliases)
}

func (f *Fake) DiscoverMembers(ctx context.Context, query string) ([]alias.Alias, error) {
	f.record(provider.Members)
	if f.MembersFunc == nil {
		return nil, nil
	}
	return f.MembersFunc(ctx, query)
}

var (
	_ provider.IdentifierDiscoverer = (*Fake)(nil)
	_ provider.BiblioDiscoverer     = (*Fake)(nil)
	_ provider.MetricsDiscoverer    = (*Fake)(nil)
	_ provider.MemberDiscoverer     = (*Fake)(nil)
	_ provider.OperationFilter      = (*Fake)(nil)
)
