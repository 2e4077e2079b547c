package provider

import (
	"context"
	"fmt"
	"slices"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
)

// Operation is one of the four things a provider can be asked to do.
type Operation int

const (
	Identifiers Operation = iota
	Biblio
	Metrics
	Members
)

var operationNames = [...]string{"identifiers", "biblio", "metrics", "members"}

// Operations lists every operation in stage order.
var Operations = []Operation{Identifiers, Biblio, Metrics, Members}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation is the inverse of [Operation.String].
func ParseOperation(s string) (Operation, error) {
	for i, n := range operationNames {
		if n == s {
			return Operation(i), nil
		}
	}
	return 0, apperr.New(apperr.ErrCodeInvalidInput, "unknown operation %q", s)
}

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operation) UnmarshalText(b []byte) error {
	op, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Provider is the part of the contract every adapter implements.
type Provider interface {
	// Name is the configuration and rate-limit key.
	Name() string
	// Namespaces lists the alias namespaces the provider can work from.
	Namespaces() []string
	// Emits lists the namespaces identifier discovery may add.
	Emits() []string
}

// IdentifierDiscoverer finds further aliases for an artifact.
type IdentifierDiscoverer interface {
	DiscoverIdentifiers(ctx context.Context, aliases *alias.Set) ([]alias.Alias, error)
}

// BiblioDiscoverer finds descriptive metadata.
type BiblioDiscoverer interface {
	DiscoverBiblio(ctx context.Context, aliases *alias.Set) (map[string]any, error)
}

// MetricsDiscoverer reads impact metrics.
type MetricsDiscoverer interface {
	DiscoverMetrics(ctx context.Context, aliases *alias.Set) ([]Metric, error)
}

// MemberDiscoverer lists the aliases belonging to an account or collection.
type MemberDiscoverer interface {
	DiscoverMembers(ctx context.Context, query string) ([]alias.Alias, error)
}

// OperationFilter lets a provider decline an operation whose method it
// implements, for example when a credential that operation needs is absent.
type OperationFilter interface {
	Enabled(op Operation) bool
}

// Metric is one metric value with the page it was read from.
type Metric struct {
	Name         string `json:"name"`
	Value        any    `json:"value"`
	DrilldownURL string `json:"drilldown_url,omitempty"`
}

// Result is what one provider call contributes.
type Result struct {
	Operation Operation      `json:"operation"`
	Provider  string         `json:"provider"`
	Aliases   []alias.Alias  `json:"aliases,omitempty"`
	Biblio    map[string]any `json:"biblio,omitempty"`
	Metrics   []Metric       `json:"metrics,omitempty"`
}

// Empty reports whether r carries no data.
func (r Result) Empty() bool {
	return len(r.Aliases) == 0 && len(r.Biblio) == 0 && len(r.Metrics) == 0
}

// Supports reports whether p implements op and has not declined it.
func Supports(p Provider, op Operation) bool {
	if f, ok := p.(OperationFilter); ok && !f.Enabled(op) {
		return false
	}
	switch op {
	case Identifiers:
		_, ok := p.(IdentifierDiscoverer)
		return ok
	case Biblio:
		_, ok := p.(BiblioDiscoverer)
		return ok
	case Metrics:
		_, ok := p.(MetricsDiscoverer)
		return ok
	case Members:
		_, ok := p.(MemberDiscoverer)
		return ok
	}
	return false
}

// Accepts reports whether p accepts at least one namespace present in aliases.
func Accepts(p Provider, aliases *alias.Set) bool {
	return AcceptsAny(p, aliases.Namespaces())
}

// AcceptsAny reports whether p accepts at least one of namespaces.
func AcceptsAny(p Provider, namespaces []string) bool {
	for _, ns := range p.Namespaces() {
		if slices.Contains(namespaces, ns) {
			return true
		}
	}
	return false
}

// Call runs op on p. Unsupported operations fail with UNSUPPORTED.
// For [Members] the query is the first alias in an accepted namespace.
func Call(ctx context.Context, p Provider, op Operation, aliases *alias.Set) (Result, error) {
	res := Result{Operation: op, Provider: p.Name()}
	if f, ok := p.(OperationFilter); ok && !f.Enabled(op) {
		return res, unsupported(p, op)
	}
	var err error

	switch op {
	case Identifiers:
		d, ok := p.(IdentifierDiscoverer)
		if !ok {
			return res, unsupported(p, op)
		}
		res.Aliases, err = d.DiscoverIdentifiers(ctx, aliases)
	case Biblio:
		d, ok := p.(BiblioDiscoverer)
		if !ok {
			return res, unsupported(p, op)
		}
		res.Biblio, err = d.DiscoverBiblio(ctx, aliases)
	case Metrics:
		d, ok := p.(MetricsDiscoverer)
		if !ok {
			return res, unsupported(p, op)
		}
		res.Metrics, err = d.DiscoverMetrics(ctx, aliases)
	case Members:
		d, ok := p.(MemberDiscoverer)
		if !ok {
			return res, unsupported(p, op)
		}
		query, found := memberQuery(p, aliases)
		if !found {
			return res, apperr.New(apperr.ErrCodeInvalidInput, "%s: no alias to list members of", p.Name())
		}
		res.Aliases, err = d.DiscoverMembers(ctx, query)
	default:
		return res, unsupported(p, op)
	}
	return res, err
}

func memberQuery(p Provider, aliases *alias.Set) (string, bool) {
	for _, ns := range p.Namespaces() {
		if id, ok := aliases.First(ns); ok {
			return id, true
		}
	}
	return "", false
}

func unsupported(p Provider, op Operation) error {
	return apperr.New(apperr.ErrCodeUnsupported, "%s does not support %s", p.Name(), op)
}
