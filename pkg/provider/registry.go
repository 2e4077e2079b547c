package provider

import (
	"io"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
)

// Spec is one entry of the ordered provider configuration.
type Spec struct {
	Name    string
	Token   string
	Options map[string]string
}

// Factory builds a provider from its configuration entry. It returns a
// CONFIGURATION_ERROR when the entry cannot produce a working provider.
type Factory func(Spec) (Provider, error)

// Registry is the ordered set of usable providers. Order is the
// configuration order and doubles as the biblio preference order.
type Registry struct {
	providers []Provider
	byName    map[string]Provider
}

// NewRegistry returns a registry over ps in order. Later duplicates of a
// name are ignored.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if p == nil {
			continue
		}
		if _, dup := r.byName[p.Name()]; dup {
			continue
		}
		r.byName[p.Name()] = p
		r.providers = append(r.providers, p)
	}
	return r
}

// Build constructs a registry from specs using factories. Entries with an
// invalid name, no factory, or a failing factory are logged and excluded.
func Build(specs []Spec, factories map[string]Factory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var ps []Provider
	for _, s := range specs {
		if err := apperr.ValidateProviderName(s.Name); err != nil {
			logger.Warn("provider excluded", "provider", s.Name, "err", err)
			continue
		}
		f, ok := factories[s.Name]
		if !ok {
			logger.Warn("provider excluded", "provider", s.Name,
				"err", apperr.New(apperr.ErrCodeConfiguration, "unknown provider %q", s.Name))
			continue
		}
		p, err := f(s)
		if err != nil {
			if !apperr.Is(err, apperr.ErrCodeConfiguration) {
				err = apperr.Wrap(apperr.ErrCodeConfiguration, err, "provider %s", s.Name)
			}
			logger.Warn("provider excluded", "provider", s.Name, "err", err)
			continue
		}
		ps = append(ps, p)
	}
	return NewRegistry(ps...)
}

// Get returns the provider called name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// All returns the providers in configuration order.
func (r *Registry) All() []Provider {
	return append([]Provider(nil), r.providers...)
}

// Names returns the provider names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Name()
	}
	return out
}

// Capable returns the providers supporting op, in configuration order.
func (r *Registry) Capable(op Operation) []Provider {
	var out []Provider
	for _, p := range r.providers {
		if Supports(p, op) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of providers.
func (r *Registry) Len() int { return len(r.providers) }
