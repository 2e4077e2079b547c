package app

import (
	"time"

	"github.com/matzehuels/impactrefresh/pkg/cache"
	"github.com/matzehuels/impactrefresh/pkg/integrations"
	"github.com/matzehuels/impactrefresh/pkg/integrations/crossref"
	"github.com/matzehuels/impactrefresh/pkg/integrations/dryad"
	"github.com/matzehuels/impactrefresh/pkg/integrations/figshare"
	"github.com/matzehuels/impactrefresh/pkg/integrations/github"
	"github.com/matzehuels/impactrefresh/pkg/integrations/mendeley"
	"github.com/matzehuels/impactrefresh/pkg/integrations/pubmed"
	"github.com/matzehuels/impactrefresh/pkg/integrations/webpage"
	"github.com/matzehuels/impactrefresh/pkg/integrations/wikipedia"
	"github.com/matzehuels/impactrefresh/pkg/provider"
)

// Factories returns a constructor for every built-in adapter. Adapters share
// backend as their response cache.
func Factories(backend cache.Cache, ttl time.Duration) map[string]provider.Factory {
	cfg := func(s provider.Spec) integrations.Config {
		return integrations.Config{Cache: backend, TTL: ttl, Token: s.Token, BaseURL: s.Options["base_url"]}
	}
	return map[string]provider.Factory{
		"crossref":  func(s provider.Spec) (provider.Provider, error) { return crossref.New(cfg(s)), nil },
		"pubmed":    func(s provider.Spec) (provider.Provider, error) { return pubmed.New(cfg(s)), nil },
		"webpage":   func(s provider.Spec) (provider.Provider, error) { return webpage.New(cfg(s)), nil },
		"github":    func(s provider.Spec) (provider.Provider, error) { return github.New(cfg(s)), nil },
		"dryad":     func(s provider.Spec) (provider.Provider, error) { return dryad.New(cfg(s)), nil },
		"figshare":  func(s provider.Spec) (provider.Provider, error) { return figshare.New(cfg(s)), nil },
		"wikipedia": func(s provider.Spec) (provider.Provider, error) { return wikipedia.New(cfg(s)), nil },
		"mendeley": func(s provider.Spec) (provider.Provider, error) {
			c, err := mendeley.New(cfg(s))
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
