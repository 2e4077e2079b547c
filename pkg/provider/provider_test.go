package provider_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/provider/providertest"
)

func TestOperationText(t *testing.T) {
	for _, op := range provider.Operations {
		b, _ := op.MarshalText()
		var back provider.Operation
		if err := back.UnmarshalText(b); err != nil || back != op {
			t.Errorf("round trip of %v = %v, %v", op, back, err)
		}
	}
	if _, err := provider.ParseOperation("scrape"); !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("ParseOperation(scrape) error = %v", err)
	}
}

func TestSupportsAndAccepts(t *testing.T) {
	p := providertest.New("crossref", []string{"doi"}, provider.Identifiers, provider.Biblio)

	tests := []struct {
		op   provider.Operation
		want bool
	}{
		{provider.Identifiers, true},
		{provider.Biblio, true},
		{provider.Metrics, false},
		{provider.Members, false},
	}
	for _, tt := range tests {
		if got := provider.Supports(p, tt.op); got != tt.want {
			t.Errorf("Supports(%v) = %v, want %v", tt.op, got, tt.want)
		}
	}

	if !provider.Accepts(p, alias.NewSet(alias.New("doi", "10.1/x"))) {
		t.Error("Accepts(doi) = false")
	}
	if provider.Accepts(p, alias.NewSet(alias.New("url", "http://x"))) {
		t.Error("Accepts(url) = true")
	}
	if provider.Accepts(p, nil) {
		t.Error("Accepts(nil) = true")
	}
}

func TestCall(t *testing.T) {
	ctx := context.Background()
	set := alias.NewSet(alias.New("doi", "10.1/x"))

	p := providertest.New("crossref", []string{"doi"}, provider.Identifiers, provider.Metrics)
	p.IdentifiersFunc = func(context.Context, *alias.Set) ([]alias.Alias, error) {
		return []alias.Alias{alias.New("url", "http://dx.doi.org/10.1/x")}, nil
	}
	p.MetricsFunc = func(context.Context, *alias.Set) ([]provider.Metric, error) {
		return nil, apperr.New(apperr.ErrCodeServerError, "status 503")
	}

	res, err := provider.Call(ctx, p, provider.Identifiers, set)
	if err != nil {
		t.Fatalf("Call(identifiers) error: %v", err)
	}
	if res.Provider != "crossref" || res.Operation != provider.Identifiers || len(res.Aliases) != 1 {
		t.Errorf("Call(identifiers) = %+v", res)
	}

	if _, err := provider.Call(ctx, p, provider.Metrics, set); !apperr.Is(err, apperr.ErrCodeServerError) {
		t.Errorf("Call(metrics) error = %v, want SERVER_ERROR", err)
	}

	if _, err := provider.Call(ctx, p, provider.Biblio, set); !apperr.Is(err, apperr.ErrCodeUnsupported) {
		t.Errorf("Call(biblio) error = %v, want UNSUPPORTED", err)
	}
	if p.Calls(provider.Biblio) != 0 {
		t.Error("declined operation reached the provider")
	}
}

func TestCallMembers(t *testing.T) {
	p := providertest.New("github", []string{"github"}, provider.Members)
	var got string
	p.MembersFunc = func(_ context.Context, query string) ([]alias.Alias, error) {
		got = query
		return []alias.Alias{alias.New("github", query+"/repo")}, nil
	}

	res, err := provider.Call(context.Background(), p, provider.Members, alias.NewSet(alias.New("github", "octocat")))
	if err != nil || got != "octocat" || len(res.Aliases) != 1 {
		t.Errorf("Call(members) = %+v, %v (query %q)", res, err, got)
	}

	_, err = provider.Call(context.Background(), p, provider.Members, alias.NewSet(alias.New("doi", "10.1/x")))
	if !apperr.Is(err, apperr.ErrCodeInvalidInput) {
		t.Errorf("Call(members) without query error = %v", err)
	}
}

func TestBuild(t *testing.T) {
	factories := map[string]provider.Factory{
		"crossref": func(s provider.Spec) (provider.Provider, error) {
			return providertest.New(s.Name, []string{"doi"}, provider.Biblio), nil
		},
		"mendeley": func(s provider.Spec) (provider.Provider, error) {
			if s.Token == "" {
				return nil, apperr.New(apperr.ErrCodeConfiguration, "mendeley: token required")
			}
			return providertest.New(s.Name, []string{"doi"}, provider.Biblio), nil
		},
		"webpage": func(s provider.Spec) (provider.Provider, error) {
			return nil, errors.New("boom")
		},
		"pubmed": func(s provider.Spec) (provider.Provider, error) {
			return providertest.New(s.Name, []string{"pmid"}, provider.Metrics), nil
		},
	}
	specs := []provider.Spec{
		{Name: "pubmed"},
		{Name: "mendeley"},
		{Name: "crossref"},
		{Name: "webpage"},
		{Name: "nosuch"},
		{Name: "Bad-Name"},
		{Name: "pubmed"},
	}

	reg := provider.Build(specs, factories, nil)
	if got := reg.Names(); !slices.Equal(got, []string{"pubmed", "crossref"}) {
		t.Errorf("Names() = %v, want [pubmed crossref]", got)
	}
	if _, ok := reg.Get("mendeley"); ok {
		t.Error("misconfigured provider was registered")
	}
	if got := reg.Capable(provider.Biblio); len(got) != 1 || got[0].Name() != "crossref" {
		t.Errorf("Capable(biblio) = %v", got)
	}
}
