package classify

import (
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/provider/providertest"
)

// testRegistry mirrors the shipped adapters' capabilities in configuration
// order.
func testRegistry() *provider.Registry {
	return provider.NewRegistry(
		providertest.New("crossref", []string{"doi"}, provider.Identifiers, provider.Biblio, provider.Metrics).WithEmits("url", "issn"),
		providertest.New("pubmed", []string{"doi", "pmid", "pmc"}, provider.Identifiers, provider.Biblio, provider.Metrics).WithEmits("doi", "pmid", "pmc"),
		providertest.New("mendeley", []string{"doi", "pmid", "arxiv"}, provider.Biblio, provider.Metrics),
		providertest.New("github", []string{"github", "url"}, provider.Identifiers, provider.Biblio, provider.Metrics, provider.Members).WithEmits("github", "url"),
		providertest.New("dryad", []string{"dryad", "url"}, provider.Identifiers, provider.Biblio, provider.Metrics).WithEmits("doi", "url", "dryad"),
		providertest.New("wikipedia", []string{"doi", "url"}, provider.Metrics),
		providertest.New("webpage", []string{"url"}, provider.Biblio),
	)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		in    []alias.Alias
		genre Genre
		host  string
	}{
		{"doi", []alias.Alias{alias.New("doi", "10.1/x")}, Article, UnknownHost},
		{"pmid", []alias.Alias{alias.New("pmid", "1")}, Article, UnknownHost},
		{"pubmed synonym", []alias.Alias{alias.New("pubmed", "1")}, Article, UnknownHost},
		{"github_repo synonym", []alias.Alias{alias.New("github_repo", "a/b")}, Software, "github"},
		{"uri synonym", []alias.Alias{alias.New("uri", "https://github.com/a/b")}, Software, "github"},
		{"arxiv", []alias.Alias{alias.New("arxiv", "1234.5678")}, Article, "arxiv"},
		{"github alias", []alias.Alias{alias.New("github", "a/b")}, Software, "github"},
		{"github url", []alias.Alias{alias.New("url", "https://github.com/a/b")}, Software, "github"},
		{"dryad doi", []alias.Alias{alias.New("doi", "10.5061/dryad.8515")}, Dataset, "dryad"},
		{"figshare url", []alias.Alias{alias.New("url", "https://figshare.com/articles/x/1")}, Dataset, "figshare"},
		{"slides", []alias.Alias{alias.New("url", "http://www.slideshare.net/a/b")}, Slides, "slideshare"},
		{"tweet", []alias.Alias{alias.New("url", "https://x.com/a/status/1")}, Twitter, "twitter"},
		{"video", []alias.Alias{alias.New("url", "https://vimeo.com/1")}, Video, "vimeo"},
		{"blog", []alias.Alias{alias.New("blog", "http://blog.example.org")}, Blog, UnknownHost},
		{"webpage", []alias.Alias{alias.New("url", "http://example.org/page")}, Webpage, UnknownHost},
		{"nothing", nil, Unknown, UnknownHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			genre, host := Classify(alias.NewSet(tt.in...))
			if genre != tt.genre || host != tt.host {
				t.Errorf("Classify() = %s, %s, want %s, %s", genre, host, tt.genre, tt.host)
			}
		})
	}
}

func TestPlanDOIScenario(t *testing.T) {
	pl := NewPlanner(testRegistry())
	plan := pl.Plan(alias.NewSet(alias.New("doi", "10.1/x")), false)

	if len(plan.Stages) != 3 {
		t.Fatalf("Plan() has %d stages, want 3: %+v", len(plan.Stages), plan)
	}
	checks := []struct {
		op   provider.Operation
		want []string
	}{
		{provider.Identifiers, []string{"pubmed", "crossref"}},
		{provider.Biblio, []string{"crossref", "pubmed", "mendeley", "webpage"}},
		{provider.Metrics, []string{"crossref", "pubmed", "mendeley", "github", "dryad", "wikipedia"}},
	}
	for i, c := range checks {
		if plan.Stages[i].Operation != c.op || plan.Stages[i].Index != i {
			t.Errorf("stage %d = %s (index %d)", i, plan.Stages[i].Operation, plan.Stages[i].Index)
		}
		if got := plan.Providers(c.op); !slices.Equal(got, c.want) {
			t.Errorf("%s providers = %v, want %v", c.op, got, c.want)
		}
	}
	if plan.Jobs() != 12 {
		t.Errorf("Jobs() = %d, want 12", plan.Jobs())
	}
}

func TestPlanSkips(t *testing.T) {
	pl := NewPlanner(testRegistry())

	t.Run("url known skips identifiers", func(t *testing.T) {
		plan := pl.Plan(alias.NewSet(alias.New("doi", "10.1/x"), alias.New("url", "http://x.org")), false)
		if got := plan.Providers(provider.Identifiers); got != nil {
			t.Errorf("identifiers = %v, want none", got)
		}
		if plan.Stages[0].Operation != provider.Biblio || plan.Stages[0].Index != 0 {
			t.Errorf("first stage = %+v, want biblio at index 0", plan.Stages[0])
		}
	})

	t.Run("title known skips biblio", func(t *testing.T) {
		plan := pl.Plan(alias.NewSet(alias.New("doi", "10.1/x")), true)
		if got := plan.Providers(provider.Biblio); got != nil {
			t.Errorf("biblio = %v, want none", got)
		}
		// without a biblio stage no url is projected unless identifiers emit one
		if got := plan.Providers(provider.Metrics); !slices.Contains(got, "wikipedia") {
			t.Errorf("metrics = %v, want wikipedia", got)
		}
	})

	t.Run("host rooted", func(t *testing.T) {
		plan := pl.Plan(alias.NewSet(alias.New("github", "a/b")), false)
		if got := plan.Providers(provider.Identifiers); !slices.Equal(got, []string{"github"}) {
			t.Errorf("identifiers = %v", got)
		}
		if got := plan.Providers(provider.Biblio); !slices.Equal(got, []string{"github", "webpage"}) {
			t.Errorf("biblio = %v, want host API before the page scraper", got)
		}
	})

	t.Run("webpage", func(t *testing.T) {
		plan := pl.Plan(alias.NewSet(alias.New("url", "http://example.org")), false)
		if got := plan.Providers(provider.Biblio); !slices.Equal(got, []string{"webpage"}) {
			t.Errorf("biblio = %v", got)
		}
	})

	t.Run("pmid only keeps pubmed", func(t *testing.T) {
		plan := pl.Plan(alias.NewSet(alias.New("pmid", "123")), false)
		if got := plan.Providers(provider.Identifiers); !slices.Equal(got, []string{"pubmed"}) {
			t.Errorf("identifiers = %v, want crossref filtered out", got)
		}
		// pubmed projects doi, so crossref can still describe it
		if got := plan.Providers(provider.Biblio); !slices.Contains(got, "crossref") {
			t.Errorf("biblio = %v, want crossref", got)
		}
	})

	t.Run("synonym namespace routed like its canonical name", func(t *testing.T) {
		got := pl.Plan(alias.NewSet(alias.Alias{Namespace: "pubmed", Identifier: "123"}), false)
		want := pl.Plan(alias.NewSet(alias.New("pmid", "123")), false)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Plan(pubmed:123) = %+v, want %+v", got, want)
		}
		if got.Jobs() == 0 {
			t.Error("Plan(pubmed:123) has no jobs")
		}
	})

	t.Run("missing providers", func(t *testing.T) {
		plan := NewPlanner(provider.NewRegistry()).Plan(alias.NewSet(alias.New("doi", "10.1/x")), false)
		if len(plan.Stages) != 0 {
			t.Errorf("Plan() over empty registry = %+v", plan)
		}
	})
}

func TestPlanDeterministic(t *testing.T) {
	pl := NewPlanner(testRegistry())
	in := []alias.Alias{alias.New("pmid", "1"), alias.New("doi", "10.1/x"), alias.New("github", "a/b")}
	first := pl.Plan(alias.NewSet(in...), false)
	for range 20 {
		slices.Reverse(in)
		if got := pl.Plan(alias.NewSet(in...), false); !reflect.DeepEqual(got, first) {
			t.Fatalf("Plan() differs between runs:\n%+v\n%+v", got, first)
		}
	}
}

func TestToDOT(t *testing.T) {
	plan := NewPlanner(testRegistry()).Plan(alias.NewSet(alias.New("doi", "10.1/x")), false)
	dot := ToDOT(plan)
	for _, want := range []string{
		"digraph plan {",
		`start [label="article / unknown", shape=oval];`,
		"subgraph cluster_0 {",
		`label="1: identifiers";`,
		`"0:pubmed" [label="pubmed"];`,
		`start -> "0:pubmed";`,
		`"0:crossref" -> barrier_0;`,
		`barrier_0 -> "1:crossref";`,
		`label="3: metrics";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q\n%s", want, dot)
		}
	}
}
