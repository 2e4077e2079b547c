package merge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/retry"
	"github.com/matzehuels/impactrefresh/pkg/store/memory"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type stepClock struct{ n atomic.Int64 }

func (c *stepClock) Now() time.Time { return t0.Add(time.Duration(c.n.Add(1)) * time.Second) }

func setup(t *testing.T, aliases ...alias.Alias) (*Merger, *memory.Store, string) {
	t.Helper()
	s := memory.New()
	a := artifact.New(t0, aliases...)
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	clock := &stepClock{}
	return New(s, Options{Now: clock.Now}), s, a.ID
}

func TestApplyIdentifiersIdempotent(t *testing.T) {
	ctx := context.Background()
	m, s, id := setup(t, alias.New("doi", "10.1/x"))
	res := provider.Result{Operation: provider.Identifiers, Provider: "pubmed",
		Aliases: []alias.Alias{alias.New("pmid", "123"), alias.New("DOI", "https://doi.org/10.1/X"), alias.New("pubmed", "123")}}

	ch, err := m.Apply(ctx, id, res)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if len(ch.Aliases) != 1 || ch.Aliases[0] != alias.New("pmid", "123") {
		t.Errorf("Apply() added %v, want only pmid:123", ch.Aliases)
	}
	before, _ := s.Get(ctx, id)

	ch, err = m.Apply(ctx, id, res)
	if err != nil || !ch.Empty() {
		t.Errorf("second Apply() = %+v, %v, want no change", ch, err)
	}
	after, _ := s.Get(ctx, id)
	if after.Version != before.Version {
		t.Errorf("second Apply() wrote version %d -> %d", before.Version, after.Version)
	}
	if len(after.Aliases) != 2 {
		t.Errorf("aliases = %v", after.Aliases)
	}
}

func TestApplyInvalidAliasesSkipped(t *testing.T) {
	m, s, id := setup(t, alias.New("doi", "10.1/x"))
	ch, err := m.Apply(context.Background(), id, provider.Result{Operation: provider.Identifiers,
		Aliases: []alias.Alias{alias.New("pmid", "abc"), alias.New("url", "ftp://x"), alias.New("issn", "1234-5678")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ch.Aliases) != 1 || ch.Aliases[0].Namespace != "issn" {
		t.Errorf("added %v, want only the issn", ch.Aliases)
	}
	a, _ := s.Get(context.Background(), id)
	if len(a.Aliases) != 2 {
		t.Errorf("stored aliases = %v", a.Aliases)
	}
}

func TestWritable(t *testing.T) {
	present := func(v any) artifact.BiblioField { return artifact.BiblioField{Name: "f", Value: v, Provider: "crossref"} }
	tests := []struct {
		name     string
		existing artifact.BiblioField
		field    string
		value    any
		want     bool
	}{
		{"absent", artifact.BiblioField{}, "title", "T", true},
		{"present", present("Old"), "title", "New", false},
		{"placeholder", present("AOP"), "volume", "12", true},
		{"placeholder case", present(" aop "), "volume", "12", true},
		{"always current", present(false), "is_oa", true, true},
		{"canonical id", present("a"), "canonical_id", "b", true},
		{"fulltext", present("http://a"), "free_fulltext_url", "http://b", true},
		{"always current unchanged", present(true), "is_oa", true, false},
		{"decoded float unchanged", present(float64(7)), "oa_id", 7, false},
		{"decoded int32 unchanged", present(int32(7)), "oa_id", int64(7), false},
		{"decoded list unchanged", present([]any{"a", "b"}), "canonical_id", []string{"a", "b"}, false},
		{"decoded map unchanged", present(map[string]any{"n": float64(1)}), "canonical_id", map[string]int{"n": 1}, false},
		{"number changed", present(float64(7)), "oa_id", 8, true},
		{"empty value", artifact.BiblioField{}, "title", "  ", false},
		{"nil value", artifact.BiblioField{}, "title", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Writable(tt.existing, tt.field, tt.value); got != tt.want {
				t.Errorf("Writable(%v, %q, %v) = %v, want %v", tt.existing.Value, tt.field, tt.value, got, tt.want)
			}
		})
	}
}

func TestApplyBiblio(t *testing.T) {
	ctx := context.Background()
	m, s, id := setup(t, alias.New("doi", "10.1/x"))

	first := provider.Result{Operation: provider.Biblio, Provider: "crossref",
		Biblio: map[string]any{"title": "A Study", "volume": "AOP", "is_oa": false}}
	ch, err := m.Apply(ctx, id, first)
	if err != nil || len(ch.Fields) != 3 {
		t.Fatalf("Apply(crossref) = %+v, %v", ch, err)
	}

	second := provider.Result{Operation: provider.Biblio, Provider: "pubmed",
		Biblio: map[string]any{"title": "Another Title", "volume": "12", "is_oa": true, "year": 2015}}
	ch, err = m.Apply(ctx, id, second)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ch.Fields) != "[is_oa volume year]" {
		t.Errorf("Apply(pubmed) wrote %v", ch.Fields)
	}

	a, _ := s.Get(ctx, id)
	if a.Biblio["title"].Value != "A Study" || a.Biblio["title"].Provider != "crossref" {
		t.Errorf("title = %+v, want first writer kept", a.Biblio["title"])
	}
	if a.Biblio["volume"].Value != "12" || a.Biblio["is_oa"].Value != true {
		t.Errorf("biblio = %+v", a.Biblio)
	}

	v := a.Version
	if ch, _ := m.Apply(ctx, id, second); !ch.Empty() {
		t.Errorf("re-applying biblio wrote %v", ch.Fields)
	}
	if a, _ := s.Get(ctx, id); a.Version != v {
		t.Error("re-applying biblio bumped the version")
	}
}

func TestUpsertBiblioField(t *testing.T) {
	m, _, id := setup(t)
	ok, err := m.UpsertBiblioField(context.Background(), id, artifact.BiblioField{Name: "title", Value: "T", Provider: "webpage"})
	if err != nil || !ok {
		t.Errorf("UpsertBiblioField() = %v, %v", ok, err)
	}
	ok, _ = m.UpsertBiblioField(context.Background(), id, artifact.BiblioField{Name: "title", Value: "U", Provider: "webpage"})
	if ok {
		t.Error("UpsertBiblioField() overwrote a present title")
	}
}

func TestApplyMetricsAppendOnly(t *testing.T) {
	ctx := context.Background()
	m, s, id := setup(t, alias.New("github", "a/b"))
	res := provider.Result{Operation: provider.Metrics, Provider: "github",
		Metrics: []provider.Metric{{Name: "stars", Value: 10}, {Name: "forks", Value: 2}, {Name: "broken", Value: nil}}}

	for range 2 {
		if _, err := m.Apply(ctx, id, res); err != nil {
			t.Fatal(err)
		}
	}
	a, _ := s.Get(ctx, id)
	if len(a.Metrics) != 4 {
		t.Fatalf("observations = %d, want 4", len(a.Metrics))
	}
	if !a.Metrics[0].CollectedAt.Before(a.Metrics[2].CollectedAt) {
		t.Error("second application not stamped later")
	}
	cur := a.Current()
	if len(cur) != 2 || cur[1].Metric != "stars" || cur[1].Value != 10 {
		t.Errorf("Current() = %+v", cur)
	}

	if err := m.AppendMetricObservation(ctx, id, artifact.Observation{Provider: "github", Metric: "stars", Value: 11}); err != nil {
		t.Fatal(err)
	}
	a, _ = s.Get(ctx, id)
	if len(a.Metrics) != 5 || a.Current()[1].Value != 11 {
		t.Errorf("after append: %d observations, current %+v", len(a.Metrics), a.Current())
	}
}

func TestApplyMissingArtifact(t *testing.T) {
	m, _, _ := setup(t)
	_, err := m.Apply(context.Background(), "missing", provider.Result{Operation: provider.Metrics,
		Metrics: []provider.Metric{{Name: "x", Value: 1}}})
	if !apperr.Is(err, apperr.ErrCodeNotFound) {
		t.Errorf("Apply(missing) error = %v, want NOT_FOUND", err)
	}
}

// contendedStore fails the first n Puts with a conflict.
type contendedStore struct {
	*memory.Store
	n atomic.Int64
}

func (s *contendedStore) Put(ctx context.Context, a *artifact.Artifact) error {
	if s.n.Add(-1) >= 0 {
		return artifact.ErrConflict
	}
	return s.Store.Put(ctx, a)
}

func TestConflictRetry(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	a := artifact.New(t0)
	base.Create(ctx, a)
	policy := retry.Policy{Attempts: 4, Base: time.Millisecond}

	s := &contendedStore{Store: base}
	s.n.Store(3)
	m := New(s, Options{Retry: policy})
	if _, err := m.UpsertAliases(ctx, a.ID, []alias.Alias{alias.New("pmid", "1")}); err != nil {
		t.Fatalf("UpsertAliases() after 3 conflicts error: %v", err)
	}

	s.n.Store(10)
	_, err := m.UpsertAliases(ctx, a.ID, []alias.Alias{alias.New("pmid", "2")})
	if !apperr.Is(err, apperr.ErrCodeServerError) {
		t.Errorf("UpsertAliases() after exhausted retries error = %v, want SERVER_ERROR", err)
	}
}

func TestConcurrentMerges(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := artifact.New(t0)
	s.Create(ctx, a)
	m := New(s, Options{Retry: retry.Policy{Attempts: 1000, Base: time.Microsecond, Max: time.Millisecond, Jitter: 1}})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := m.UpsertAliases(ctx, a.ID, []alias.Alias{alias.New("pmid", fmt.Sprint(i+1))}); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := m.Apply(ctx, a.ID, provider.Result{Operation: provider.Metrics, Provider: "p",
				Metrics: []provider.Metric{{Name: "m", Value: i}}}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, a.ID)
	if len(got.Aliases) != 20 || len(got.Metrics) != 20 {
		t.Errorf("after concurrent merges: %d aliases, %d observations, want 20 each", len(got.Aliases), len(got.Metrics))
	}
}
