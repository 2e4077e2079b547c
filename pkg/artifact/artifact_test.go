package artifact

import (
	"testing"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
)

func TestNew(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	a := New(now, alias.New("DOI", "10.1/X"), alias.New("doi", "10.1/x"), alias.New("url", "http://x"))
	if a.ID == "" || a.Version != 0 {
		t.Errorf("New() id=%q version=%d", a.ID, a.Version)
	}
	if len(a.Aliases) != 2 {
		t.Errorf("New() aliases = %v, want duplicates folded", a.Aliases)
	}
	if !a.CreatedAt.Equal(now) || a.Biblio == nil {
		t.Errorf("New() = %+v", a)
	}
	keys := a.AliasKeys()
	if len(keys) != 2 || keys[0] != "doi:10.1/x" {
		t.Errorf("AliasKeys() = %v", keys)
	}
}

func TestCurrent(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Artifact{Metrics: []Observation{
		{Provider: "github", Metric: "stars", Value: 1, CollectedAt: t0},
		{Provider: "crossref", Metric: "citations", Value: 5, CollectedAt: t0},
		{Provider: "github", Metric: "stars", Value: 3, CollectedAt: t0.Add(time.Hour)},
		{Provider: "github", Metric: "stars", Value: 2, CollectedAt: t0.Add(time.Minute)},
	}}

	cur := a.Current()
	if len(cur) != 2 {
		t.Fatalf("Current() = %v, want 2 series", cur)
	}
	if cur[0].Key() != "crossref:citations" || cur[1].Key() != "github:stars" {
		t.Errorf("Current() order = %s, %s", cur[0].Key(), cur[1].Key())
	}
	if cur[1].Value != 3 {
		t.Errorf("Current() github:stars = %v, want latest value 3", cur[1].Value)
	}
}

func TestTitle(t *testing.T) {
	a := &Artifact{Biblio: map[string]BiblioField{}}
	if _, ok := a.Title(); ok {
		t.Error("Title() on empty biblio reported a title")
	}
	a.Biblio["title"] = BiblioField{Name: "title", Value: "  "}
	if _, ok := a.Title(); ok {
		t.Error("Title() accepted a blank title")
	}
	a.Biblio["title"] = BiblioField{Name: "title", Value: "AOP"}
	if _, ok := a.Title(); ok {
		t.Error("Title() accepted the ahead-of-print placeholder")
	}
	a.Biblio["title"] = BiblioField{Name: "title", Value: "Deep Learning"}
	if got, ok := a.Title(); !ok || got != "Deep Learning" {
		t.Errorf("Title() = %q, %v", got, ok)
	}
}

func TestClone(t *testing.T) {
	a := New(time.Now(), alias.New("doi", "10.1/x"))
	a.Biblio["title"] = BiblioField{Name: "title", Value: "A"}
	c := a.Clone()
	c.Aliases = append(c.Aliases, alias.New("pmid", "1"))
	c.Biblio["year"] = BiblioField{Name: "year", Value: 2020}
	c.Metrics = append(c.Metrics, Observation{Provider: "p", Metric: "m"})
	if len(a.Aliases) != 1 || len(a.Biblio) != 1 || len(a.Metrics) != 0 {
		t.Errorf("Clone() shares state: %+v", a)
	}
}
