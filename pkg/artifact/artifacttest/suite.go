// Package artifacttest holds the behavior every artifact.Store backend must
// share, runnable against any backend from its own tests.
package artifacttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
)

// Run exercises newStore's backend. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) artifact.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreateGet", func(t *testing.T) {
		s := newStore(t)
		a := artifact.New(now, alias.New("doi", "10.1/x"))
		a.Biblio["title"] = artifact.BiblioField{Name: "title", Value: "T", Provider: "crossref", CollectedAt: now}
		if err := s.Create(ctx, a); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if a.Version != 1 {
			t.Errorf("Create() version = %d, want 1", a.Version)
		}
		got, err := s.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got.Version != 1 || len(got.Aliases) != 1 || got.Biblio["title"].Value != "T" {
			t.Errorf("Get() = %+v", got)
		}
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutVersion", func(t *testing.T) {
		s := newStore(t)
		a := artifact.New(now, alias.New("doi", "10.1/x"))
		if err := s.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		first, _ := s.Get(ctx, a.ID)
		second, _ := s.Get(ctx, a.ID)

		first.Metrics = append(first.Metrics, artifact.Observation{Provider: "p", Metric: "m", Value: 1, CollectedAt: now})
		if err := s.Put(ctx, first); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		if first.Version != 2 {
			t.Errorf("Put() version = %d, want 2", first.Version)
		}
		second.Aliases = append(second.Aliases, alias.New("pmid", "1"))
		if err := s.Put(ctx, second); !errors.Is(err, artifact.ErrConflict) {
			t.Errorf("stale Put() error = %v, want ErrConflict", err)
		}
		got, _ := s.Get(ctx, a.ID)
		if len(got.Metrics) != 1 || len(got.Aliases) != 1 {
			t.Errorf("stale Put() changed the stored artifact: %+v", got)
		}
	})

	t.Run("FindByAlias", func(t *testing.T) {
		s := newStore(t)
		a := artifact.New(now, alias.New("doi", "10.1/abc"), alias.New("url", "http://x.org"))
		if err := s.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		got, err := s.FindByAlias(ctx, alias.New("doi", "https://doi.org/10.1/ABC"))
		if err != nil || got.ID != a.ID {
			t.Errorf("FindByAlias(doi) = %v, %v", got, err)
		}
		got, err = s.FindByAlias(ctx, alias.New("uri", "http://x.org"))
		if err != nil || got.ID != a.ID {
			t.Errorf("FindByAlias(uri synonym) = %v, %v", got, err)
		}
		if _, err := s.FindByAlias(ctx, alias.New("pmid", "1")); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("FindByAlias(missing) error = %v, want ErrNotFound", err)
		}

		// aliases added later are indexed too
		a.Aliases = append(a.Aliases, alias.New("pmid", "77"))
		if err := s.Put(ctx, a); err != nil {
			t.Fatal(err)
		}
		if got, err := s.FindByAlias(ctx, alias.New("pubmed", "77")); err != nil || got.ID != a.ID {
			t.Errorf("FindByAlias(after Put) = %v, %v", got, err)
		}
	})

	t.Run("Scan", func(t *testing.T) {
		s := newStore(t)
		for i := range 3 {
			a := artifact.New(now.Add(time.Duration(i)*time.Minute), alias.New("pmid", string(rune('1'+i))))
			if err := s.Create(ctx, a); err != nil {
				t.Fatal(err)
			}
		}
		n := 0
		if err := s.Scan(ctx, func(*artifact.Artifact) error { n++; return nil }); err != nil {
			t.Fatalf("Scan() error: %v", err)
		}
		if n != 3 {
			t.Errorf("Scan() visited %d, want 3", n)
		}
		stop := errors.New("stop")
		if err := s.Scan(ctx, func(*artifact.Artifact) error { return stop }); !errors.Is(err, stop) {
			t.Errorf("Scan() error = %v, want callback error", err)
		}
	})
}
