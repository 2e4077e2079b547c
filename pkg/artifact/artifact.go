package artifact

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/impactrefresh/pkg/alias"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no artifact has the requested id.
	ErrNotFound = errors.New("artifact not found")

	// ErrConflict is returned by Put when the stored version moved on.
	ErrConflict = errors.New("artifact version conflict")
)

// BiblioField is one descriptive field and where it came from.
type BiblioField struct {
	Name        string    `json:"name" bson:"name"`
	Value       any       `json:"value" bson:"value"`
	Provider    string    `json:"provider" bson:"provider"`
	CollectedAt time.Time `json:"collected_at" bson:"collected_at"`
}

// Observation is one metric reading. Observations are never modified.
type Observation struct {
	Provider     string    `json:"provider" bson:"provider"`
	Metric       string    `json:"metric" bson:"metric"`
	Value        any       `json:"value" bson:"value"`
	DrilldownURL string    `json:"drilldown_url,omitempty" bson:"drilldown_url,omitempty"`
	CollectedAt  time.Time `json:"collected_at" bson:"collected_at"`
}

// Key identifies the series an observation belongs to.
func (o Observation) Key() string { return o.Provider + ":" + o.Metric }

// Artifact is the canonical impact record of one research output.
type Artifact struct {
	ID        string                 `json:"id" bson:"_id"`
	Version   int64                  `json:"version" bson:"version"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
	Aliases   []alias.Alias          `json:"aliases" bson:"aliases"`
	Biblio    map[string]BiblioField `json:"biblio" bson:"biblio"`
	Metrics   []Observation          `json:"metrics" bson:"metrics"`
}

// New returns an unsaved artifact with a fresh id holding aliases.
func New(now time.Time, aliases ...alias.Alias) *Artifact {
	return &Artifact{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
		Aliases:   alias.NewSet(aliases...).Items(),
		Biblio:    make(map[string]BiblioField),
	}
}

// AliasSet returns the aliases as a set.
func (a *Artifact) AliasSet() *alias.Set { return alias.NewSet(a.Aliases...) }

// AliasKeys returns the dedup keys of the aliases, for lookup indexes.
func (a *Artifact) AliasKeys() []string { return a.AliasSet().Keys() }

// Placeholder is the value publishers use for fields of articles that are
// not yet in print ("ahead of print").
const Placeholder = "AOP"

// IsPlaceholder reports whether v is the ahead-of-print placeholder.
func IsPlaceholder(v any) bool {
	s, ok := v.(string)
	return ok && strings.EqualFold(strings.TrimSpace(s), Placeholder)
}

// Title returns the biblio title, if one is known. A placeholder title
// counts as unknown.
func (a *Artifact) Title() (string, bool) {
	f, ok := a.Biblio["title"]
	if !ok {
		return "", false
	}
	s, ok := f.Value.(string)
	return s, ok && strings.TrimSpace(s) != "" && !IsPlaceholder(s)
}

// Current returns the latest observation of every (provider, metric) series,
// ordered by provider then metric.
func (a *Artifact) Current() []Observation {
	latest := make(map[string]Observation)
	for _, o := range a.Metrics {
		prev, ok := latest[o.Key()]
		if !ok || !o.CollectedAt.Before(prev.CollectedAt) {
			latest[o.Key()] = o
		}
	}
	out := make([]Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	slices.SortFunc(out, func(x, y Observation) int { return strings.Compare(x.Key(), y.Key()) })
	return out
}

// Clone returns a deep copy of the artifact's containers. Field and
// observation values are shared.
func (a *Artifact) Clone() *Artifact {
	c := *a
	c.Aliases = slices.Clone(a.Aliases)
	c.Metrics = slices.Clone(a.Metrics)
	c.Biblio = make(map[string]BiblioField, len(a.Biblio))
	for k, v := range a.Biblio {
		c.Biblio[k] = v
	}
	return &c
}

// Store persists artifacts.
type Store interface {
	// Get returns the artifact with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Artifact, error)

	// Create inserts a new artifact at version 1.
	Create(ctx context.Context, a *Artifact) error

	// Put replaces the artifact if its stored version equals a.Version,
	// then increments a.Version. It returns ErrConflict otherwise.
	Put(ctx context.Context, a *Artifact) error

	// FindByAlias returns the artifact holding an alias with a's key, or
	// ErrNotFound.
	FindByAlias(ctx context.Context, a alias.Alias) (*Artifact, error)

	// Scan calls fn for every artifact until fn returns an error.
	Scan(ctx context.Context, fn func(*Artifact) error) error

	// Close releases the backend.
	Close() error
}
