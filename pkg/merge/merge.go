// Package merge folds provider results into stored artifacts.
//
// Every write is a read-modify-write guarded by the artifact's version.
// When another writer got there first the merger re-reads and re-applies,
// so concurrent jobs for the same artifact never lose each other's data and
// callers never see a version conflict.
//
// The rules:
//   - aliases are unioned by dedup key
//   - a biblio field is written when absent, when it still holds the "AOP"
//     placeholder, or when it is one of the always-current fields
//   - every metric reading is appended as a new observation
//
// Re-applying the same identifier or biblio result changes nothing.
package merge

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
	apperr "github.com/matzehuels/impactrefresh/pkg/errors"
	"github.com/matzehuels/impactrefresh/pkg/provider"
	"github.com/matzehuels/impactrefresh/pkg/retry"
)

// Placeholder is the ahead-of-print value a later provider may replace.
const Placeholder = artifact.Placeholder

// alwaysCurrent lists biblio fields the latest provider always overwrites.
var alwaysCurrent = map[string]bool{
	"is_oa":             true,
	"oa_id":             true,
	"canonical_id":      true,
	"free_fulltext_url": true,
}

// ConflictPolicy bounds re-reads after version conflicts.
var ConflictPolicy = retry.Policy{Attempts: 10, Base: 10 * time.Millisecond, Max: 500 * time.Millisecond, Jitter: 0.5}

// Options configures a Merger.
type Options struct {
	Now    func() time.Time // clock for timestamps; nil uses time.Now
	Retry  retry.Policy     // conflict policy; zero uses ConflictPolicy
	Logger *log.Logger
}

// Merger applies provider results to artifacts in a store.
type Merger struct {
	store  artifact.Store
	now    func() time.Time
	policy retry.Policy
	logger *log.Logger
}

// New returns a merger writing to store.
func New(store artifact.Store, opts Options) *Merger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = ConflictPolicy
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Merger{store: store, now: opts.Now, policy: opts.Retry, logger: opts.Logger}
}

// Change summarizes what one merge wrote.
type Change struct {
	Aliases      []alias.Alias // newly added aliases
	Fields       []string      // biblio fields written
	Observations int           // metric observations appended
}

// Empty reports whether nothing was written.
func (c Change) Empty() bool {
	return len(c.Aliases) == 0 && len(c.Fields) == 0 && c.Observations == 0
}

// Apply merges res into the artifact id according to res.Operation.
func (m *Merger) Apply(ctx context.Context, id string, res provider.Result) (Change, error) {
	var (
		change Change
		err    error
	)
	switch res.Operation {
	case provider.Identifiers, provider.Members:
		change.Aliases, err = m.UpsertAliases(ctx, id, res.Aliases)
	case provider.Biblio:
		change.Fields, err = m.upsertBiblio(ctx, id, res.Provider, res.Biblio)
	case provider.Metrics:
		change.Observations, err = m.appendMetrics(ctx, id, res.Provider, res.Metrics)
	default:
		return change, apperr.New(apperr.ErrCodeUnsupported, "merge: unknown operation %s", res.Operation)
	}
	if err != nil {
		return change, err
	}
	if !change.Empty() {
		m.logger.Debug("merged", "artifact", id, "provider", res.Provider, "op", res.Operation,
			"aliases", len(change.Aliases), "fields", len(change.Fields), "observations", change.Observations)
	}
	return change, nil
}

// UpsertAliases adds the aliases whose keys the artifact does not hold yet
// and returns them. Invalid aliases are skipped.
func (m *Merger) UpsertAliases(ctx context.Context, id string, aliases []alias.Alias) ([]alias.Alias, error) {
	var valid []alias.Alias
	for _, a := range aliases {
		a = alias.New(a.Namespace, a.Identifier)
		if err := apperr.ValidateAlias(a.Namespace, a.Identifier); err != nil {
			m.logger.Debug("alias skipped", "artifact", id, "alias", a, "err", err)
			continue
		}
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return nil, nil
	}

	var added []alias.Alias
	err := m.update(ctx, id, func(a *artifact.Artifact) bool {
		set := a.AliasSet()
		added = set.Union(valid...)
		a.Aliases = set.Items()
		return len(added) > 0
	})
	return added, err
}

// UpsertBiblioField writes f if the fill rule allows it and reports whether
// it did.
func (m *Merger) UpsertBiblioField(ctx context.Context, id string, f artifact.BiblioField) (bool, error) {
	written, err := m.upsertBiblio(ctx, id, f.Provider, map[string]any{f.Name: f.Value})
	return len(written) > 0, err
}

func (m *Merger) upsertBiblio(ctx context.Context, id, prov string, fields map[string]any) ([]string, error) {
	var written []string
	err := m.update(ctx, id, func(a *artifact.Artifact) bool {
		written = written[:0]
		if a.Biblio == nil {
			a.Biblio = make(map[string]artifact.BiblioField)
		}
		now := m.now().UTC()
		for name, value := range fields {
			if !Writable(a.Biblio[name], name, value) {
				continue
			}
			a.Biblio[name] = artifact.BiblioField{Name: name, Value: value, Provider: prov, CollectedAt: now}
			written = append(written, name)
		}
		slices.Sort(written)
		return len(written) > 0
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// Writable reports whether value may replace existing under the fill rule.
// A zero existing field means the field is absent.
func Writable(existing artifact.BiblioField, name string, value any) bool {
	if isEmpty(value) {
		return false
	}
	if existing.Name == "" && existing.Value == nil {
		return true
	}
	if reflect.DeepEqual(normalize(existing.Value), normalize(value)) {
		return false
	}
	if artifact.IsPlaceholder(existing.Value) {
		return true
	}
	return alwaysCurrent[name]
}

// normalize maps v onto the shapes a JSON decoder produces, so a value read
// back from a store compares equal to the one a provider returned: numbers
// become float64, slices []any and string-keyed maps map[string]any.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// AppendMetricObservation appends o, stamping it with the merger's clock.
func (m *Merger) AppendMetricObservation(ctx context.Context, id string, o artifact.Observation) error {
	_, err := m.appendMetrics(ctx, id, o.Provider, []provider.Metric{{Name: o.Metric, Value: o.Value, DrilldownURL: o.DrilldownURL}})
	return err
}

func (m *Merger) appendMetrics(ctx context.Context, id, prov string, metrics []provider.Metric) (int, error) {
	var n int
	err := m.update(ctx, id, func(a *artifact.Artifact) bool {
		n = 0
		now := m.now().UTC()
		for _, mt := range metrics {
			if mt.Value == nil || mt.Name == "" {
				continue
			}
			a.Metrics = append(a.Metrics, artifact.Observation{
				Provider:     prov,
				Metric:       mt.Name,
				Value:        mt.Value,
				DrilldownURL: mt.DrilldownURL,
				CollectedAt:  now,
			})
			n++
		}
		return n > 0
	})
	return n, err
}

// update applies fn to a fresh copy of the artifact and stores it when fn
// reports a change, re-reading on version conflicts.
func (m *Merger) update(ctx context.Context, id string, fn func(*artifact.Artifact) bool) error {
	err := retry.Do(ctx, m.policy, isConflict, func(ctx context.Context) error {
		a, err := m.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !fn(a) {
			return nil
		}
		a.UpdatedAt = m.now().UTC()
		return m.store.Put(ctx, a)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.ErrCodeTimeout, err, "merge into %s", id)
	case errors.Is(err, artifact.ErrNotFound):
		return apperr.Wrap(apperr.ErrCodeNotFound, err, "merge into %s", id)
	case isConflict(err):
		return apperr.Wrap(apperr.ErrCodeServerError, err, "merge into %s: write contention", id)
	}
	return apperr.Wrap(apperr.ErrCodeServerError, err, "merge into %s", id)
}

func isConflict(err error) bool { return errors.Is(err, artifact.ErrConflict) }
