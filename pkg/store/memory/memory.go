// Package memory is an in-process artifact store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matzehuels/impactrefresh/pkg/alias"
	"github.com/matzehuels/impactrefresh/pkg/artifact"
)

// Store keeps artifacts in maps guarded by a mutex. Values are copied on
// the way in and out, so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*artifact.Artifact
	byAlias map[string]string
	order   []string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*artifact.Artifact),
		byAlias: make(map[string]string),
	}
}

func (s *Store) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) Create(ctx context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return fmt.Errorf("create %s: %w", a.ID, artifact.ErrConflict)
	}
	a.Version = 1
	s.byID[a.ID] = a.Clone()
	s.order = append(s.order, a.ID)
	s.index(a)
	return nil
}

func (s *Store) Put(ctx context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[a.ID]
	if !ok {
		return artifact.ErrNotFound
	}
	if cur.Version != a.Version {
		return artifact.ErrConflict
	}
	for _, k := range cur.AliasKeys() {
		if s.byAlias[k] == a.ID {
			delete(s.byAlias, k)
		}
	}
	a.Version++
	s.byID[a.ID] = a.Clone()
	s.index(a)
	return nil
}

func (s *Store) index(a *artifact.Artifact) {
	for _, k := range a.AliasKeys() {
		if _, taken := s.byAlias[k]; !taken {
			s.byAlias[k] = a.ID
		}
	}
}

func (s *Store) FindByAlias(ctx context.Context, a alias.Alias) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAlias[a.Key()]
	if !ok {
		return nil, artifact.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Scan visits artifacts in creation order over a snapshot taken at the start.
func (s *Store) Scan(ctx context.Context, fn func(*artifact.Artifact) error) error {
	s.mu.RLock()
	snapshot := make([]*artifact.Artifact, 0, len(s.order))
	for _, id := range slices.Clone(s.order) {
		snapshot = append(snapshot, s.byID[id].Clone())
	}
	s.mu.RUnlock()

	for _, a := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) Close() error { return nil }

var _ artifact.Store = (*Store)(nil)
