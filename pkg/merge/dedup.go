package merge

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/impactrefresh/pkg/artifact"
)

// Group is a set of artifacts that share at least one alias, directly or
// through a chain of other members.
type Group struct {
	Canonical  string   `json:"canonical"`
	Duplicates []string `json:"duplicates"`
}

// unionFind is a disjoint-set forest over artifact ids.
type unionFind struct {
	parent map[string]string
}

func (u *unionFind) find(x string) string {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}

// Dedup scans store and groups artifacts that share an alias key. The
// canonical member of a group is the earliest created, ties broken by the
// smallest id. Artifacts without duplicates are not reported. Groups are
// ordered by canonical id.
func Dedup(ctx context.Context, store artifact.Store) ([]Group, error) {
	uf := &unionFind{parent: make(map[string]string)}
	created := make(map[string]time.Time)
	owner := make(map[string]string)

	err := store.Scan(ctx, func(a *artifact.Artifact) error {
		uf.parent[a.ID] = a.ID
		created[a.ID] = a.CreatedAt
		for _, k := range a.AliasKeys() {
			if other, ok := owner[k]; ok {
				uf.union(other, a.ID)
				continue
			}
			owner[k] = a.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	members := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		members[root] = append(members[root], id)
	}

	var groups []Group
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		slices.SortFunc(ids, func(a, b string) int {
			if c := created[a].Compare(created[b]); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		dups := slices.Clone(ids[1:])
		slices.Sort(dups)
		groups = append(groups, Group{Canonical: ids[0], Duplicates: dups})
	}
	slices.SortFunc(groups, func(a, b Group) int { return strings.Compare(a.Canonical, b.Canonical) })
	return groups, nil
}

// Redirects maps every duplicate id to its group's canonical id.
func Redirects(groups []Group) map[string]string {
	out := make(map[string]string)
	for _, g := range groups {
		for _, d := range g.Duplicates {
			out[d] = g.Canonical
		}
	}
	return out
}
