package alias

import "slices"

// Set is an insertion-ordered collection of aliases in which no two members
// share a [Alias.Key]. The zero value is an empty set ready to use.
//
// A Set is not safe for concurrent mutation.
type Set struct {
	items []Alias
	keys  map[string]struct{}
}

// NewSet returns a set holding the canonical forms of as, dropping duplicates.
func NewSet(as ...Alias) *Set {
	s := &Set{}
	for _, a := range as {
		s.Add(a)
	}
	return s
}

// FromMap builds a set from the namespace → identifiers form.
// Namespaces are visited in sorted order so the result is deterministic.
func FromMap(m map[string][]string) *Set {
	s := &Set{}
	nss := make([]string, 0, len(m))
	for ns := range m {
		nss = append(nss, ns)
	}
	slices.Sort(nss)
	for _, ns := range nss {
		for _, id := range m[ns] {
			s.Add(New(ns, id))
		}
	}
	return s
}

// Add inserts a if no member shares its key and reports whether it was added.
func (s *Set) Add(a Alias) bool {
	a = New(a.Namespace, a.Identifier)
	if a.Namespace == "" || a.Identifier == "" {
		return false
	}
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	k := a.Key()
	if _, ok := s.keys[k]; ok {
		return false
	}
	s.keys[k] = struct{}{}
	s.items = append(s.items, a)
	return true
}

// Union adds every alias in as and returns the ones that were new.
func (s *Set) Union(as ...Alias) []Alias {
	var added []Alias
	for _, a := range as {
		if s.Add(a) {
			added = append(added, New(a.Namespace, a.Identifier))
		}
	}
	return added
}

// Has reports whether a member shares a's key.
func (s *Set) Has(a Alias) bool {
	if s == nil || s.keys == nil {
		return false
	}
	_, ok := s.keys[a.Key()]
	return ok
}

// HasNamespace reports whether any member lives in ns.
func (s *Set) HasNamespace(ns string) bool {
	return len(s.Get(ns)) > 0
}

// Get returns the identifiers stored under ns, in insertion order.
func (s *Set) Get(ns string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, a := range s.items {
		if a.Namespace == ns {
			out = append(out, a.Identifier)
		}
	}
	return out
}

// First returns the first identifier stored under ns.
func (s *Set) First(ns string) (string, bool) {
	ids := s.Get(ns)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Namespaces returns the distinct namespaces present, sorted.
func (s *Set) Namespaces() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.items {
		if !seen[a.Namespace] {
			seen[a.Namespace] = true
			out = append(out, a.Namespace)
		}
	}
	slices.Sort(out)
	return out
}

// Items returns a copy of the members in insertion order.
func (s *Set) Items() []Alias {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items)
}

// Len returns the number of members.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Map returns the namespace → identifiers form.
func (s *Set) Map() map[string][]string {
	m := make(map[string][]string)
	if s == nil {
		return m
	}
	for _, a := range s.items {
		m[a.Namespace] = append(m[a.Namespace], a.Identifier)
	}
	return m
}

// Keys returns the dedup keys of all members, in insertion order.
func (s *Set) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.items))
	for i, a := range s.items {
		out[i] = a.Key()
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	if s == nil {
		return &Set{}
	}
	return NewSet(s.items...)
}
