// Package ident provides the dense integer interning used by the schema
// graph and query plan so that cross-references inside those structures
// are cheap array indices instead of pointers or strings.
package ident

import "sort"

// ID is a dense, zero-based identifier into some arena. The zero value
// is never issued by an Interner so it can serve as an "unset" sentinel.
type ID uint32

const Invalid ID = 0

// Interner assigns a stable ID to every distinct string it sees. It is
// not safe for concurrent use during the build phase; the Schema Graph
// is built once, single-threaded, and treated as immutable afterwards.
type Interner struct {
	ids     map[string]ID
	strings []string
}

// NewInterner returns an Interner whose ID space starts at 1.
func NewInterner() *Interner {
	return &Interner{
		ids:     make(map[string]ID),
		strings: []string{""}, // index 0 reserved for Invalid
	}
}

// Intern returns the ID for s, allocating a new one if s hasn't been
// seen before.
func (in *Interner) Intern(s string) ID {
	if id, ok := in.ids[s]; ok {
		return id
	}
	id := ID(len(in.strings))
	in.strings = append(in.strings, s)
	in.ids[s] = id
	return id
}

// Lookup returns the ID previously assigned to s, if any.
func (in *Interner) Lookup(s string) (ID, bool) {
	id, ok := in.ids[s]
	return id, ok
}

// String returns the interned string for id. It panics on an out of
// range id, which indicates a bug in the caller rather than bad input.
func (in *Interner) String(id ID) string {
	return in.strings[id]
}

// Len returns the number of distinct strings interned, not counting the
// reserved zero slot.
func (in *Interner) Len() int {
	return len(in.strings) - 1
}

// SortedSet is a sorted, deduplicated []ID used throughout the schema
// graph (exists_in_subgraphs, possible_types, ...) so that membership
// tests can use binary search instead of a map allocation per field.
type SortedSet []ID

// NewSortedSet sorts and deduplicates ids into a SortedSet.
func NewSortedSet(ids []ID) SortedSet {
	cp := append(SortedSet(nil), ids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	out := cp[:0]
	for i, id := range cp {
		if i == 0 || id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is a member of the set.
func (s SortedSet) Contains(id ID) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= id })
	return i < len(s) && s[i] == id
}

// Intersects reports whether s and other share at least one member.
func (s SortedSet) Intersects(other SortedSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch {
		case s[i] == other[j]:
			return true
		case s[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return false
}
