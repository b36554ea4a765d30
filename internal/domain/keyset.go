package domain

import "sort"

// KeySet is a set of refs present in a destination tab.
type KeySet map[int64]struct{}

// NewKeySet builds a set from refs.
func NewKeySet(refs ...int64) KeySet {
	s := make(KeySet, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

// Add inserts ref.
func (s KeySet) Add(ref int64) { s[ref] = struct{}{} }

// Has reports whether ref is present.
func (s KeySet) Has(ref int64) bool {
	_, ok := s[ref]
	return ok
}

// Len returns the number of refs.
func (s KeySet) Len() int { return len(s) }

// Sorted returns the refs in ascending order.
func (s KeySet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
