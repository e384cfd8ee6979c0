package util

import (
	"cmp"
	"maps"
	"slices"
)

// Set holds distinct comparable values
type Set[K comparable] map[K]struct{}

// SetOf returns a Set holding the given values
func SetOf[K comparable](values ...K) Set[K] {
	res := make(Set[K], len(values))
	for _, v := range values {
		res.Add(v)
	}
	return res
}

// Add inserts v
func (s Set[K]) Add(v K) {
	s[v] = struct{}{}
}

// Remove deletes v if present
func (s Set[K]) Remove(v K) {
	delete(s, v)
}

// Contains reports whether v is a member
func (s Set[K]) Contains(v K) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members
func (s Set[K]) Len() int {
	return len(s)
}

// IsEmpty reports whether the Set has no members
func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}

// Items returns the members in no particular order
func (s Set[K]) Items() []K {
	return slices.Collect(maps.Keys(s))
}

// Sorted returns the members of an ordered Set in ascending order
func Sorted[K cmp.Ordered](s Set[K]) []K {
	return slices.Sorted(maps.Keys(s))
}
