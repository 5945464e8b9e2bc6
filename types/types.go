// Package types holds the small generic containers shared across the tlc
// compiler packages. Currently only Set.
package types

// Set implements a Set for the key type T.
//
// The compiler uses it for variable sets (output hints, defined-variable
// scopes). Iteration order of a Set is not deterministic: anything that
// leaves the compiler in an externally visible order must be sorted
// explicitly first.
type Set[T comparable] map[T]struct{}

// MakeSet returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func MakeSet[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// SetWith creates a Set[T] with the given elements inserted.
func SetWith[T comparable](elements ...T) Set[T] {
	s := MakeSet[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int { return len(s) }
