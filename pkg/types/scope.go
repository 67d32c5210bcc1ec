package types

// Scope restricts a rule to a set of identifiers (purchasables, categories,
// user groups). The zero value matches nothing.
type Scope struct {
	all bool
	ids map[int64]struct{}
}

// AllowAll returns a scope that matches every candidate.
func AllowAll() Scope {
	return Scope{all: true}
}

// Explicit returns a scope limited to the given identifiers.
func Explicit(ids ...int64) Scope {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Scope{ids: set}
}

// ScopeOf builds a scope from the persisted "all" flag and id list.
func ScopeOf(all bool, ids IDList) Scope {
	if all {
		return AllowAll()
	}
	return Explicit(ids...)
}

// IsAll reports whether the scope is unrestricted.
func (s Scope) IsAll() bool {
	return s.all
}

// Contains reports whether a single identifier is in scope.
func (s Scope) Contains(id int64) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Matches reports whether any candidate is in scope. AllowAll matches even
// an empty candidate list.
func (s Scope) Matches(candidates ...int64) bool {
	if s.all {
		return true
	}
	for _, id := range candidates {
		if _, ok := s.ids[id]; ok {
			return true
		}
	}
	return false
}
