package x

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownScope is returned when a scope is not part of the X vocabulary.
var ErrUnknownScope = errors.New("unknown scope")

// Scope is a single X OAuth 2.0 scope.
type Scope string

// X OAuth 2.0 scopes, in vocabulary order.
const (
	ScopeTweetRead          Scope = "tweet.read"
	ScopeTweetWrite         Scope = "tweet.write"
	ScopeTweetModerateWrite Scope = "tweet.moderate.write"
	ScopeUsersEmail         Scope = "users.email"
	ScopeUsersRead          Scope = "users.read"
	ScopeFollowsRead        Scope = "follows.read"
	ScopeFollowsWrite       Scope = "follows.write"
	ScopeOfflineAccess      Scope = "offline.access"
	ScopeSpaceRead          Scope = "space.read"
	ScopeMuteRead           Scope = "mute.read"
	ScopeMuteWrite          Scope = "mute.write"
	ScopeLikeRead           Scope = "like.read"
	ScopeLikeWrite          Scope = "like.write"
	ScopeListRead           Scope = "list.read"
	ScopeListWrite          Scope = "list.write"
	ScopeBlockRead          Scope = "block.read"
	ScopeBlockWrite         Scope = "block.write"
	ScopeBookmarkRead       Scope = "bookmark.read"
	ScopeBookmarkWrite      Scope = "bookmark.write"
	ScopeDMRead             Scope = "dm.read"
	ScopeDMWrite            Scope = "dm.write"
	ScopeMediaWrite         Scope = "media.write"
)

var vocabulary = []Scope{
	ScopeTweetRead,
	ScopeTweetWrite,
	ScopeTweetModerateWrite,
	ScopeUsersEmail,
	ScopeUsersRead,
	ScopeFollowsRead,
	ScopeFollowsWrite,
	ScopeOfflineAccess,
	ScopeSpaceRead,
	ScopeMuteRead,
	ScopeMuteWrite,
	ScopeLikeRead,
	ScopeLikeWrite,
	ScopeListRead,
	ScopeListWrite,
	ScopeBlockRead,
	ScopeBlockWrite,
	ScopeBookmarkRead,
	ScopeBookmarkWrite,
	ScopeDMRead,
	ScopeDMWrite,
	ScopeMediaWrite,
}

// vocabularyIndex maps a scope to its position in the vocabulary.
var vocabularyIndex = func() map[Scope]int {
	m := make(map[Scope]int, len(vocabulary))
	for i, s := range vocabulary {
		m[s] = i
	}
	return m
}()

// AllScopes returns every X scope in vocabulary order.
func AllScopes() []Scope {
	return slices.Clone(vocabulary)
}

// Valid reports whether s belongs to the X vocabulary.
func (s Scope) Valid() bool {
	_, ok := vocabularyIndex[s]
	return ok
}

// String returns the scope identifier.
func (s Scope) String() string {
	return string(s)
}

// ScopeSet is a set of distinct scopes kept in vocabulary order, so that the
// serialized form is stable regardless of insertion order.
type ScopeSet struct {
	scopes []Scope
}

// NewScopeSet builds a set from scopes, dropping duplicates.
// Scopes outside the vocabulary are ignored; use ParseScopes to reject them.
func NewScopeSet(scopes ...Scope) ScopeSet {
	seen := make(map[Scope]bool, len(scopes))
	set := make([]Scope, 0, len(scopes))
	for _, s := range scopes {
		if !s.Valid() || seen[s] {
			continue
		}
		seen[s] = true
		set = append(set, s)
	}
	slices.SortFunc(set, func(a, b Scope) int {
		return vocabularyIndex[a] - vocabularyIndex[b]
	})
	return ScopeSet{scopes: set}
}

// ParseScopes builds a set from scope identifiers. Each argument may itself be a
// space-delimited list.
func ParseScopes(values ...string) (ScopeSet, error) {
	var scopes []Scope
	for _, v := range values {
		for _, field := range strings.Fields(v) {
			s := Scope(field)
			if !s.Valid() {
				return ScopeSet{}, fmt.Errorf("%w: %q", ErrUnknownScope, field)
			}
			scopes = append(scopes, s)
		}
	}
	return NewScopeSet(scopes...), nil
}

// Len returns the number of scopes in the set.
func (s ScopeSet) Len() int {
	return len(s.scopes)
}

// Contains reports whether scope is in the set.
func (s ScopeSet) Contains(scope Scope) bool {
	return slices.Contains(s.scopes, scope)
}

// Scopes returns a copy of the scopes in vocabulary order.
func (s ScopeSet) Scopes() []Scope {
	return slices.Clone(s.scopes)
}

// Strings returns the scope identifiers in vocabulary order.
func (s ScopeSet) Strings() []string {
	out := make([]string, len(s.scopes))
	for i, scope := range s.scopes {
		out[i] = string(scope)
	}
	return out
}

// String returns the space-delimited form used in authorization requests.
func (s ScopeSet) String() string {
	return strings.Join(s.Strings(), " ")
}
