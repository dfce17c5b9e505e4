package cache

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Key identifies a cached query: the operation name followed by its
// parameters, e.g. Key{"getPostById", id}.
type Key []string

// NewKey builds a key from an operation name and its parameters.
func NewKey(name string, params ...string) Key {
	return append(Key{name}, params...)
}

// HasPrefix reports whether prefix matches k. Key{"getPostById"} matches
// every Key{"getPostById", id}.
func (k Key) HasPrefix(prefix Key) bool {
	return len(prefix) <= len(k) && slices.Equal(k[:len(prefix)], prefix)
}

func (k Key) String() string {
	return fmt.Sprint([]string(k))
}

// id is the map key of k. Quoting keeps parts containing separators apart.
func (k Key) id() string {
	var b strings.Builder
	for _, part := range k {
		b.WriteString(strconv.Quote(part))
		b.WriteByte(',')
	}
	return b.String()
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
