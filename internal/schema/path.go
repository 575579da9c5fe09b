package schema

import (
	"fmt"
	"strings"
)

// Step is one segment of a leaf path: either a map key or a list index.
// Index steps have an empty Key.
type Step struct {
	Key   string
	Index int
}

// IsIndex reports whether the step addresses a list item.
func (s Step) IsIndex() bool {
	return s.Key == ""
}

// Path identifies one simple leaf inside an extraction result, e.g.
// AccountDetails.AccountNumber or Transactions[3].Amount.
type Path []Step

// Child returns a new path extended by a key step.
func (p Path) Child(key string) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, Step{Key: key})
}

// Item returns a new path extended by an index step.
func (p Path) Item(i int) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, Step{Index: i})
}

// String renders the path in dotted form with bracketed indexes.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.IsIndex() {
			fmt.Fprintf(&b, "[%d]", s.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// AttributeKey renders the path with index steps dropped, producing the
// schema-level attribute name used for threshold lookups. Both
// Transactions[0].Amount and Transactions[7].Amount map to
// Transactions.Amount.
func (p Path) AttributeKey() string {
	var parts []string
	for _, s := range p {
		if !s.IsIndex() {
			parts = append(parts, s.Key)
		}
	}
	return strings.Join(parts, ".")
}

// HasPrefix reports whether p starts with the given prefix path.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, s := range prefix {
		if p[i] != s {
			return false
		}
	}
	return true
}
