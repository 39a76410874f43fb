// Package strtab contains the table of interned label strings used by the
// network mapper.
package strtab

import (
	"fmt"
	"math"
)

// Handle is a small integer referring to a string in a [Table].
type Handle uint32

// Reserved handles.
const (
	// None is the handle of the "no match" value.  It is never returned by
	// [Table.Add].
	None Handle = 0

	// Undefined is the handle used by the placeholder networks of the
	// reserved IPv4-embedding zones.  It is never returned by [Table.Add] and
	// resolves to the same value as None.
	Undefined Handle = math.MaxInt32

	// MaxHandle is the maximum handle that [Table.Add] can return.
	MaxHandle Handle = Undefined - 1
)

// IsLabel returns true if h refers to an actual label string.
func (h Handle) IsLabel() (ok bool) {
	return h != None && h != Undefined
}

// Table interns strings and returns dense handles for them, starting with 1.
// A Table must be filled before it is shared between goroutines; after that
// only [Table.Get] and [Table.Len] may be called.
type Table struct {
	index   map[string]Handle
	strings []string
}

// New returns a new empty *Table.  sizeHint is the expected number of
// strings.
func New(sizeHint int) (t *Table) {
	strs := make([]string, 1, sizeHint+1)

	return &Table{
		index:   make(map[string]Handle, sizeHint),
		strings: strs,
	}
}

// Add interns s and returns its handle.  Adding the same string twice returns
// the same handle.  s must not be empty.
func (t *Table) Add(s string) (h Handle, err error) {
	if s == "" {
		return None, errEmptyString
	}

	if h, ok := t.index[s]; ok {
		return h, nil
	}

	if Handle(len(t.strings)) > MaxHandle {
		return None, fmt.Errorf("adding %q: %w: %d strings", s, errTooManyStrings, len(t.strings)-1)
	}

	h = Handle(len(t.strings))
	t.strings = append(t.strings, s)
	t.index[s] = h

	return h, nil
}

// Get returns the string for h.  ok is false if h is [None], [Undefined], or
// is not a handle from t.
func (t *Table) Get(h Handle) (s string, ok bool) {
	if !h.IsLabel() || int(h) >= len(t.strings) {
		return "", false
	}

	return t.strings[h], true
}

// Len returns the number of interned strings.
func (t *Table) Len() (n int) {
	return len(t.strings) - 1
}

// Freeze drops the lookup index, which is only needed while filling the table.
// [Table.Add] must not be called after Freeze.
func (t *Table) Freeze() {
	t.index = nil
}
