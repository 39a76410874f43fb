// Package netlist contains the list of labeled networks that is normalized
// before being compiled into a lookup tree.
package netlist

import (
	"bytes"
	"cmp"
	"fmt"
	"net/netip"
	"slices"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/strtab"
)

// Entry is a single labeled network.  All bits of Addr beyond Bits are zero.
type Entry struct {
	// Addr is the canonical network address.
	Addr [16]byte

	// Bits is the prefix length, from 0 to 128.
	Bits int

	// Label is the handle of the label of the network.
	Label strtab.Handle
}

// Contains returns true if o is a subnet of e or is equal to it.
func (e *Entry) Contains(o *Entry) (ok bool) {
	return e.Bits <= o.Bits && ipembed.EqualPrefix(&e.Addr, &o.Addr, e.Bits)
}

// Prefix returns the network of e as a prefix.  Networks within the canonical
// IPv4 zone are returned as IPv4 prefixes.
func (e *Entry) Prefix() (p netip.Prefix) {
	addr := netip.AddrFrom16(e.Addr)
	if e.Bits >= ipembed.MappedBits && addr.Is4In6() {
		return netip.PrefixFrom(addr.Unmap(), e.Bits-ipembed.MappedBits)
	}

	return netip.PrefixFrom(addr, e.Bits)
}

// String implements the [fmt.Stringer] interface for *Entry.
func (e *Entry) String() (s string) {
	return fmt.Sprintf("%s:%d", e.Prefix(), e.Label)
}

// compareEntries sorts entries by network address and then by prefix length.
func compareEntries(a, b Entry) (res int) {
	res = bytes.Compare(a.Addr[:], b.Addr[:])
	if res != 0 {
		return res
	}

	return cmp.Compare(a.Bits, b.Bits)
}

// state is the state of a [List].
type state uint8

// Valid states.
const (
	stateBuilding state = iota
	stateFinished
	stateFailed
)

// List is a list of networks.  Networks are added with [List.Append], after
// which the list is normalized exactly once with [List.Finish].  A List is
// not safe for concurrent use.
type List struct {
	entries []Entry
	state   state
}

// New returns a new empty *List.  sizeHint is the expected number of entries.
func New(sizeHint int) (l *List) {
	return &List{
		entries: make([]Entry, 0, sizeHint),
	}
}

// Append adds a network to l.  All bits of addr beyond bits are cleared;
// maskBad is true if there were any, which is not fatal but most probably
// means a mistake in the input.  err is not nil if l has already been
// finished or if bits is out of range.
func (l *List) Append(addr [16]byte, bits int, label strtab.Handle) (maskBad bool, err error) {
	err = l.checkState(stateBuilding)
	if err != nil {
		return false, err
	}

	if bits < 0 || bits > ipembed.Bits {
		return false, fmt.Errorf("prefix length %d: %w", bits, errBadBits)
	}

	maskBad = ipembed.Mask(&addr, bits)
	l.entries = append(l.entries, Entry{
		Addr:  addr,
		Bits:  bits,
		Label: label,
	})

	return maskBad, nil
}

// Finish sorts and normalizes l.  Sibling networks with the same label are
// merged into their parent, transitively, and networks that are nested inside
// a network with the same label are removed.  If l contains two entries with
// the same network, err is a *DuplicateNetworkError, and l must not be used
// any more.  Calling Finish on a finished list does nothing.
func (l *List) Finish() (err error) {
	switch l.state {
	case stateFinished:
		return nil
	case stateFailed:
		return ErrUnusable
	default:
		// Go on.
	}

	slices.SortFunc(l.entries, compareEntries)

	err = l.checkDuplicates()
	if err != nil {
		l.state = stateFailed
		l.entries = nil

		return err
	}

	n := &normalizer{
		out: l.entries[:0],
	}

	for _, e := range l.entries {
		n.add(e)
	}

	l.entries = slices.Clip(n.out)
	l.state = stateFinished

	return nil
}

// checkDuplicates returns an error if sorted entries of l contain the same
// network twice.
func (l *List) checkDuplicates() (err error) {
	for i := 1; i < len(l.entries); i++ {
		prev, cur := &l.entries[i-1], &l.entries[i]
		if prev.Bits == cur.Bits && prev.Addr == cur.Addr {
			return &DuplicateNetworkError{
				Prefix: cur.Prefix(),
				Labels: [2]strtab.Handle{prev.Label, cur.Label},
			}
		}
	}

	return nil
}

// Entries returns the normalized entries of l.  The returned slice must not
// be modified.  err is not nil if l is not finished.
func (l *List) Entries() (entries []Entry, err error) {
	err = l.checkState(stateFinished)
	if err != nil {
		return nil, err
	}

	return l.entries, nil
}

// Len returns the current number of entries in l.
func (l *List) Len() (n int) {
	return len(l.entries)
}

// checkState returns an error if l is not in the wanted state.
func (l *List) checkState(want state) (err error) {
	if l.state == want {
		return nil
	}

	switch l.state {
	case stateFailed:
		return ErrUnusable
	case stateFinished:
		return ErrFinished
	default:
		return ErrNotFinished
	}
}
