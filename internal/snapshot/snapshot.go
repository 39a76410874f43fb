// Package snapshot contains the immutable lookup data of a single
// configuration generation.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/netlist"
	"github.com/AdguardTeam/NetMapper/internal/ntree"
	"github.com/AdguardTeam/NetMapper/internal/strtab"
)

// Entry is a single labeled network from the configuration.
type Entry struct {
	// Prefix is the network.  It must be valid.
	Prefix netip.Prefix

	// Label is the label of the network.  It must not be empty unless
	// Placeholder is true.
	Label string

	// Placeholder, if true, means that the network is one of the reserved
	// IPv4-embedding zones and addresses within it must not be matched by
	// any enclosing network.  Label is ignored.
	Placeholder bool
}

// Stats contains the sizes of a snapshot.
type Stats struct {
	// Created is the time when the snapshot was built.
	Created time.Time

	// Generation is the generation of the snapshot.
	Generation uint64

	// Entries is the number of networks after normalization.
	Entries int

	// Labels is the number of distinct labels.
	Labels int

	// Nodes is the number of nodes in the lookup tree.
	Nodes int
}

// Snapshot is a set of interned labels together with the lookup tree built
// from the networks of one configuration generation.  A Snapshot is safe for
// concurrent use until it's destroyed.
type Snapshot struct {
	labels *strtab.Table
	tree   *ntree.Tree
	stats  Stats
	refs   atomic.Int64
	state  atomic.Int32
}

// Build builds a snapshot of generation gen from entries.  err is a
// *BuildError if the entries can't be compiled.  The returned snapshot is in
// the [StateLoading] state.  l is used to report non-fatal problems with the
// entries.
func Build(ctx context.Context, l *slog.Logger, gen uint64, entries []Entry) (s *Snapshot, err error) {
	defer func() {
		if err != nil {
			err = &BuildError{
				Err:        err,
				Generation: gen,
			}
		}
	}()

	labels := strtab.New(0)
	list := netlist.New(len(entries))
	for i, e := range entries {
		err = appendEntry(ctx, l, list, labels, &e)
		if err != nil {
			return nil, fmt.Errorf("entry at index %d: %w", i, err)
		}
	}

	err = list.Finish()
	if err != nil {
		return nil, fmt.Errorf("normalizing: %w", err)
	}

	tree, err := ntree.Compile(list)
	if err != nil {
		return nil, err
	}

	labels.Freeze()

	s = &Snapshot{
		labels: labels,
		tree:   tree,
		stats: Stats{
			Created:    time.Now(),
			Generation: gen,
			Entries:    list.Len(),
			Labels:     labels.Len(),
			Nodes:      tree.NodeCount(),
		},
	}
	s.state.Store(int32(StateLoading))

	l.DebugContext(
		ctx,
		"built snapshot",
		"gen", gen,
		"in_entries", len(entries),
		"entries", s.stats.Entries,
		"labels", s.stats.Labels,
		"nodes", s.stats.Nodes,
	)

	return s, nil
}

// appendEntry interns the label of e and adds its network to list.  Labeled
// networks within the reserved zones are rejected with a *ReservedSpaceError.
func appendEntry(
	ctx context.Context,
	l *slog.Logger,
	list *netlist.List,
	labels *strtab.Table,
	e *Entry,
) (err error) {
	if !e.Prefix.IsValid() {
		return fmt.Errorf("prefix %q: %w", e.Prefix, errInvalidPrefix)
	}

	h := strtab.Undefined
	if !e.Placeholder {
		if zone, ok := ipembed.ReservedZone(e.Prefix); ok {
			return &ReservedSpaceError{
				Label:  e.Label,
				Prefix: e.Prefix,
				Zone:   zone,
			}
		}

		h, err = labels.Add(e.Label)
		if err != nil {
			return fmt.Errorf("label for %s: %w", e.Prefix, err)
		}
	}

	addr, bits := ipembed.CanonicalPrefix(e.Prefix)
	maskBad, err := list.Append(addr, bits, h)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	if maskBad {
		l.WarnContext(
			ctx,
			"network has bits set beyond its prefix length",
			"prefix", e.Prefix,
			"label", e.Label,
		)
	}

	return nil
}

// Lookup returns the label of the longest network in s that contains addr.
// ok is false if there is no such network or addr is invalid.
func (s *Snapshot) Lookup(addr netip.Addr) (label string, ok bool) {
	if !addr.IsValid() {
		return "", false
	}

	return s.labels.Get(s.tree.LookupAddr(addr))
}

// Stats returns the sizes of s.  It may be called after s is destroyed.
func (s *Snapshot) Stats() (st Stats) {
	return s.stats
}

// Generation returns the generation of s.  It may be called after s is
// destroyed.
func (s *Snapshot) Generation() (gen uint64) {
	return s.stats.Generation
}

// Acquire increments the reference counter of s.
func (s *Snapshot) Acquire() {
	s.refs.Add(1)
}

// Release decrements the reference counter of s.
func (s *Snapshot) Release() {
	s.refs.Add(-1)
}

// Refs returns the current value of the reference counter of s.
func (s *Snapshot) Refs() (n int64) {
	return s.refs.Load()
}
