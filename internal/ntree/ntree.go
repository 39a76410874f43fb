// Package ntree contains the compact binary tree used for the longest-prefix
// match of canonical addresses.
package ntree

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"slices"
	"sort"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/netlist"
	"github.com/AdguardTeam/NetMapper/internal/strtab"
)

// MaxNodes is the maximum number of nodes in a tree.
const MaxNodes = math.MaxInt32

// childRef is either an index of a node in the arena or, if [leafBit] is set,
// a label handle.
type childRef uint32

// leafBit marks the references that hold a label.
const leafBit childRef = 1 << 31

// leaf returns a reference that holds the label h.
func leaf(h strtab.Handle) (c childRef) {
	return leafBit | childRef(h)
}

// isLeaf returns true if c holds a label.
func (c childRef) isLeaf() (ok bool) {
	return c&leafBit != 0
}

// label returns the label held by c.  c must be a leaf.
func (c childRef) label() (h strtab.Handle) {
	return strtab.Handle(c &^ leafBit)
}

// node is a single node of a tree.  children[0] is followed for a zero bit and
// children[1] for a one bit.
type node struct {
	children [2]childRef
}

// Tree is an immutable binary tree compiled from a normalized network list.
// It is safe for concurrent use.
type Tree struct {
	// nodes is the arena of nodes.  The root is always the first one.
	nodes []node

	// ipv4Root is the reference reached by following the bits of
	// [ipembed.MappedPrefix] from the root.
	ipv4Root childRef
}

// Compile compiles the finished network list l into a tree.
func Compile(l *netlist.List) (t *Tree, err error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, fmt.Errorf("compiling tree: %w: %w", ErrNotFinished, err)
	}

	c := &compiler{
		nodes: make([]node, 1, 2*len(entries)+1),
	}

	def := strtab.None
	if len(entries) > 0 && entries[0].Bits == 0 {
		def = entries[0].Label
		entries = entries[1:]
	}

	c.nodes[0] = c.split(&cursor{
		entries: entries,
		depth:   0,
		def:     def,
	})

	if len(c.nodes) > MaxNodes {
		return nil, fmt.Errorf("compiling tree: %d nodes: %w", len(c.nodes), ErrTooManyNodes)
	}

	t = &Tree{
		nodes: slices.Clip(c.nodes),
	}

	t.ipv4Root = t.descend(ipembed.MappedPrefix.Addr().As16(), ipembed.MappedBits)

	return t, nil
}

// cursor is the state of the compilation of a single subtree.
type cursor struct {
	// entries are the sorted entries within the subtree network, excluding
	// the one equal to it.
	entries []netlist.Entry

	// depth is the length of the subtree network prefix.
	depth int

	// def is the label of the closest network enclosing the subtree.
	def strtab.Handle
}

// compiler builds the arena of a tree.
type compiler struct {
	nodes []node
}

// split returns a node with the subtrees for the two halves of the network
// described by cur.
func (c *compiler) split(cur *cursor) (n node) {
	ents := cur.entries
	half := sort.Search(len(ents), func(i int) (ok bool) {
		return ipembed.Bit(&ents[i].Addr, cur.depth)
	})

	for i, part := range [2][]netlist.Entry{ents[:half], ents[half:]} {
		n.children[i] = c.build(&cursor{
			entries: part,
			depth:   cur.depth + 1,
			def:     cur.def,
		})
	}

	return n
}

// build returns the reference to the subtree described by cur.  Its entries
// may start with the one equal to the subtree network.
func (c *compiler) build(cur *cursor) (ref childRef) {
	if len(cur.entries) > 0 && cur.entries[0].Bits == cur.depth {
		cur.def = cur.entries[0].Label
		cur.entries = cur.entries[1:]
	}

	if len(cur.entries) == 0 {
		return leaf(cur.def)
	}

	idx := len(c.nodes)
	c.nodes = append(c.nodes, node{})

	n := c.split(cur)
	if zero := n.children[0]; zero.isLeaf() && zero == n.children[1] {
		// Both children are leaves, so the node is the last one.
		c.nodes = c.nodes[:idx]

		return zero
	}

	c.nodes[idx] = n

	return childRef(idx)
}

// descend follows up to bits bits of a from the root and returns the reached
// reference.
func (t *Tree) descend(a [16]byte, bits int) (ref childRef) {
	ref = 0
	for i := 0; i < bits && !ref.isLeaf(); i++ {
		ref = t.nodes[ref].children[b2i(ipembed.Bit(&a, i))]
	}

	return ref
}

// b2i converts a boolean bit value into a child index.
func b2i(set bool) (i int) {
	if set {
		return 1
	}

	return 0
}

// Lookup returns the label of the longest network that contains a.  a is in
// the canonical form.  Addresses with embedded IPv4 addresses are looked up
// by the embedded address.  The returned handle is either [strtab.None] or
// [strtab.Undefined] if a isn't covered by any labeled network.
func (t *Tree) Lookup(a [16]byte) (h strtab.Handle) {
	if ip4, ok := ipembed.Embedded4(&a); ok {
		return t.Lookup4(ip4)
	}

	return t.descend(a, ipembed.Bits).label()
}

// LookupAddr is like [Tree.Lookup] but for a [netip.Addr].  addr must be
// valid.
func (t *Tree) LookupAddr(addr netip.Addr) (h strtab.Handle) {
	if addr.Is4() {
		a4 := addr.As4()

		return t.Lookup4(binary.BigEndian.Uint32(a4[:]))
	}

	return t.Lookup(addr.As16())
}

// Lookup4 returns the label of the longest network that contains the IPv4
// address ip4.
func (t *Tree) Lookup4(ip4 uint32) (h strtab.Handle) {
	ref := t.ipv4Root
	for i := 31; i >= 0 && !ref.isLeaf(); i-- {
		ref = t.nodes[ref].children[(ip4>>i)&1]
	}

	return ref.label()
}

// NodeCount returns the number of nodes in t.
func (t *Tree) NodeCount() (n int) {
	return len(t.nodes)
}
