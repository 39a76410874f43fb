package netlist

import "github.com/AdguardTeam/NetMapper/internal/ipembed"

// normalizer merges sorted entries in a single forward pass.  out is used as a
// stack, and chain contains the indexes of the entries in out that enclose
// the most recently added one, outermost first.
type normalizer struct {
	out   []Entry
	chain []int
}

// add processes the next sorted entry e.
func (n *normalizer) add(e Entry) {
	n.unwind(&e)
	if n.redundant(&e) {
		return
	}

	for {
		top := n.top()
		if top == nil || !isSibling(top, &e) {
			break
		}

		n.pop()
		e.Bits--
		ipembed.ClearBit(&e.Addr, e.Bits)

		// The merged parent fully covers a network equal to it, if there is
		// one, so that network's own label can never be returned.
		if top = n.top(); top != nil && top.Bits == e.Bits && top.Addr == e.Addr {
			n.pop()
		}

		n.unwind(&e)
		if n.redundant(&e) {
			return
		}
	}

	n.out = append(n.out, e)
	n.chain = append(n.chain, len(n.out)-1)
}

// top returns the last entry in the output or nil if there isn't one.
func (n *normalizer) top() (e *Entry) {
	if len(n.out) == 0 {
		return nil
	}

	return &n.out[len(n.out)-1]
}

// pop removes the last entry from the output along with its chain index.
func (n *normalizer) pop() {
	last := len(n.out) - 1
	if l := len(n.chain); l > 0 && n.chain[l-1] == last {
		n.chain = n.chain[:l-1]
	}

	n.out = n.out[:last]
}

// unwind removes the entries that don't contain e from the chain.
func (n *normalizer) unwind(e *Entry) {
	for l := len(n.chain); l > 0; l-- {
		if n.out[n.chain[l-1]].Contains(e) {
			return
		}

		n.chain = n.chain[:l-1]
	}
}

// redundant returns true if the closest network enclosing e has the same
// label.  n.unwind must be called with e before redundant.
func (n *normalizer) redundant(e *Entry) (ok bool) {
	l := len(n.chain)

	return l > 0 && n.out[n.chain[l-1]].Label == e.Label
}

// isSibling returns true if a and b have the same label and only differ in
// the last bit of their prefix.
func isSibling(a, b *Entry) (ok bool) {
	return a.Bits == b.Bits &&
		a.Bits > 0 &&
		a.Label == b.Label &&
		a.Addr != b.Addr &&
		ipembed.EqualPrefix(&a.Addr, &b.Addr, a.Bits-1)
}
