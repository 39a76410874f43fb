package ntree

import (
	"encoding/binary"
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/netlist"
	"github.com/AdguardTeam/NetMapper/internal/strtab"
	"github.com/stretchr/testify/require"
)

// newRandomTree returns a tree with the placeholders of all reserved zones and
// up to n random networks, half of them IPv4 ones within 0.0.0.0/6.
func newRandomTree(tb testing.TB, r *rand.Rand, n int) (t *Tree) {
	tb.Helper()

	l := netlist.New(n + len(ipembed.ReservedZones()))
	for _, z := range ipembed.ReservedZones() {
		addr, bits := ipembed.CanonicalPrefix(z)
		_, err := l.Append(addr, bits, strtab.Undefined)
		require.NoError(tb, err)
	}

	seen := map[netip.Prefix]struct{}{}
	for range n {
		var pfx netip.Prefix
		if r.IntN(2) == 0 {
			a4 := [4]byte{byte(r.IntN(4)), byte(r.IntN(256)), byte(r.IntN(256)), byte(r.IntN(256))}
			pfx = netip.PrefixFrom(netip.AddrFrom4(a4), 1+r.IntN(32)).Masked()
		} else {
			var a [16]byte
			a[0] = 0x30
			binary.BigEndian.PutUint64(a[8:], r.Uint64())
			pfx = netip.PrefixFrom(netip.AddrFrom16(a), 4+r.IntN(125)).Masked()
		}

		if _, ok := seen[pfx]; ok {
			continue
		}

		seen[pfx] = struct{}{}

		addr, bits := ipembed.CanonicalPrefix(pfx)
		_, err := l.Append(addr, bits, strtab.Handle(1+r.IntN(3)))
		require.NoError(tb, err)
	}

	require.NoError(tb, l.Finish())

	t, err := Compile(l)
	require.NoError(tb, err)

	return t
}

// embeddedForms returns ip4 in the v4-mapped, SIIT, 6to4, and Teredo forms.
// The bits that don't carry the address are random.
func embeddedForms(r *rand.Rand, ip4 uint32) (forms map[string][16]byte) {
	var mapped, siit, sixToFour, teredo [16]byte

	mapped[10], mapped[11] = 0xff, 0xff
	binary.BigEndian.PutUint32(mapped[12:], ip4)

	binary.BigEndian.PutUint32(siit[:4], 0x0064_ff9b)
	binary.BigEndian.PutUint32(siit[12:], ip4)

	binary.BigEndian.PutUint16(sixToFour[:2], 0x2002)
	binary.BigEndian.PutUint32(sixToFour[2:], ip4)
	binary.BigEndian.PutUint64(sixToFour[6:], r.Uint64())

	binary.BigEndian.PutUint32(teredo[:4], 0x2001_0000)
	binary.BigEndian.PutUint64(teredo[4:], r.Uint64())
	binary.BigEndian.PutUint32(teredo[12:], ^ip4)

	return map[string][16]byte{
		"mapped": mapped,
		"siit":   siit,
		"6to4":   sixToFour,
		"teredo": teredo,
	}
}

func TestTree_Lookup4_fullWalk(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))

	for range 20 {
		tree := newRandomTree(t, r, 1+r.IntN(200))

		for range 2000 {
			ip4 := r.Uint32()
			if r.IntN(2) == 0 {
				// Stay within the generated IPv4 networks.
				ip4 &= 0x03ff_ffff
			}

			want := tree.Lookup4(ip4)
			forms := embeddedForms(r, ip4)

			got := tree.descend(forms["mapped"], ipembed.Bits).label()
			require.Equalf(t, want, got, "full walk: ip4 %08x", ip4)

			for name, a := range forms {
				require.Equalf(t, want, tree.Lookup(a), "%s: ip4 %08x", name, ip4)

				got = tree.LookupAddr(netip.AddrFrom16(a))
				require.Equalf(t, want, got, "%s addr: ip4 %08x", name, ip4)
			}
		}
	}
}
