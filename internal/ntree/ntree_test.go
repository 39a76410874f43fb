package ntree_test

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/netlist"
	"github.com/AdguardTeam/NetMapper/internal/ntree"
	"github.com/AdguardTeam/NetMapper/internal/strtab"
	"github.com/gaissmai/bart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Label handles for tests.
const (
	labelA strtab.Handle = 1
	labelB strtab.Handle = 2
	labelC strtab.Handle = 3
)

// testNet is a labeled network used to build trees in tests.
type testNet struct {
	pfx   netip.Prefix
	label strtab.Handle
}

// newTree returns a tree compiled from nets.
func newTree(tb testing.TB, nets []testNet) (t *ntree.Tree) {
	tb.Helper()

	l := netlist.New(len(nets))
	for _, n := range nets {
		addr, bits := ipembed.CanonicalPrefix(n.pfx)
		_, err := l.Append(addr, bits, n.label)
		require.NoError(tb, err)
	}

	require.NoError(tb, l.Finish())

	t, err := ntree.Compile(l)
	require.NoError(tb, err)

	return t
}

func TestTree_LookupAddr(t *testing.T) {
	tree := newTree(t, []testNet{{
		pfx:   netip.MustParsePrefix("10.0.0.0/8"),
		label: labelA,
	}, {
		pfx:   netip.MustParsePrefix("10.1.0.0/16"),
		label: labelB,
	}, {
		pfx:   netip.MustParsePrefix("2001:db8::/32"),
		label: labelC,
	}})

	testCases := []struct {
		name string
		addr string
		want strtab.Handle
	}{{
		name: "more_specific",
		addr: "10.1.2.3",
		want: labelB,
	}, {
		name: "less_specific",
		addr: "10.2.2.2",
		want: labelA,
	}, {
		name: "no_match_ipv4",
		addr: "8.8.8.8",
		want: strtab.None,
	}, {
		name: "ipv6",
		addr: "2001:db8:1::1",
		want: labelC,
	}, {
		name: "no_match_ipv6",
		addr: "2001:db9::1",
		want: strtab.None,
	}, {
		name: "mapped",
		addr: "::ffff:10.1.2.3",
		want: labelB,
	}, {
		name: "siit",
		addr: "64:ff9b::10.2.2.2",
		want: labelA,
	}, {
		name: "6to4",
		addr: "2002:a01:203::1",
		want: labelB,
	}, {
		name: "teredo",
		addr: "2001:0:4136:e378:8000:63bf:f5fe:fdfc",
		want: labelB,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tree.LookupAddr(netip.MustParseAddr(tc.addr)))
		})
	}
}

func TestTree_Lookup4(t *testing.T) {
	tree := newTree(t, []testNet{{
		pfx:   netip.MustParsePrefix("192.0.2.0/24"),
		label: labelA,
	}, {
		pfx:   netip.MustParsePrefix("192.0.2.128/32"),
		label: labelB,
	}})

	assert.Equal(t, labelA, tree.Lookup4(0xc000_0201))
	assert.Equal(t, labelB, tree.Lookup4(0xc000_0280))
	assert.Equal(t, strtab.None, tree.Lookup4(0xc000_0301))
}

func TestTree_placeholders(t *testing.T) {
	nets := []testNet{{
		pfx:   netip.MustParsePrefix("::/0"),
		label: labelA,
	}}

	for _, z := range ipembed.ReservedZones() {
		nets = append(nets, testNet{
			pfx:   z,
			label: strtab.Undefined,
		})
	}

	tree := newTree(t, nets)

	assert.Equal(t, strtab.Undefined, tree.LookupAddr(netip.MustParseAddr("192.0.2.1")))
	assert.Equal(t, strtab.Undefined, tree.LookupAddr(netip.MustParseAddr("2002:c000:201::1")))
	assert.Equal(t, labelA, tree.LookupAddr(netip.MustParseAddr("2001:db8::1")))
}

func TestTree_default(t *testing.T) {
	tree := newTree(t, []testNet{{
		pfx:   netip.MustParsePrefix("::/0"),
		label: labelA,
	}})

	assert.Equal(t, labelA, tree.LookupAddr(netip.MustParseAddr("2001:db8::1")))
	assert.Equal(t, labelA, tree.LookupAddr(netip.MustParseAddr("192.0.2.1")))
	assert.Equal(t, 1, tree.NodeCount())
}

func TestCompile(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		tree := newTree(t, nil)

		assert.Equal(t, 1, tree.NodeCount())
		assert.Equal(t, strtab.None, tree.LookupAddr(netip.MustParseAddr("192.0.2.1")))
		assert.Equal(t, strtab.None, tree.Lookup([16]byte{}))
	})

	t.Run("not_finished", func(t *testing.T) {
		tree, err := ntree.Compile(netlist.New(0))
		assert.Nil(t, tree)
		assert.ErrorIs(t, err, ntree.ErrNotFinished)
		assert.ErrorIs(t, err, netlist.ErrNotFinished)
	})

	t.Run("host", func(t *testing.T) {
		tree := newTree(t, []testNet{{
			pfx:   netip.MustParsePrefix("2001:db8::1/128"),
			label: labelA,
		}})

		assert.Equal(t, ipembed.Bits, tree.NodeCount())
		assert.Equal(t, labelA, tree.LookupAddr(netip.MustParseAddr("2001:db8::1")))
		assert.Equal(t, strtab.None, tree.LookupAddr(netip.MustParseAddr("2001:db8::")))
	})
}

func TestTree_Lookup_allocs(t *testing.T) {
	tree := newTree(t, []testNet{{
		pfx:   netip.MustParsePrefix("10.0.0.0/8"),
		label: labelA,
	}, {
		pfx:   netip.MustParsePrefix("2001:db8::/32"),
		label: labelB,
	}})

	ip4 := netip.MustParseAddr("10.1.2.3")
	ip6 := netip.MustParseAddr("2001:db8::1")

	allocs := testing.AllocsPerRun(100, func() {
		_ = tree.LookupAddr(ip4)
		_ = tree.LookupAddr(ip6)
	})

	assert.Zero(t, allocs)
}

// randomPrefix returns a random valid prefix.  IPv6 prefixes are generated
// within 3000::/4 so that they never overlap the IPv4-embedding spaces.
func randomPrefix(r *rand.Rand) (pfx netip.Prefix) {
	if r.IntN(2) == 0 {
		a4 := [4]byte{byte(r.IntN(4)), byte(r.IntN(256)), byte(r.IntN(256)), byte(r.IntN(256))}

		return netip.PrefixFrom(netip.AddrFrom4(a4), 1+r.IntN(32)).Masked()
	}

	return netip.PrefixFrom(randomAddr6(r), 4+r.IntN(125)).Masked()
}

// randomAddr6 returns a random address within 3000::/4 that is close to the
// other generated ones.
func randomAddr6(r *rand.Rand) (addr netip.Addr) {
	var a [16]byte
	a[0] = 0x30 | byte(r.IntN(2))
	for i := 1; i < len(a); i++ {
		a[i] = byte(r.IntN(2))
	}

	return netip.AddrFrom16(a)
}

// randomAddr returns a random IPv4 or IPv6 address close to the generated
// prefixes.
func randomAddr(r *rand.Rand) (addr netip.Addr) {
	if r.IntN(2) == 0 {
		return netip.AddrFrom4([4]byte{byte(r.IntN(4)), byte(r.IntN(256)), byte(r.IntN(256)), 0})
	}

	return randomAddr6(r)
}

// matchLinear returns the label of the longest network in nets that contains
// addr, or [strtab.None].
func matchLinear(nets []testNet, addr netip.Addr) (label strtab.Handle) {
	best := -1
	for _, n := range nets {
		if n.pfx.Contains(addr) && n.pfx.Bits() > best {
			best, label = n.pfx.Bits(), n.label
		}
	}

	return label
}

func TestTree_Lookup_random(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))

	for range 20 {
		oracle := &bart.Table[strtab.Handle]{}

		var nets []testNet
		seen := map[netip.Prefix]struct{}{}
		for range 1 + r.IntN(200) {
			pfx := randomPrefix(r)
			if _, ok := seen[pfx]; ok {
				continue
			}

			seen[pfx] = struct{}{}
			label := strtab.Handle(1 + r.IntN(3))
			nets = append(nets, testNet{
				pfx:   pfx,
				label: label,
			})

			oracle.Insert(pfx, label)
		}

		tree := newTree(t, nets)

		for range 1000 {
			addr := randomAddr(r)
			got := tree.LookupAddr(addr)

			require.Equalf(t, matchLinear(nets, addr), got, "linear: addr %s", addr)

			want, _ := oracle.Lookup(addr)
			require.Equalf(t, want, got, "bart: addr %s", addr)
		}
	}
}

var handleSink strtab.Handle

func BenchmarkTree_LookupAddr(b *testing.B) {
	r := rand.New(rand.NewPCG(5, 6))

	var nets []testNet
	seen := map[netip.Prefix]struct{}{}
	for range 10_000 {
		pfx := randomPrefix(r)
		if _, ok := seen[pfx]; ok {
			continue
		}

		seen[pfx] = struct{}{}
		nets = append(nets, testNet{
			pfx:   pfx,
			label: strtab.Handle(1 + r.IntN(100)),
		})
	}

	tree := newTree(b, nets)

	b.Run("ipv4", func(b *testing.B) {
		addr := netip.MustParseAddr("1.2.3.4")

		b.ReportAllocs()
		for b.Loop() {
			handleSink = tree.LookupAddr(addr)
		}
	})

	b.Run("ipv6", func(b *testing.B) {
		addr := netip.MustParseAddr("3001:1:0:1::1")

		b.ReportAllocs()
		for b.Loop() {
			handleSink = tree.LookupAddr(addr)
		}
	})
}
