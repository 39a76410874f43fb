// Package ipembed contains utilities for the canonical 128-bit address form
// and the IPv6 address spaces that embed IPv4 addresses.
//
// IPv4 addresses are always stored in the v4-mapped form, ::ffff:a.b.c.d,
// which is the form returned by [netip.Addr.As16].  The SIIT, 6to4, and Teredo
// spaces are only recognized at lookup time and are otherwise reserved.
package ipembed

import (
	"encoding/binary"
	"net/netip"
)

// Bits is the number of bits in a canonical address.
const Bits = 128

// MappedBits is the length of the canonical IPv4 prefix, [MappedPrefix].
const MappedBits = 96

// Reserved IPv4-embedding prefixes.
var (
	// MappedPrefix is the IPv4-mapped space, ::ffff:0:0/96.  This is where
	// IPv4 networks are stored.
	MappedPrefix = netip.MustParsePrefix("::ffff:0:0/96")

	// SIITPrefix is the SIIT translation space, 64:ff9b::/96.
	SIITPrefix = netip.MustParsePrefix("64:ff9b::/96")

	// SixToFourPrefix is the 6to4 space, 2002::/16.  The IPv4 address follows
	// the prefix.
	SixToFourPrefix = netip.MustParsePrefix("2002::/16")

	// TeredoPrefix is the Teredo space, 2001::/32.  The client IPv4 address
	// is stored bit-inverted in the last 32 bits.
	TeredoPrefix = netip.MustParsePrefix("2001::/32")
)

// ReservedZones returns the prefixes of all IPv4-embedding zones, canonical
// one first.  The returned slice is a new one on every call.
func ReservedZones() (zones []netip.Prefix) {
	return []netip.Prefix{
		MappedPrefix,
		SIITPrefix,
		SixToFourPrefix,
		TeredoPrefix,
	}
}

// Embedded4 returns the IPv4 address embedded in a if a belongs to one of the
// IPv4-mapped, SIIT, 6to4, or Teredo spaces.
func Embedded4(a *[16]byte) (ip4 uint32, ok bool) {
	switch {
	case isMapped(a), isSIIT(a):
		return binary.BigEndian.Uint32(a[12:]), true
	case a[0] == 0x20 && a[1] == 0x01 && a[2] == 0x00 && a[3] == 0x00:
		return ^binary.BigEndian.Uint32(a[12:]), true
	case a[0] == 0x20 && a[1] == 0x02:
		return binary.BigEndian.Uint32(a[2:]), true
	default:
		return 0, false
	}
}

// isMapped returns true if a is within [MappedPrefix].
func isMapped(a *[16]byte) (ok bool) {
	return binary.BigEndian.Uint64(a[:8]) == 0 &&
		binary.BigEndian.Uint32(a[8:12]) == 0x0000_ffff
}

// isSIIT returns true if a is within [SIITPrefix].
func isSIIT(a *[16]byte) (ok bool) {
	return binary.BigEndian.Uint32(a[:4]) == 0x0064_ff9b &&
		binary.BigEndian.Uint64(a[4:12]) == 0
}

// ReservedZone returns the reserved zone that contains p, if any.  IPv4
// prefixes are never reported.
func ReservedZone(p netip.Prefix) (zone netip.Prefix, ok bool) {
	if p.Addr().Is4() {
		return netip.Prefix{}, false
	}

	for _, z := range ReservedZones() {
		if p.Bits() >= z.Bits() && z.Contains(p.Addr()) {
			return z, true
		}
	}

	return netip.Prefix{}, false
}

// CanonicalPrefix returns the canonical address and length of p.  IPv4
// prefixes are moved into [MappedPrefix].  p must be valid.
func CanonicalPrefix(p netip.Prefix) (a [16]byte, bits int) {
	bits = p.Bits()
	if p.Addr().Is4() {
		bits += MappedBits
	}

	return p.Addr().As16(), bits
}
