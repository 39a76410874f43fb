package dnssvc

import (
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	// errBadLabelCount is returned by [addrFromName] when the number of labels
	// before the zone is neither [ipv4Labels] nor [ipv6Labels].
	errBadLabelCount errors.Error = "bad number of labels"

	// errBadNibble is returned by [addrFromName] when an IPv6 label is not a
	// single hexadecimal digit.
	errBadNibble errors.Error = "bad nibble"
)

// Numbers of labels in the reversed addresses.
const (
	ipv4Labels = net.IPv4len
	ipv6Labels = net.IPv6len * 2
)

// addrFromName returns the address encoded in name, which must be a lowercase
// fully-qualified subdomain of zone.  The address is encoded the same way as in
// the in-addr.arpa and ip6.arpa zones: either as four reversed decimal octets
// or as thirty-two reversed hexadecimal nibbles.
func addrFromName(name, zone string) (addr netip.Addr, err error) {
	sub := strings.TrimSuffix(name[:len(name)-len(zone)], ".")
	labels := strings.Split(sub, ".")

	switch len(labels) {
	case ipv4Labels:
		slices.Reverse(labels)

		return netip.ParseAddr(strings.Join(labels, "."))
	case ipv6Labels:
		return addrFromNibbles(labels)
	default:
		return netip.Addr{}, fmt.Errorf("%w: %d", errBadLabelCount, len(labels))
	}
}

// addrFromNibbles returns the IPv6 address from the reversed nibble labels.
func addrFromNibbles(labels []string) (addr netip.Addr, err error) {
	var b [net.IPv6len]byte
	for i, l := range labels {
		if len(l) != 1 {
			return netip.Addr{}, fmt.Errorf("label at index %d: %w: %q", i, errBadNibble, l)
		}

		var n uint64
		n, err = strconv.ParseUint(l, 16, 4)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("label at index %d: %w: %q", i, errBadNibble, l)
		}

		// The first label is the least significant nibble.
		pos := len(labels) - 1 - i
		b[pos/2] |= byte(n) << (4 * (1 - pos%2))
	}

	return netip.AddrFrom16(b), nil
}
