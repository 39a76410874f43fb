package mapconf

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/errors"
)

// Parse parses data, which is a JSON object mapping labels to arrays of
// networks, and returns the entries for them along with the placeholders of
// the reserved zones.  A network is either a CIDR prefix or a single address.
// All problems found in data are returned joined together.
func Parse(data []byte) (entries []snapshot.Entry, err error) {
	var labels map[string][]string
	err = json.Unmarshal(data, &labels)
	if err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	var errs []error
	seen := map[netip.Prefix]string{}
	hasDefault4 := false
	for _, label := range slices.Sorted(maps.Keys(labels)) {
		if label == "" {
			errs = append(errs, errEmptyLabel)

			continue
		}

		for i, s := range labels[label] {
			var p netip.Prefix
			p, err = parseNetwork(label, s)
			if err != nil {
				errs = append(errs, fmt.Errorf("label %q: network at index %d: %w", label, i, err))

				continue
			}

			key := p.Masked()
			if prev, ok := seen[key]; ok {
				errs = append(errs, &DuplicateError{
					Prefix: key,
					Labels: [2]string{prev, label},
				})

				continue
			}

			seen[key] = label
			hasDefault4 = hasDefault4 || (p.Addr().Is4() && p.Bits() == 0)

			entries = append(entries, snapshot.Entry{
				Prefix: p,
				Label:  label,
			})
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return nil, err
	}

	return append(entries, placeholders(hasDefault4)...), nil
}

// parseNetwork parses s as either a prefix or a host address and checks that
// it's not within a reserved zone.
func parseNetwork(label, s string) (p netip.Prefix, err error) {
	if strings.Contains(s, "/") {
		p, err = netip.ParsePrefix(s)
		if err != nil {
			// Don't wrap the error, because it's informative enough as is.
			return netip.Prefix{}, err
		}
	} else {
		var addr netip.Addr
		addr, err = netip.ParseAddr(s)
		if err != nil {
			// Don't wrap the error, because it's informative enough as is.
			return netip.Prefix{}, err
		}

		if addr.Zone() != "" {
			return netip.Prefix{}, fmt.Errorf("%q: %w", s, errZone)
		}

		p = netip.PrefixFrom(addr, addr.BitLen())
	}

	if zone, ok := ipembed.ReservedZone(p); ok {
		return netip.Prefix{}, &ReservedSpaceError{
			Label:  label,
			Prefix: p,
			Zone:   zone,
		}
	}

	return p, nil
}

// placeholders returns the placeholder entries of the reserved zones.  The
// canonical IPv4 zone is omitted if hasDefault4 is true, since the default
// IPv4 network covers all of it anyway.
func placeholders(hasDefault4 bool) (entries []snapshot.Entry) {
	for _, z := range ipembed.ReservedZones() {
		if hasDefault4 && z == ipembed.MappedPrefix {
			continue
		}

		entries = append(entries, snapshot.Entry{
			Prefix:      z,
			Placeholder: true,
		})
	}

	return entries
}
