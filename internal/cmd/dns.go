package cmd

import (
	"fmt"
	"log/slog"
	"math"
	"net/netip"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/dnssvc"
	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/miekg/dns"
)

// dnsConfig contains the configuration of the DNS lookup front-end.
type dnsConfig struct {
	// Bind are the addresses on which the front-end listens both on UDP and
	// TCP.
	Bind []netip.AddrPort `yaml:"bind"`

	// Zone is the domain name under which the reversed addresses are queried,
	// for example "ip.example.com".
	Zone string `yaml:"zone"`

	// TTL is the TTL of the responses.
	TTL timeutil.Duration `yaml:"ttl"`

	// Timeout is the read and write timeout of the connections.
	Timeout timeutil.Duration `yaml:"timeout"`
}

// maxDNSTTL is the maximum TTL that can be put into a DNS record.
const maxDNSTTL = math.MaxUint32 * time.Second

// toInternal converts c to the NetMapper DNS service configuration.  c must be
// valid and not nil.  All arguments must not be nil.
func (c *dnsConfig) toInternal(
	baseLogger *slog.Logger,
	m mapper.Interface,
	errColl errcoll.Interface,
	mtrc dnssvc.Metrics,
) (conf *dnssvc.Config) {
	return &dnssvc.Config{
		Logger:    baseLogger.With(slogutil.KeyPrefix, "dnssvc"),
		Mapper:    m,
		ErrColl:   errColl,
		Metrics:   mtrc,
		Zone:      c.Zone,
		Addresses: c.Bind,
		TTL:       time.Duration(c.TTL),
		Timeout:   time.Duration(c.Timeout),
	}
}

// type check
var _ validate.Interface = (*dnsConfig)(nil)

// Validate implements the [validate.Interface] interface for *dnsConfig.  A nil
// *dnsConfig is valid and means that the front-end is disabled.
func (c *dnsConfig) Validate() (err error) {
	if c == nil {
		return nil
	}

	errs := []error{
		validate.NotEmptySlice("bind", c.Bind),
		validate.InRange("ttl", time.Duration(c.TTL), 0, maxDNSTTL),
		validate.Positive("timeout", c.Timeout),
	}

	for i, addr := range c.Bind {
		if !addr.IsValid() {
			errs = append(errs, fmt.Errorf("bind: at index %d: %w", i, errors.ErrNoValue))
		}
	}

	if c.Zone == "" {
		errs = append(errs, fmt.Errorf("zone: %w", errors.ErrEmptyValue))
	} else if _, ok := dns.IsDomainName(c.Zone); !ok {
		errs = append(errs, fmt.Errorf("zone: bad domain name %q", c.Zone))
	}

	return errors.Join(errs...)
}
