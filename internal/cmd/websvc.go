package cmd

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/websvc"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
	"golang.org/x/time/rate"
)

// webConfig contains configuration for the NetMapper HTTP lookup API.
type webConfig struct {
	// Bind are the addresses on which the API listens.
	Bind []netip.AddrPort `yaml:"bind"`

	// RateLimit is the number of lookups per second allowed for all clients.
	// If it is zero, lookups are not rate limited.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the maximum burst of lookups.
	RateBurst int `yaml:"rate_burst"`

	// Timeout is the timeout for all server operations.
	Timeout timeutil.Duration `yaml:"timeout"`
}

// toInternal converts c to the NetMapper web service configuration.  c must be
// valid and not nil.  All arguments must not be nil.
func (c *webConfig) toInternal(
	baseLogger *slog.Logger,
	m *mapper.Manager,
	readers mapper.Interface,
	mtrc websvc.Metrics,
) (conf *websvc.Config) {
	return &websvc.Config{
		Logger:    baseLogger.With(slogutil.KeyPrefix, "websvc"),
		Mapper:    readers,
		Snapshots: m,
		Metrics:   mtrc,
		Addresses: c.Bind,
		RateLimit: rate.Limit(c.RateLimit),
		RateBurst: c.RateBurst,
		Timeout:   time.Duration(c.Timeout),
	}
}

// type check
var _ validate.Interface = (*webConfig)(nil)

// Validate implements the [validate.Interface] interface for *webConfig.  A nil
// *webConfig is valid and means that the API is disabled.
func (c *webConfig) Validate() (err error) {
	if c == nil {
		return nil
	}

	errs := []error{
		validate.NotEmptySlice("bind", c.Bind),
		validate.Positive("timeout", c.Timeout),
	}

	for i, addr := range c.Bind {
		if !addr.IsValid() {
			errs = append(errs, fmt.Errorf("bind: at index %d: %w", i, errors.ErrNoValue))
		}
	}

	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit: %w: %v", errors.ErrNegative, c.RateLimit))
	} else if c.RateLimit > 0 {
		errs = append(errs, validate.Positive("rate_burst", c.RateBurst))
	}

	return errors.Join(errs...)
}
