package cmd

import (
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/AdguardTeam/golibs/validate"
)

// mapperConfig is the configuration of the snapshot manager.
type mapperConfig struct {
	// RefreshIvl is the interval between the checks of the data file.
	RefreshIvl timeutil.Duration `yaml:"refresh_interval"`

	// RefreshTimeout is the timeout for a single reload, including the grace
	// period of the replaced snapshot.
	RefreshTimeout timeutil.Duration `yaml:"refresh_timeout"`

	// GracePollIvl is how often the manager checks whether the readers have
	// left a replaced snapshot.
	GracePollIvl timeutil.Duration `yaml:"grace_poll_interval"`
}

// maxGracePollIvl is the maximum value of the grace_poll_interval property.
const maxGracePollIvl = 1 * time.Second

// type check
var _ validate.Interface = (*mapperConfig)(nil)

// Validate implements the [validate.Interface] interface for *mapperConfig.
func (c *mapperConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.Positive("refresh_interval", c.RefreshIvl),
		validate.Positive("refresh_timeout", c.RefreshTimeout),
		validate.InRange(
			"grace_poll_interval",
			time.Duration(c.GracePollIvl),
			time.Millisecond,
			maxGracePollIvl,
		),
	}

	if c.RefreshTimeout > c.RefreshIvl {
		errs = append(errs, errors.Error("refresh_timeout: must not be greater than refresh_interval"))
	}

	return errors.Join(errs...)
}
