package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"gopkg.in/yaml.v2"
)

// configuration represents the on-disk configuration of NetMapper.  The order
// of the fields should generally not be altered.
type configuration struct {
	// Mapper is the configuration of the snapshot manager and its refreshes.
	Mapper *mapperConfig `yaml:"mapper"`

	// Web is the configuration of the HTTP lookup API.  If it is nil, the API
	// is disabled.
	Web *webConfig `yaml:"web"`

	// DNS is the configuration of the DNS lookup front-end.  If it is nil, the
	// front-end is disabled.
	DNS *dnsConfig `yaml:"dns"`
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	// Keep this in the same order as the fields in the config.
	validators := container.KeyValues[string, validate.Interface]{{
		Key:   "mapper",
		Value: c.Mapper,
	}, {
		Key:   "web",
		Value: c.Web,
	}, {
		Key:   "dns",
		Value: c.DNS,
	}}

	var errs []error
	for _, kv := range validators {
		errs = validate.Append(errs, kv.Key, kv.Value)
	}

	return errors.Join(errs...)
}

// parseConfig reads the configuration.  Unknown properties and duplicate keys
// are errors.
func parseConfig(confPath string) (c *configuration, err error) {
	// #nosec G304 -- Trust the path to the configuration file that is given
	// from the environment.
	yamlFile, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c = &configuration{}
	err = yaml.UnmarshalStrict(yamlFile, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}
