package dnssvc

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/errcoll"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
)

// Config is the configuration of the DNS service.
type Config struct {
	// Logger is used as the base logger for the service.  It must not be nil.
	Logger *slog.Logger

	// Mapper is used to look up the labels of the queried addresses.  It must
	// not be nil.
	Mapper mapper.Interface

	// ErrColl is used to collect the serving errors and handler panics.  It
	// must not be nil.
	ErrColl errcoll.Interface

	// Metrics is used for the collection of the DNS service statistics.  It
	// must not be nil.
	Metrics Metrics

	// Zone is the fully-qualified domain name under which the addresses are
	// queried.  It must be a valid domain name.
	Zone string

	// Addresses are the addresses on which the service listens both on UDP and
	// TCP.
	Addresses []netip.AddrPort

	// TTL is the TTL of the answers.  It must not be negative.
	TTL time.Duration

	// Timeout is the read and write timeout for the TCP connections.  It must
	// be positive.
	Timeout time.Duration
}
