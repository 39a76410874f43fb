package websvc

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"golang.org/x/time/rate"
)

// Config is the NetMapper web service configuration structure.
type Config struct {
	// Logger is used for logging the operation of the web service.  It must not
	// be nil.
	Logger *slog.Logger

	// Mapper is used to look up the labels of addresses.  It must not be nil.
	Mapper mapper.Interface

	// Snapshots is used to report the published snapshot.  It must not be
	// nil.
	Snapshots SnapshotSource

	// Metrics is used for the collection of the web service statistics.  It
	// must not be nil.
	Metrics Metrics

	// Addresses are the addresses on which the service listens.  Ports may be
	// zero, in which case the real port is chosen by the OS.
	Addresses []netip.AddrPort

	// RateLimit is the number of lookup requests per second allowed for all
	// clients.  If zero, lookups are not rate limited.
	RateLimit rate.Limit

	// RateBurst is the maximum burst of lookup requests.  It must be positive
	// if RateLimit is not zero.
	RateBurst int

	// Timeout is the timeout for all server operations.
	Timeout time.Duration
}

// SnapshotSource is the source of the published snapshot.
type SnapshotSource interface {
	// Current returns the published snapshot or nil if there isn't one.
	Current() (s *snapshot.Snapshot)
}
