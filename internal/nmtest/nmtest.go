// Package nmtest contains simple mocks for common interfaces and other test
// utilities.
package nmtest

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/ipembed"
	"github.com/AdguardTeam/NetMapper/internal/mapper"
	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/require"
)

// Timeout is the common timeout for tests.
const Timeout = 1 * time.Second

// GracePollInterval is the common grace period poll interval for tests.
const GracePollInterval = 1 * time.Millisecond

// Common labels for tests.
const (
	LabelA = "label-a"
	LabelB = "label-b"
)

// Common addresses for tests.
var (
	// IPv4A is matched by [LabelA] in [NewEntries].
	IPv4A = netip.MustParseAddr("10.2.2.2")

	// IPv4B is matched by [LabelB] in [NewEntries].
	IPv4B = netip.MustParseAddr("10.1.2.3")

	// IPv6A is matched by [LabelA] in [NewEntries].
	IPv6A = netip.MustParseAddr("2001:db8::1")

	// IPv4None isn't matched by anything in [NewEntries].
	IPv4None = netip.MustParseAddr("8.8.8.8")
)

// NewEntries returns the common entries for tests: 10.0.0.0/8 and
// 2001:db8::/32 labeled with [LabelA], 10.1.0.0/16 labeled with [LabelB], and
// the placeholders of all reserved zones.
func NewEntries() (entries []snapshot.Entry) {
	entries = []snapshot.Entry{{
		Prefix: netip.MustParsePrefix("10.0.0.0/8"),
		Label:  LabelA,
	}, {
		Prefix: netip.MustParsePrefix("2001:db8::/32"),
		Label:  LabelA,
	}, {
		Prefix: netip.MustParsePrefix("10.1.0.0/16"),
		Label:  LabelB,
	}}

	return append(entries, Placeholders()...)
}

// Placeholders returns the placeholder entries for all reserved zones.
func Placeholders() (entries []snapshot.Entry) {
	for _, z := range ipembed.ReservedZones() {
		entries = append(entries, snapshot.Entry{
			Prefix:      z,
			Placeholder: true,
		})
	}

	return entries
}

// NewSnapshot returns a new snapshot of generation gen built from entries.
func NewSnapshot(tb testing.TB, gen uint64, entries []snapshot.Entry) (s *snapshot.Snapshot) {
	tb.Helper()

	s, err := snapshot.Build(context.Background(), slogutil.NewDiscardLogger(), gen, entries)
	require.NoError(tb, err)

	return s
}

// NewManager returns a new manager with a published snapshot built from
// [NewEntries].  The manager is shut down on the test cleanup.
func NewManager(tb testing.TB) (m *mapper.Manager) {
	tb.Helper()

	m = mapper.New(&mapper.Config{
		Logger:            slogutil.NewDiscardLogger(),
		Source:            &Source{},
		Metrics:           mapper.EmptyMetrics{},
		GracePollInterval: GracePollInterval,
	})

	ctx := testutil.ContextWithTimeout(tb, Timeout)
	require.NoError(tb, m.Publish(ctx, NewSnapshot(tb, 1, NewEntries())))

	testutil.CleanupAndRequireSuccess(tb, func() (err error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), Timeout)
		defer cancel()

		return m.Shutdown(shutdownCtx)
	})

	return m
}
