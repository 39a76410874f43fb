package mapper

import (
	"context"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/snapshot"
)

// Metrics is an interface that is used for the collection of the snapshot
// manager statistics.
type Metrics interface {
	// ObserveRefresh records the duration and the result of a refresh.
	ObserveRefresh(ctx context.Context, dur time.Duration, err error)

	// SetSnapshot records the sizes of a newly published snapshot.
	SetSnapshot(ctx context.Context, st snapshot.Stats)

	// SetRetiring sets the number of retired snapshots that are not yet
	// destroyed.
	SetRetiring(ctx context.Context, n int)

	// ObserveGracePeriod records the time between the retirement and the
	// destruction of a snapshot.
	ObserveGracePeriod(ctx context.Context, dur time.Duration)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveRefresh implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRefresh(_ context.Context, _ time.Duration, _ error) {}

// SetSnapshot implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetSnapshot(_ context.Context, _ snapshot.Stats) {}

// SetRetiring implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetRetiring(_ context.Context, _ int) {}

// ObserveGracePeriod implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveGracePeriod(_ context.Context, _ time.Duration) {}
