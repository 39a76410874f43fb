package dnssvc

import "context"

// Metrics is an interface for collecting the DNS service statistics.
type Metrics interface {
	// IncrementResponses increments the number of responses with the given
	// response code.  rcode is the textual representation of the code, for
	// example "NOERROR".
	IncrementResponses(ctx context.Context, rcode string)

	// IncrementPanics increments the number of recovered handler panics.
	IncrementPanics(ctx context.Context)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// IncrementResponses implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementResponses(_ context.Context, _ string) {}

// IncrementPanics implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementPanics(_ context.Context) {}
