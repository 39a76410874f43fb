package metrics

import (
	"context"
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DNSSvc is the Prometheus-based implementation of the [dnssvc.Metrics]
// interface.
type DNSSvc struct {
	// responses is a counter vector with the number of responses by their
	// response code.
	responses *prometheus.CounterVec

	// panics is a counter with the number of recovered handler panics.
	panics prometheus.Counter
}

// NewDNSSvc registers the DNS service metrics in reg and returns a properly
// initialized [*DNSSvc].
func NewDNSSvc(namespace string, reg prometheus.Registerer) (m *DNSSvc, err error) {
	const (
		responses = "responses_total"
		panics    = "panics_total"
	)

	m = &DNSSvc{
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      responses,
			Namespace: namespace,
			Subsystem: subsystemDNSSvc,
			Help:      "The number of DNS responses by their response code.",
		}, []string{"rcode"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      panics,
			Namespace: namespace,
			Subsystem: subsystemDNSSvc,
			Help:      "The number of recovered DNS handler panics.",
		}),
	}

	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   responses,
		Value: m.responses,
	}, {
		Key:   panics,
		Value: m.panics,
	}}

	var errs []error
	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// IncrementResponses implements the [dnssvc.Metrics] interface for *DNSSvc.
func (m *DNSSvc) IncrementResponses(_ context.Context, rcode string) {
	m.responses.WithLabelValues(rcode).Inc()
}

// IncrementPanics implements the [dnssvc.Metrics] interface for *DNSSvc.
func (m *DNSSvc) IncrementPanics(_ context.Context) {
	m.panics.Inc()
}
