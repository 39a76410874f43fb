package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/AdguardTeam/NetMapper/internal/snapshot"
	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Mapper is the Prometheus-based implementation of the [mapper.Metrics]
// interface.
type Mapper struct {
	// refreshDuration is a histogram with the durations of the refreshes.
	refreshDuration prometheus.Histogram

	// refreshStatus is a gauge with the status of the last refresh.  It is 1
	// if the refresh was successful.  Otherwise, it is 0.
	refreshStatus prometheus.Gauge

	// refreshSuccesses and refreshFailures are the counters of the refreshes
	// by their result.
	refreshSuccesses prometheus.Counter
	refreshFailures  prometheus.Counter

	// snapshotGeneration is a gauge with the generation of the published
	// snapshot.
	snapshotGeneration prometheus.Gauge

	// snapshotTime is a gauge with the time when the published snapshot was
	// built.
	snapshotTime prometheus.Gauge

	// snapshotEntries is a gauge with the number of the networks in the
	// published snapshot, including the placeholders.
	snapshotEntries prometheus.Gauge

	// snapshotLabels is a gauge with the number of the distinct labels in the
	// published snapshot.
	snapshotLabels prometheus.Gauge

	// snapshotNodes is a gauge with the number of the trie nodes in the
	// published snapshot.
	snapshotNodes prometheus.Gauge

	// retiringSnapshots is a gauge with the number of the replaced snapshots
	// which are still waiting for their readers.
	retiringSnapshots prometheus.Gauge

	// gracePeriodDuration is a histogram with the durations between the
	// replacement and the destruction of the snapshots.
	gracePeriodDuration prometheus.Histogram
}

// NewMapper registers the snapshot manager metrics in reg and returns a
// properly initialized [*Mapper].
func NewMapper(namespace string, reg prometheus.Registerer) (m *Mapper, err error) {
	const (
		refreshDuration     = "refresh_duration_seconds"
		refreshStatus       = "refresh_status"
		refreshTotal        = "refreshes_total"
		snapshotGeneration  = "snapshot_generation"
		snapshotTime        = "snapshot_created_timestamp"
		snapshotEntries     = "snapshot_networks"
		snapshotLabels      = "snapshot_labels"
		snapshotNodes       = "snapshot_nodes"
		retiringSnapshots   = "retiring_snapshots"
		gracePeriodDuration = "grace_period_duration_seconds"
	)

	refreshTotalCounterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      refreshTotal,
		Namespace: namespace,
		Subsystem: subsystemMapper,
		Help:      "The total number of snapshot refreshes by their result.",
	}, []string{"success"})

	m = &Mapper{
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      refreshDuration,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "Time elapsed on reloading the networks and rebuilding the snapshot.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		}),
		refreshStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshStatus,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "Status of the last refresh. 1 is okay, 0 means there was an error.",
		}),
		refreshSuccesses: refreshTotalCounterVec.WithLabelValues(BoolString(true)),
		refreshFailures:  refreshTotalCounterVec.WithLabelValues(BoolString(false)),
		snapshotGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      snapshotGeneration,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The generation of the published snapshot.",
		}),
		snapshotTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      snapshotTime,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The time when the published snapshot was built.",
		}),
		snapshotEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      snapshotEntries,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The number of networks in the published snapshot.",
		}),
		snapshotLabels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      snapshotLabels,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The number of distinct labels in the published snapshot.",
		}),
		snapshotNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      snapshotNodes,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The number of trie nodes in the published snapshot.",
		}),
		retiringSnapshots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      retiringSnapshots,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "The number of replaced snapshots waiting for their readers.",
		}),
		gracePeriodDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      gracePeriodDuration,
			Namespace: namespace,
			Subsystem: subsystemMapper,
			Help:      "Time elapsed between the replacement and the destruction of a snapshot.",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}),
	}

	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   refreshDuration,
		Value: m.refreshDuration,
	}, {
		Key:   refreshStatus,
		Value: m.refreshStatus,
	}, {
		Key:   refreshTotal,
		Value: refreshTotalCounterVec,
	}, {
		Key:   snapshotGeneration,
		Value: m.snapshotGeneration,
	}, {
		Key:   snapshotTime,
		Value: m.snapshotTime,
	}, {
		Key:   snapshotEntries,
		Value: m.snapshotEntries,
	}, {
		Key:   snapshotLabels,
		Value: m.snapshotLabels,
	}, {
		Key:   snapshotNodes,
		Value: m.snapshotNodes,
	}, {
		Key:   retiringSnapshots,
		Value: m.retiringSnapshots,
	}, {
		Key:   gracePeriodDuration,
		Value: m.gracePeriodDuration,
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

// ObserveRefresh implements the [mapper.Metrics] interface for *Mapper.
func (m *Mapper) ObserveRefresh(_ context.Context, dur time.Duration, err error) {
	m.refreshDuration.Observe(dur.Seconds())
	SetStatusGauge(m.refreshStatus, err)

	if err == nil {
		m.refreshSuccesses.Inc()
	} else {
		m.refreshFailures.Inc()
	}
}

// SetSnapshot implements the [mapper.Metrics] interface for *Mapper.
func (m *Mapper) SetSnapshot(_ context.Context, st snapshot.Stats) {
	m.snapshotGeneration.Set(float64(st.Generation))
	m.snapshotTime.Set(float64(st.Created.Unix()))
	m.snapshotEntries.Set(float64(st.Entries))
	m.snapshotLabels.Set(float64(st.Labels))
	m.snapshotNodes.Set(float64(st.Nodes))
}

// SetRetiring implements the [mapper.Metrics] interface for *Mapper.
func (m *Mapper) SetRetiring(_ context.Context, n int) {
	m.retiringSnapshots.Set(float64(n))
}

// ObserveGracePeriod implements the [mapper.Metrics] interface for *Mapper.
func (m *Mapper) ObserveGracePeriod(_ context.Context, dur time.Duration) {
	m.gracePeriodDuration.Observe(dur.Seconds())
}
