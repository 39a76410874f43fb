// Package metrics contains the Prometheus-based implementations of the metrics
// interfaces of NetMapper.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the namespace of all NetMapper metrics.
const Namespace = "netmapper"

// Subsystem names that are used in the metrics.
const (
	subsystemApplication = "app"
	subsystemDNSSvc      = "dnssvc"
	subsystemMapper      = "mapper"
	subsystemWebSvc      = "websvc"
)

// SetUpGauge registers the gauge that signals that the server has been started
// in reg and sets it.
func SetUpGauge(
	reg prometheus.Registerer,
	version string,
	branch string,
	commitTime string,
	revision string,
	goVersion string,
) (err error) {
	const upGauge = "up"

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      upGauge,
		Namespace: Namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":    version,
			"branch":     branch,
			"committime": commitTime,
			"revision":   revision,
			"goversion":  goVersion,
		},
	})

	err = reg.Register(gauge)
	if err != nil {
		return fmt.Errorf("registering metrics %q: %w", upGauge, err)
	}

	gauge.Set(1)

	return nil
}

// SetStatusGauge is a helper function that automatically checks if there's an
// error and sets the gauge to either 1 (success) or 0 (error).
func SetStatusGauge(gauge prometheus.Gauge, err error) {
	if err == nil {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}

// BoolString returns "1" if cond is true and "0" otherwise.
func BoolString(cond bool) (s string) {
	if cond {
		return "1"
	}

	return "0"
}
