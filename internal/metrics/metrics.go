// Package metrics holds the Prometheus collectors for decoding and imports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry plus the collectors registered on it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry       *prometheus.Registry
	HostsDecoded   prometheus.Counter
	HostFailures   prometheus.Counter
	PortsDecoded   prometheus.Counter
	Imports        *prometheus.CounterVec
	ImportDuration prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HostsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nmaphosts",
			Name:      "hosts_decoded_total",
			Help:      "Hosts decoded successfully.",
		}),
		HostFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nmaphosts",
			Name:      "host_decode_failures_total",
			Help:      "Hosts that failed to decode and were skipped.",
		}),
		PortsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nmaphosts",
			Name:      "ports_decoded_total",
			Help:      "Ports decoded across all hosts.",
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nmaphosts",
			Name:      "imports_total",
			Help:      "Import attempts by result.",
		}, []string{"result"}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nmaphosts",
			Name:      "import_duration_seconds",
			Help:      "Time spent decoding and storing one document.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.HostsDecoded, m.HostFailures, m.PortsDecoded, m.Imports, m.ImportDuration)
	return m
}

// ObserveDecode records the outcome of decoding one document.
func (m *Metrics) ObserveDecode(hosts, ports, skipped int) {
	if m == nil {
		return
	}
	m.HostsDecoded.Add(float64(hosts))
	m.PortsDecoded.Add(float64(ports))
	m.HostFailures.Add(float64(skipped))
}

// ObserveImport records an import attempt.
func (m *Metrics) ObserveImport(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Imports.WithLabelValues(result).Inc()
	m.ImportDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
