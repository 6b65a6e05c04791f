// Package metrics collects Prometheus metrics for a batch run and exports
// them in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Batch holds the metrics of one run.
type Batch struct {
	reg        *prometheus.Registry
	items      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates prometheus.Gauge
}

// New registers the batch metrics on a fresh registry.
func New() *Batch {
	b := &Batch{
		reg: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "snapcrop",
			Name:      "items_total",
			Help:      "Input items processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "snapcrop",
			Name:      "item_duration_seconds",
			Help:      "Wall time spent on one input item, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"outcome"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "snapcrop",
			Name:      "candidates",
			Help:      "Size of the expanded candidate set.",
		}),
	}
	b.reg.MustRegister(b.items, b.duration, b.candidates)
	return b
}

// SetCandidates records the candidate set size.
func (b *Batch) SetCandidates(n int) {
	b.candidates.Set(float64(n))
}

// Observe counts one finished item.
func (b *Batch) Observe(outcome string, d time.Duration) {
	b.items.WithLabelValues(outcome).Inc()
	b.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// WriteTextfile atomically writes the metrics to path.
func (b *Batch) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, b.reg)
}
