// Package metrics records build outcomes and exports them in the node
// exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	builds      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vagrantizer_builds_total",
				Help: "Box builds by target and outcome.",
			},
			[]string{"family", "revision", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vagrantizer_build_duration_seconds",
				Help:    "Wall time of a single target build.",
				Buckets: prometheus.ExponentialBuckets(30, 2, 8),
			},
			[]string{"family"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vagrantizer_last_success_timestamp_seconds",
				Help: "Unix time of the last successful build of a target.",
			},
			[]string{"family", "revision"},
		),
	}
}

// Observe records one finished target build.
func (r *Recorder) Observe(family, revision, status string, took time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.builds.WithLabelValues(family, revision, status).Inc()
	r.duration.WithLabelValues(family).Observe(took.Seconds())
	if status == "succeeded" {
		r.lastSuccess.WithLabelValues(family, revision).Set(float64(at.Unix()))
	}
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
