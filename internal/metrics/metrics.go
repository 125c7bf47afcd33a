package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "imgclf"

// Recorder collects per-run classification metrics on its own registry,
// so a run can be dumped for the node exporter textfile collector.
type Recorder struct {
	registry *prometheus.Registry

	classifyTotal    *prometheus.CounterVec
	classifyDuration *prometheus.HistogramVec
	downloadTotal    *prometheus.CounterVec
}

func New(model string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"model": model}

	return &Recorder{
		registry: reg,
		classifyTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "classify_total",
				Help:        "Number of classified images by outcome",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
		classifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "classify_duration_seconds",
				Help:        "Time spent classifying one image",
				ConstLabels: constLabels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		downloadTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "download_total",
				Help:        "Number of remote image downloads by outcome",
				ConstLabels: constLabels,
			},
			[]string{"status"},
		),
	}
}

// Classified records one classification. A nil Recorder is a no-op.
func (r *Recorder) Classified(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.classifyTotal.With(prometheus.Labels{"status": status}).Inc()
	r.classifyDuration.With(prometheus.Labels{"status": status}).Observe(duration.Seconds())
}

func (r *Recorder) Downloaded(status string) {
	if r == nil {
		return
	}
	r.downloadTotal.With(prometheus.Labels{"status": status}).Inc()
}

// Registry exposes the underlying registry for gathering
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile dumps the metrics in text exposition format to path
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
