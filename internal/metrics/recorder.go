// Package metrics records aggregation runs as Prometheus metrics.
//
// Metrics can be exported to a file in the text exposition format, for the node exporter
// textfile collector, or served over HTTP while watching for changes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "merge_results"

// Recorder holds the metrics of the aggregation runs of the process.
type Recorder struct {
	reg *prometheus.Registry

	runs      *prometheus.CounterVec
	files     prometheus.Gauge
	scanners  prometheus.Gauge
	success   prometheus.Gauge
	timestamp prometheus.Gauge
	duration  prometheus.Gauge
}

// New returns a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of aggregation runs, by outcome.",
		}, []string{"result"}),
		files: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files",
			Help:      "Number of scanner result files read by the last successful run.",
		}),
		scanners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scanners",
			Help:      "Number of scanners in the document written by the last successful run.",
		}),
		success: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last aggregation run succeeded (1) or failed (0).",
		}),
		timestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last aggregation run started.",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last aggregation run.",
		}),
	}
}

// Observe records one aggregation run.
// File and scanner counts are only updated for successful runs.
func (r *Recorder) Observe(files, scanners int, runErr error, start time.Time, elapsed time.Duration) {
	r.timestamp.Set(float64(start.Unix()))
	r.duration.Set(elapsed.Seconds())

	if runErr != nil {
		r.runs.WithLabelValues("failure").Inc()
		r.success.Set(0)
		return
	}

	r.runs.WithLabelValues("success").Inc()
	r.success.Set(1)
	r.files.Set(float64(files))
	r.scanners.Set(float64(scanners))
}

// Gatherer returns the registry holding the recorded metrics.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteToTextfile writes the recorded metrics to path, in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("could not write metrics to %q: %v", path, err)
	}
	return nil
}
