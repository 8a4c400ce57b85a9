package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported metric.
const Namespace = "blob_installer"

// Outcome labels the way a run ended.
type Outcome string

// Known outcomes. Exactly one of them is set to 1 after Observe.
const (
	OutcomeInstalled        Outcome = "installed"
	OutcomeChecksumMismatch Outcome = "checksum_mismatch"
	OutcomeInstallFailed    Outcome = "install_failed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeFailed           Outcome = "failed"
)

// Outcomes lists every known outcome in a stable order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeInstalled,
		OutcomeChecksumMismatch,
		OutcomeInstallFailed,
		OutcomeCancelled,
		OutcomeFailed,
	}
}

// Run is the summary of one installer run.
type Run struct {
	Outcome       Outcome
	Finished      time.Time
	Duration      time.Duration
	BytesReported int64
	BytesWritten  int64
}

// Recorder keeps the gauges of a single run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	lastRun  prometheus.Gauge
	duration prometheus.Gauge
	bytes    *prometheus.GaugeVec
	outcome  *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with all gauges registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last installer run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last installer run.",
		}),
		bytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "transfer_bytes",
			Help:      "Archive size announced by the source and actually written.",
		}, []string{"kind"}),
		outcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_outcome",
			Help:      "Set to 1 for the outcome of the last installer run.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.lastRun, r.duration, r.bytes, r.outcome)

	return r
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe stores run in the gauges.
func (r *Recorder) Observe(run Run) {
	finished := run.Finished
	if finished.IsZero() {
		finished = time.Now()
	}

	r.lastRun.Set(float64(finished.Unix()))
	r.duration.Set(run.Duration.Seconds())
	r.bytes.WithLabelValues("reported").Set(float64(run.BytesReported))
	r.bytes.WithLabelValues("written").Set(float64(run.BytesWritten))

	for _, outcome := range Outcomes() {
		value := 0.0
		if outcome == run.Outcome {
			value = 1
		}

		r.outcome.WithLabelValues(string(outcome)).Set(value)
	}
}

// WriteTextfile atomically writes the gauges to path in the text exposition
// format. The parent directory is created when missing.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}

	return nil
}
