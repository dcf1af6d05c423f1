// Package telemetry exposes pipeline counters through a Prometheus
// compatible endpoint.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics of the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	BuffersCaptured  prometheus.Counter
	BuffersProcessed prometheus.Counter
	Decisions        *prometheus.CounterVec
	SpuriousWakes    prometheus.Counter
	MissedSignals    prometheus.Counter
	CaptureErrors    prometheus.Counter
	ClassifyDuration prometheus.Histogram
	AudioLevel       prometheus.Gauge
}

// NewMetrics creates a new metrics instance with its own registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BuffersCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_buffers_captured_total",
			Help: "Total number of completed capture buffers.",
		}),
		BuffersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_buffers_processed_total",
			Help: "Total number of buffers run through the classifier.",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_decisions_total",
			Help: "Actuation decisions by outcome.",
		}, []string{"decision"}),
		SpuriousWakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_spurious_wakes_total",
			Help: "Worker wakes that found the treatment queue empty.",
		}),
		MissedSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_missed_signals_total",
			Help: "Completion signals dropped because the signal channel was full.",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_capture_errors_total",
			Help: "Fatal errors reported by the audio capture interface.",
		}),
		ClassifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_classify_duration_seconds",
			Help:    "Duration of a single classify call.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		AudioLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicebot_audio_level",
			Help: "Current capture audio level, 0-100.",
		}),
	}

	collectors := []prometheus.Collector{
		m.BuffersCaptured,
		m.BuffersProcessed,
		m.Decisions,
		m.SpuriousWakes,
		m.MissedSignals,
		m.CaptureErrors,
		m.ClassifyDuration,
		m.AudioLevel,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("error registering metric: %w", err)
		}
	}

	return m, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
