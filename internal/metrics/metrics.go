// Package metrics holds the Prometheus collectors of the logging pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sentence results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultIgnored = "ignored"
)

type Metrics struct {
	Sentences        *prometheus.CounterVec
	Flushes          prometheus.Counter
	FlushFields      prometheus.Histogram
	SinkWriteSeconds prometheus.Histogram
	SinkFailures     *prometheus.CounterVec
	SnapshotsDropped prometheus.Counter
	TrueWindSkipped  prometheus.Counter
	Summaries        *prometheus.CounterVec
	Reconnects       prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logbook_sentences_total",
			Help: "NMEA lines seen, by sentence kind and outcome.",
		}, []string{"kind", "result"}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logbook_flushes_total",
			Help: "Snapshot flushes performed.",
		}),
		FlushFields: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logbook_flush_fields",
			Help:    "Number of fields present in each flushed snapshot.",
			Buckets: prometheus.LinearBuckets(0, 4, 8),
		}),
		SinkWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logbook_sink_write_seconds",
			Help:    "Latency of sink writes including retries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logbook_sink_write_failures_total",
			Help: "Sink writes that failed after all retries.",
		}, []string{"sink"}),
		SnapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logbook_snapshots_dropped_total",
			Help: "Snapshots lost because the sink rejected them.",
		}),
		TrueWindSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logbook_true_wind_skipped_total",
			Help: "Flushes without true wind because an input was missing.",
		}),
		Summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logbook_summaries_total",
			Help: "Hourly summaries attempted, by outcome.",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logbook_ingest_reconnects_total",
			Help: "Ingest source (re)connections established.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Sentences, m.Flushes, m.FlushFields, m.SinkWriteSeconds, m.SinkFailures,
			m.SnapshotsDropped, m.TrueWindSkipped, m.Summaries, m.Reconnects,
		)
	}
	return m
}

func (m *Metrics) Sentence(kind, result string) {
	m.Sentences.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Flushed(fields int) {
	m.Flushes.Inc()
	m.FlushFields.Observe(float64(fields))
}

func (m *Metrics) SinkWrite(seconds float64) {
	m.SinkWriteSeconds.Observe(seconds)
}

// SinkFailed counts a write whose data is lost.
func (m *Metrics) SinkFailed(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
	m.SnapshotsDropped.Inc()
}

func (m *Metrics) Summary(result string) {
	m.Summaries.WithLabelValues(result).Inc()
}
