package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the acquisition run.
type Metrics struct {
	// Provider request metrics.
	ProviderRequests        *prometheus.CounterVec // labels: outcome={success,transient,permanent}
	ProviderRequestDuration prometheus.Histogram
	ChunkRetries            prometheus.Counter
	FailedChunks            *prometheus.CounterVec // labels: kind={exhausted,permanent,interrupted}

	// Aggregation metrics.
	RecordsEmitted  *prometheus.CounterVec // labels: table
	StatesCompleted prometheus.Counter
	RunInProgress   prometheus.Gauge

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Weather provider requests by outcome.",
		}, []string{"outcome"}),
		ProviderRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Weather provider request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}),
		ChunkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_retries_total",
			Help:      "Chunk request attempts after the first.",
		}),
		FailedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_chunks_total",
			Help:      "Chunks recorded in the failure log, by kind.",
		}, []string{"kind"}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Monthly records emitted per output table.",
		}, []string{"table"}),
		StatesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "states_completed_total",
			Help:      "States that reached the done state.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while an acquisition run is active, 0 otherwise.",
		}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Dataset writes per sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderRequestDuration,
		m.ChunkRetries,
		m.FailedChunks,
		m.RecordsEmitted,
		m.StatesCompleted,
		m.RunInProgress,
		m.SinkWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
