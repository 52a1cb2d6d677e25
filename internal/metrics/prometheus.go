package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stakescope"

// batchBuckets are in milliseconds.
var batchBuckets = []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10_000}

type prometheusMetrics struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	lastBlock  prometheus.Gauge
	batchTime  prometheus.Histogram
	batchCount prometheus.Counter
	batchSize  prometheus.Counter
}

// NewPrometheus registers the ledger collectors and the Go runtime collectors
// on a new registry.
func NewPrometheus() Metrics {
	m := &prometheusMetrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Stake events applied, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block",
			Help:      "Highest block committed.",
		}),
		batchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_ms",
			Help:      "Replay batch duration in milliseconds.",
			Buckets:   batchBuckets,
		}),
		batchCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Replay batches committed.",
		}),
		batchSize: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_events_total",
			Help:      "Events carried by committed replay batches.",
		}),
	}
	m.registry.MustRegister(
		m.events,
		m.lastBlock,
		m.batchTime,
		m.batchCount,
		m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *prometheusMetrics) ObserveEvent(kind, outcome string) {
	m.events.WithLabelValues(kind, outcome).Inc()
}

func (m *prometheusMetrics) SetLastBlock(block uint64) {
	m.lastBlock.Set(float64(block))
}

func (m *prometheusMetrics) ObserveBatch(elapsed time.Duration, events int) {
	m.batchTime.Observe(float64(elapsed.Milliseconds()))
	m.batchCount.Inc()
	m.batchSize.Add(float64(events))
}

func (m *prometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
