package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deepdive"

// Metrics exposes Prometheus collectors for generation, quality control and
// storage fallbacks. All methods are safe on a nil receiver.
type Metrics struct {
	attempts         *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	storageFallbacks *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
}

// MustNew registers the collectors with reg and panics on a registration
// error. Tests pass a fresh prometheus.NewRegistry().
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "attempts_total",
			Help:      "Model generation attempts by flow and outcome.",
		}, []string{"flow", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "fallbacks_total",
			Help:      "Deterministic fallbacks served by flow and reason.",
		}, []string{"flow", "reason"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "rejections_total",
			Help:      "Candidates rejected by the quality checks.",
		}, []string{"reason"}),
		storageFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "fallbacks_total",
			Help:      "Operations served by the in-memory store after a primary failure.",
		}, []string{"op"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Latency of model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"provider", "status"}),
	}
	reg.MustRegister(m.attempts, m.fallbacks, m.rejections, m.storageFallbacks, m.llmLatency)
	return m
}

func (m *Metrics) Attempt(flow, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) Fallback(flow, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(flow, reason).Inc()
}

func (m *Metrics) Rejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) StorageFallback(op string) {
	if m == nil {
		return
	}
	m.storageFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveLLM(provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider, status).Observe(d.Seconds())
}
