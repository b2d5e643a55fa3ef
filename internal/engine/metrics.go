package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/tally/internal/hint"
	"github.com/roach88/tally/internal/queryir"
	"github.com/roach88/tally/internal/reconcile"
)

const metricsNamespace = "tally"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Resolutions  *prometheus.CounterVec
	Conflicts    *prometheus.CounterVec
	HintFailures *prometheus.CounterVec
	HintDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests that don't scrape want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "resolutions_total",
			Help:      "Resolved questions by shape",
		}, []string{"shape"}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conflicts_total",
			Help:      "Trusted values that overrode a differing suggestion, by kind",
		}, []string{"kind"}),
		HintFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "hint_failures_total",
			Help:      "Hint calls that produced no annotation, by reason",
		}, []string{"reason"}),
		HintDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "hint_duration_seconds",
			Help:      "Wall time of hint calls including retries",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
	}
}

func (m *Metrics) observeHint(out hint.Outcome) {
	if out.Abandoned {
		return
	}
	m.HintDuration.Observe(out.Duration.Seconds())
	if out.Failure != nil {
		m.HintFailures.WithLabelValues(string(out.Failure.Reason)).Inc()
	}
}

func (m *Metrics) observeRequest(req reconcile.Request, s queryir.Shape) {
	m.Resolutions.WithLabelValues(string(s)).Inc()
	for _, c := range req.Conflicts {
		m.Conflicts.WithLabelValues(c.Kind).Inc()
	}
}
