package remedy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/a11yfix/violation"
)

// Metrics holds the Prometheus collectors of the engine. All metrics are
// prefixed with "a11yfix_". A nil *Metrics records nothing.
//
//   - a11yfix_runs_total{status}
//   - a11yfix_fix_attempts_total{strategy,outcome}
//   - a11yfix_provider_calls_total{kind,outcome}
//   - a11yfix_provider_call_duration_seconds{kind}
//   - a11yfix_description_lookups_total{outcome}
//   - a11yfix_removed_nodes_total
type Metrics struct {
	Runs             *prometheus.CounterVec
	FixAttempts      *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	Descriptions     *prometheus.CounterVec
	RemovedNodes     prometheus.Counter
}

// NewMetrics registers the collectors on reg. Registering twice on the
// same registerer panics, so build one Metrics per registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "a11yfix_runs_total",
			Help: "Remediation runs by final status.",
		}, []string{"status"}),
		FixAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "a11yfix_fix_attempts_total",
			Help: "Fix attempts by strategy and outcome (accepted, rejected).",
		}, []string{"strategy", "outcome"}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "a11yfix_provider_calls_total",
			Help: "Correction provider calls by request kind and outcome (ok, error).",
		}, []string{"kind", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a11yfix_provider_call_duration_seconds",
			Help:    "Duration of correction provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
		}, []string{"kind"}),
		Descriptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "a11yfix_description_lookups_total",
			Help: "Image description resolutions by outcome (hit, miss, generated, skipped, error).",
		}, []string{"outcome"}),
		RemovedNodes: f.NewCounter(prometheus.CounterOpts{
			Name: "a11yfix_removed_nodes_total",
			Help: "Invisible nodes removed before fixing.",
		}),
	}
}

func (m *Metrics) run(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}

func (m *Metrics) records(recs []violation.FixRecord) {
	if m == nil {
		return
	}
	for _, r := range recs {
		outcome := "rejected"
		if r.Accepted {
			outcome = "accepted"
			if r.Strategy == violation.StrategyRemoved {
				m.RemovedNodes.Inc()
			}
		}
		m.FixAttempts.WithLabelValues(string(r.Strategy), outcome).Inc()
	}
}

func (m *Metrics) providerCall(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if kind == "" {
		kind = "unknown"
	}
	m.ProviderCalls.WithLabelValues(kind, outcome).Inc()
	m.ProviderDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) description(outcome string) {
	if m == nil {
		return
	}
	m.Descriptions.WithLabelValues(outcome).Inc()
}
