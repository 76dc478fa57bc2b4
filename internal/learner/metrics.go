package learner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes analysis counters for the status server. A nil
// *Metrics is valid and records nothing, so CLI one-shots skip the
// registry entirely.
type Metrics struct {
	runs             prometheus.Counter
	skipped          prometheus.Counter
	observations     prometheus.Counter
	patternsDetected prometheus.Counter
	instinctsCreated prometheus.Counter
	instinctsUpdated prometheus.Counter
	runDuration      prometheus.Histogram
}

// NewMetrics registers the analysis metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_analysis_runs_total",
			Help: "Completed analysis runs.",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_analysis_skipped_total",
			Help: "Analysis runs skipped by the auto-learn gate.",
		}),
		observations: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_observations_analyzed_total",
			Help: "Observations read across all analysis runs.",
		}),
		patternsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_patterns_detected_total",
			Help: "Patterns reported by the detectors.",
		}),
		instinctsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_instincts_created_total",
			Help: "New instincts created from detected patterns.",
		}),
		instinctsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "instinctd_instincts_updated_total",
			Help: "Existing instincts confirmed with new evidence.",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "instinctd_analysis_duration_seconds",
			Help:    "Analysis run duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeRun(r *Report, elapsed time.Duration) {
	if m == nil {
		return
	}
	if r.SkippedReason != "" {
		m.skipped.Inc()
		return
	}
	m.runs.Inc()
	m.observations.Add(float64(r.ObservationsAnalyzed))
	m.patternsDetected.Add(float64(r.PatternsDetected))
	m.instinctsCreated.Add(float64(r.InstinctsCreated))
	m.instinctsUpdated.Add(float64(r.InstinctsUpdated))
	m.runDuration.Observe(elapsed.Seconds())
}
