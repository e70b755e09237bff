package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StateSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challengetracker_state_saves_total",
		Help: "Snapshot saves to the entity store by result",
	}, []string{"result"})

	StateSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "challengetracker_state_save_duration_seconds",
		Help:    "Duration of full snapshot saves",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	StateLoadFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "challengetracker_state_load_fallbacks_total",
		Help: "Loads that fell back to the default snapshot because the store failed",
	})

	SkippedProgressKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "challengetracker_skipped_progress_keys_total",
		Help: "Progress entries skipped because their key could not be split",
	})

	ChallengeToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "challengetracker_challenge_toggles_total",
		Help: "Challenge completion toggles from the dashboard",
	})

	HistoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challengetracker_history_writes_total",
		Help: "History ledger writes by operation",
	}, []string{"op"})

	PublicPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challengetracker_public_polls_total",
		Help: "Public display snapshot polls by result",
	}, []string{"result"})

	PendingAutosave = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "challengetracker_autosave_pending",
		Help: "1 while a debounced save is scheduled and has not fired",
	})
)

// Result maps an error to the result label used by the counters above
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
