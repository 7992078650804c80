// Package metrics registers the Prometheus collectors for pipeline runs and
// point predictions. The serve command exposes them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/roadrisk/internal/model"
)

var (
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadrisk_runs_total",
		Help: "Total number of pipeline runs by final status.",
	}, []string{"status"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadrisk_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 300},
	}, []string{"stage"})
	warningsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadrisk_warnings_total",
		Help: "Recoverable conditions reported by pipeline stages.",
	}, []string{"condition"})
	recordsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roadrisk_records_scored_total",
		Help: "Total number of records given a model score.",
	})
	modelAUC = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roadrisk_model_auc",
		Help: "Held-out AUC of the most recently trained model.",
	})
	predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadrisk_predictions_total",
		Help: "Point predictions served, by outcome.",
	}, []string{"outcome"})
	predictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadrisk_prediction_duration_seconds",
		Help:    "Latency of a single point prediction.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
	alertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadrisk_alerts_total",
		Help: "Run-health alerts raised by the monitoring checker, by type.",
	}, []string{"type"})
)

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun records the outcome of a finished run.
func ObserveRun(status model.RunStatus, result *model.RunResult) {
	runsFinished.WithLabelValues(string(status)).Inc()
	if result == nil {
		return
	}
	for _, w := range result.Warnings {
		warningsRaised.WithLabelValues(string(w.Condition)).Inc()
	}
	recordsScored.Add(float64(result.RowsScored))
	if m := result.Metrics; m != nil && m.AUCDefined {
		modelAUC.Set(m.AUC)
	}
}

// ObservePrediction records a point prediction and its latency.
func ObservePrediction(err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	predictions.WithLabelValues(outcome).Inc()
	predictionLatency.Observe(d.Seconds())
}

// ObserveAlert counts one raised alert of the given type.
func ObserveAlert(alertType string) {
	alertsRaised.WithLabelValues(alertType).Inc()
}
