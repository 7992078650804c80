package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roadrisk/internal/model"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(runsFinished.WithLabelValues("complete"))
	scoredBefore := testutil.ToFloat64(recordsScored)
	warnBefore := testutil.ToFloat64(warningsRaised.WithLabelValues("source_unavailable"))

	ObserveRun(model.RunStatusComplete, &model.RunResult{
		RowsScored: 40,
		Warnings: []model.Warning{
			{Stage: "ingest", Condition: model.ConditionSourceUnavailable},
		},
		Metrics: &model.Metrics{AUC: 0.71, AUCDefined: true},
	})

	assert.InDelta(t, before+1, testutil.ToFloat64(runsFinished.WithLabelValues("complete")), 1e-9)
	assert.InDelta(t, scoredBefore+40, testutil.ToFloat64(recordsScored), 1e-9)
	assert.InDelta(t, warnBefore+1, testutil.ToFloat64(warningsRaised.WithLabelValues("source_unavailable")), 1e-9)
	assert.InDelta(t, 0.71, testutil.ToFloat64(modelAUC), 1e-9)
}

func TestObserveRun_NilResult(t *testing.T) {
	before := testutil.ToFloat64(runsFinished.WithLabelValues("failed"))
	ObserveRun(model.RunStatusFailed, nil)
	assert.InDelta(t, before+1, testutil.ToFloat64(runsFinished.WithLabelValues("failed")), 1e-9)
}

func TestObservePrediction(t *testing.T) {
	okBefore := testutil.ToFloat64(predictions.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(predictions.WithLabelValues("error"))

	ObservePrediction(nil, time.Millisecond)
	ObservePrediction(errors.New("bad query"), time.Millisecond)

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(predictions.WithLabelValues("ok")), 1e-9)
	assert.InDelta(t, errBefore+1, testutil.ToFloat64(predictions.WithLabelValues("error")), 1e-9)
}

func TestObserveStage(t *testing.T) {
	ObserveStage("ingest", 2*time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(stageDuration))
}

func TestObserveAlert(t *testing.T) {
	before := testutil.ToFloat64(alertsRaised.WithLabelValues("low_auc"))
	ObserveAlert("low_auc")
	ObserveAlert("low_auc")
	assert.InDelta(t, before+2, testutil.ToFloat64(alertsRaised.WithLabelValues("low_auc")), 1e-9)
}
