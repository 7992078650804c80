package trainer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/gbt"
	"github.com/sells-group/roadrisk/internal/model"
)

func intp(v int) *int { return &v }

var testManifest = model.NewManifest(model.FeatureKM, model.FeatureHour, model.FeatureWeekday)

// syntheticRecords labels night-time accidents (hour >= 18) as injuries.
func syntheticRecords(n int) []*model.Record {
	records := make([]*model.Record, n)
	for i := range n {
		h := i % 24
		r := &model.Record{
			Row:     i,
			KM:      float64(i % 50),
			Hour:    intp(h),
			Weekday: intp(i % 7),
		}
		if h >= 18 {
			r.HighRiskLabel = 1
		}
		records[i] = r
	}
	return records
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.NumTrees = 30
	cfg.Params.MaxDepth = 3
	return cfg
}

func TestTrain_FiveRowsInsufficient(t *testing.T) {
	res, err := Train(context.Background(), syntheticRecords(5), testManifest, testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Nil(t, res)
}

func TestTrain_BoundaryNeedsMoreThanMinOnEachSide(t *testing.T) {
	// 30 rows split 21/9: the test side is below the minimum.
	_, err := Train(context.Background(), syntheticRecords(30), testManifest, testConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)

	// 40 rows split 28/12 clears it.
	_, err = Train(context.Background(), syntheticRecords(40), testManifest, testConfig())
	assert.NoError(t, err)
}

func TestTrain_Metrics(t *testing.T) {
	res, err := Train(context.Background(), syntheticRecords(240), testManifest, testConfig())
	require.NoError(t, err)
	require.NotNil(t, res.Model)

	m := res.Metrics
	assert.Equal(t, 168, m.TrainRows)
	assert.Equal(t, 72, m.TestRows)
	assert.True(t, m.AUCDefined)
	assert.Greater(t, m.AUC, 0.9)
	assert.Greater(t, m.Accuracy, 0.9)
	assert.Greater(t, m.PositiveRate, 0.1)

	require.Len(t, m.Importance, 3)
	var total float64
	for _, share := range m.Importance {
		total += share
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, m.Importance[model.FeatureHour], 0.5)
	assert.Equal(t, testManifest.Features(), res.Model.Manifest().Features())
}

func TestTrain_Reproducible(t *testing.T) {
	a, err := Train(context.Background(), syntheticRecords(150), testManifest, testConfig())
	require.NoError(t, err)
	b, err := Train(context.Background(), syntheticRecords(150), testManifest, testConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Metrics, b.Metrics)

	x := []float64{12, 20, 3}
	pa, err := a.Model.PredictProba(x)
	require.NoError(t, err)
	pb, err := b.Model.PredictProba(x)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrain_ExcludesIncompleteRows(t *testing.T) {
	records := syntheticRecords(60)
	for i := range 100 {
		records = append(records, &model.Record{Row: 60 + i, KM: 1, Hour: nil, Weekday: intp(1)})
	}
	res, err := Train(context.Background(), records, testManifest, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 60, res.Metrics.TrainRows+res.Metrics.TestRows)
}

func TestTrain_SkipsNonFiniteRows(t *testing.T) {
	records := syntheticRecords(200)
	records[7].KM = math.NaN()
	records[11].KM = math.Inf(1)

	res, err := Train(context.Background(), records, testManifest, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 198, res.Metrics.TrainRows+res.Metrics.TestRows)
	assert.True(t, res.Metrics.AUCDefined)
}

func TestTrain_SingleClassAUCUndefined(t *testing.T) {
	records := syntheticRecords(60)
	for _, r := range records {
		r.HighRiskLabel = 0
	}
	res, err := Train(context.Background(), records, testManifest, testConfig())
	require.NoError(t, err)
	assert.False(t, res.Metrics.AUCDefined)
	assert.Zero(t, res.Metrics.AUC)
	assert.InDelta(t, 1.0, res.Metrics.Accuracy, 1e-9)
}

func TestTrain_EmptyManifestInsufficient(t *testing.T) {
	res, err := Train(context.Background(), syntheticRecords(60), model.NewManifest(), testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "empty feature manifest")
	assert.Nil(t, res)
}

func TestTrain_FitFailureIsModelError(t *testing.T) {
	cfg := testConfig()
	cfg.Params.NumTrees = 0
	_, err := Train(context.Background(), syntheticRecords(60), testManifest, cfg)
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Contains(t, err.Error(), "num trees")
}

func TestTrain_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, syntheticRecords(60), testManifest, testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictProba_WrongWidth(t *testing.T) {
	res, err := Train(context.Background(), syntheticRecords(60), testManifest, testConfig())
	require.NoError(t, err)

	_, err = res.Model.PredictProba([]float64{1, 2})
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "predict", me.Op)
}

func TestSplit(t *testing.T) {
	var d dataset
	for i := range 10 {
		d.X = append(d.X, []float64{float64(i)})
		d.y = append(d.y, i%2)
	}
	train, test := split(d, 0.3, 42)
	assert.Len(t, test.y, 3)
	assert.Len(t, train.y, 7)

	seen := map[float64]bool{}
	for _, x := range append(train.X, test.X...) {
		seen[x[0]] = true
	}
	assert.Len(t, seen, 10)

	again, _ := split(d, 0.3, 42)
	assert.Equal(t, train.X, again.X)
}

func TestNewTrainedModel(t *testing.T) {
	var X [][]float64
	var y []int
	for i := range 40 {
		X = append(X, []float64{float64(i)})
		y = append(y, i/20)
	}
	clf, err := gbt.Fit(X, y, gbt.DefaultParams())
	require.NoError(t, err)

	_, err = NewTrainedModel(testManifest, clf)
	require.Error(t, err)

	m, err := NewTrainedModel(model.NewManifest(model.FeatureKM), clf)
	require.NoError(t, err)
	p, err := m.PredictProba([]float64{35})
	require.NoError(t, err)
	assert.Greater(t, p, 0.5)
}

func TestModelError(t *testing.T) {
	inner := errors.New("boom")
	err := &ModelError{Op: "fit", Err: inner}
	assert.Equal(t, "trainer: model fit failed: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
