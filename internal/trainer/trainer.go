// Package trainer fits and evaluates the injury-risk classifier over the
// run's feature manifest.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/roadrisk/internal/gbt"
	"github.com/sells-group/roadrisk/internal/model"
)

// ErrInsufficientData means a split partition did not exceed the minimum
// sample count. No model is produced; the run continues without scores.
var ErrInsufficientData = errors.New("trainer: insufficient data")

// ModelError wraps any failure, including a panic, raised while fitting or
// predicting.
type ModelError struct {
	Op  string
	Err error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("trainer: model %s failed: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Config configures Train.
type Config struct {
	MinSamples   int
	TestFraction float64
	Seed         uint64
	Params       gbt.Params
}

// DefaultConfig returns a 70/30 split seeded with 42 and more than 10 rows
// required on each side.
func DefaultConfig() Config {
	return Config{
		MinSamples:   10,
		TestFraction: 0.3,
		Seed:         42,
		Params:       gbt.DefaultParams(),
	}
}

// TrainedModel pairs a fitted classifier with the manifest it was trained
// on. It is immutable and safe for concurrent scoring.
type TrainedModel struct {
	manifest model.Manifest
	clf      *gbt.Model
}

// Manifest returns the feature list the model expects, in order.
func (m *TrainedModel) Manifest() model.Manifest { return m.manifest }

// PredictProba returns the injury probability for a vector in manifest
// order. Failures surface as *ModelError.
func (m *TrainedModel) PredictProba(features []float64) (p float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModelError{Op: "predict", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	p, err = m.clf.PredictProba(features)
	if err != nil {
		return 0, &ModelError{Op: "predict", Err: err}
	}
	return p, nil
}

// Result is a trained model with its held-out evaluation.
type Result struct {
	Model   *TrainedModel
	Metrics model.Metrics
}

type dataset struct {
	X [][]float64
	y []int
}

// Train excludes rows with any null or non-finite manifest feature, splits
// the rest with a seeded shuffle, fits on the training side and evaluates on
// the test side only. It returns ErrInsufficientData (wrapped) when the
// manifest is empty or either side holds MinSamples rows or fewer, and
// *ModelError when fitting fails.
func Train(ctx context.Context, records []*model.Record, manifest model.Manifest, cfg Config) (*Result, error) {
	log := zap.L().With(zap.String("component", "trainer"))
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "trainer: cancelled")
	}
	if manifest.Len() == 0 {
		log.Warn("training skipped, no feature columns available")
		return nil, eris.Wrap(ErrInsufficientData, "trainer: empty feature manifest")
	}

	var all dataset
	for _, r := range records {
		vec, ok := manifest.Vector(r)
		if !ok {
			continue
		}
		all.X = append(all.X, vec)
		all.y = append(all.y, r.HighRiskLabel)
	}

	train, test := split(all, cfg.TestFraction, cfg.Seed)
	if len(train.y) <= cfg.MinSamples || len(test.y) <= cfg.MinSamples {
		log.Warn("training skipped",
			zap.Int("complete_rows", len(all.y)),
			zap.Int("train_rows", len(train.y)),
			zap.Int("test_rows", len(test.y)),
			zap.Int("min_samples", cfg.MinSamples),
		)
		return nil, eris.Wrapf(ErrInsufficientData,
			"trainer: %d train / %d test rows, need more than %d each",
			len(train.y), len(test.y), cfg.MinSamples)
	}

	start := time.Now()
	clf, err := fit(train, cfg.Params)
	if err != nil {
		return nil, err
	}
	tm := &TrainedModel{manifest: manifest, clf: clf}

	metrics, err := evaluate(tm, test)
	if err != nil {
		return nil, err
	}
	metrics.TrainRows = len(train.y)
	metrics.TestRows = len(test.y)
	metrics.PositiveRate = positiveRate(train.y)
	metrics.Importance = make(map[string]float64, manifest.Len())
	for i, share := range clf.Importance() {
		metrics.Importance[manifest.Features()[i]] = share
	}

	log.Info("model trained",
		zap.Int("train_rows", metrics.TrainRows),
		zap.Int("test_rows", metrics.TestRows),
		zap.Float64("auc", metrics.AUC),
		zap.Bool("auc_defined", metrics.AUCDefined),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Model: tm, Metrics: metrics}, nil
}

// split shuffles row indices with a PCG source seeded from seed and puts the
// first ceil(frac*n) rows in the test partition.
func split(d dataset, frac float64, seed uint64) (train, test dataset) {
	n := len(d.y)
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	nTest := int(math.Ceil(frac * float64(n)))
	if nTest > n {
		nTest = n
	}
	for k, i := range perm {
		if k < nTest {
			test.X = append(test.X, d.X[i])
			test.y = append(test.y, d.y[i])
		} else {
			train.X = append(train.X, d.X[i])
			train.y = append(train.y, d.y[i])
		}
	}
	return train, test
}

func fit(d dataset, p gbt.Params) (clf *gbt.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModelError{Op: "fit", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	clf, err = gbt.Fit(d.X, d.y, p)
	if err != nil {
		return nil, &ModelError{Op: "fit", Err: err}
	}
	return clf, nil
}

// evaluate computes accuracy at the 0.5 threshold and ROC AUC. AUC is left
// undefined when the test partition holds a single class.
func evaluate(m *TrainedModel, test dataset) (model.Metrics, error) {
	scores := make([]float64, len(test.y))
	classes := make([]bool, len(test.y))
	var correct, positives int
	for i, x := range test.X {
		p, err := m.PredictProba(x)
		if err != nil {
			return model.Metrics{}, err
		}
		scores[i] = p
		classes[i] = test.y[i] == 1
		if classes[i] {
			positives++
		}
		if (p >= 0.5) == classes[i] {
			correct++
		}
	}

	metrics := model.Metrics{Accuracy: float64(correct) / float64(len(test.y))}
	if positives == 0 || positives == len(test.y) {
		return metrics, nil
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	metrics.AUC = integrate.Trapezoidal(fpr, tpr)
	metrics.AUCDefined = true
	return metrics, nil
}

func positiveRate(y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	var pos int
	for _, v := range y {
		pos += v
	}
	return float64(pos) / float64(len(y))
}

// NewTrainedModel pairs an already fitted classifier with its manifest.
func NewTrainedModel(manifest model.Manifest, clf *gbt.Model) (*TrainedModel, error) {
	if clf.NumFeatures() != manifest.Len() {
		return nil, eris.Errorf("trainer: classifier expects %d features, manifest has %d", clf.NumFeatures(), manifest.Len())
	}
	return &TrainedModel{manifest: manifest, clf: clf}, nil
}
