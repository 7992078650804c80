// Package scorer applies a trained model to accident records, answers point
// queries, and ranks the riskiest records and road segments.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
)

// Predictor is a fitted classifier bound to its feature manifest.
// *trainer.TrainedModel satisfies it.
type Predictor interface {
	Manifest() model.Manifest
	PredictProba(features []float64) (float64, error)
}

// Result summarizes a batch scoring pass.
type Result struct {
	Scored    int  // records that received a model probability
	Defaulted int  // records left at the default score of 0
	Failed    bool // a prediction failed and every record was reset to 0
	Warnings  []model.Warning
}

// cancelCheckEvery is how many records are scored between context checks.
const cancelCheckEvery = 1024

// Score sets RiskScore on every record. Records with a complete manifest
// vector get the model probability; the rest get exactly 0. A nil predictor
// scores everything 0. A prediction failure is reported as a model_failure
// warning and resets every record to 0, so a batch never mixes model and
// default scores.
func Score(ctx context.Context, records []*model.Record, p Predictor) (Result, error) {
	var res Result
	if p == nil {
		resetScores(records)
		res.Defaulted = len(records)
		return res, nil
	}

	manifest := p.Manifest()
	for i, r := range records {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return res, eris.Wrap(err, "scorer: score cancelled")
			}
		}

		r.RiskScore = 0
		vec, ok := manifest.Vector(r)
		if !ok {
			res.Defaulted++
			continue
		}
		prob, err := p.PredictProba(vec)
		if err != nil {
			resetScores(records)
			res.Scored = 0
			res.Defaulted = len(records)
			res.Failed = true
			res.Warnings = append(res.Warnings, model.Warning{
				Stage:     "score",
				Condition: model.ConditionModelFailure,
				Subject:   fmt.Sprintf("row %d", r.Row),
				Message:   err.Error(),
			})
			zap.L().Warn("scorer: prediction failed, all records default to 0",
				zap.String("component", "scorer"),
				zap.Int("row", r.Row),
				zap.Error(err),
			)
			return res, nil
		}
		r.RiskScore = prob
		res.Scored++
	}

	zap.L().Info("scorer: batch scored",
		zap.String("component", "scorer"),
		zap.Int("scored", res.Scored),
		zap.Int("defaulted", res.Defaulted),
	)
	return res, nil
}

func resetScores(records []*model.Record) {
	for _, r := range records {
		r.RiskScore = 0
	}
}

// ErrModelUnavailable is returned by ScoreOne when the run produced no model.
var ErrModelUnavailable = errors.New("scorer: model unavailable")

// MissingFeaturesError lists required features a point query left out.
type MissingFeaturesError struct {
	Names []string
}

func (e *MissingFeaturesError) Error() string {
	return "scorer: query missing required features: " + strings.Join(e.Names, ", ")
}

// Query maps feature names to values for a single prediction.
type Query map[string]float64

// Prediction is the answer to a point query.
type Prediction struct {
	Probability float64  `json:"probability"`
	Percentage  string   `json:"percentage"`
	Band        RiskBand `json:"band"`
	Filled      []string `json:"filled,omitempty"` // optional features defaulted to 0
}

// ScoreOne builds a vector in manifest order from q and predicts it.
// Optional features absent from q (categorical codes, enrichment, distance)
// are filled with 0. Any other missing feature is an error.
func ScoreOne(p Predictor, q Query) (*Prediction, error) {
	if p == nil {
		return nil, ErrModelUnavailable
	}

	features := p.Manifest().Features()
	vec := make([]float64, len(features))
	var missing, filled []string
	for i, name := range features {
		v, ok := q[name]
		switch {
		case ok:
			vec[i] = v
		case model.IsOptionalFeature(name):
			filled = append(filled, name)
		default:
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFeaturesError{Names: missing}
	}
	sort.Strings(filled)

	prob, err := p.PredictProba(vec)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: predict query")
	}
	return &Prediction{
		Probability: prob,
		Percentage:  FormatPercent(prob),
		Band:        Band(prob),
		Filled:      filled,
	}, nil
}

// FormatPercent renders a probability as a percentage with one decimal,
// e.g. 0.375 -> "37.5%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}
