package pipeline

import (
	"github.com/sells-group/roadrisk/internal/features"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/scorer"
	"github.com/sells-group/roadrisk/internal/trainer"
)

// RunContext carries a run's data from stage to stage. Each stage reads
// what earlier stages set and only adds to it.
type RunContext struct {
	RunID string
	Year  int

	Records      []*model.Record
	Capabilities model.Capabilities
	Summary      *model.Summary

	// Vocabulary holds the categorical codes used by this run.
	Vocabulary *features.Vocabulary
	// Manifest is fixed once enrichment has run and never changes after.
	Manifest model.Manifest

	Model      *trainer.TrainedModel
	ModelState model.ModelState
	Metrics    *model.Metrics

	Scored   int
	TopK     []*model.Record
	Segments []scorer.Segment

	Warnings []model.Warning
	Phases   []model.PhaseResult
}

// Predictor returns the trained model, or nil when none is available.
func (rc *RunContext) Predictor() scorer.Predictor {
	if rc.Model == nil {
		return nil
	}
	return rc.Model
}

// applyScore records a batch scoring pass. A failed pass drops the model so
// later stages and the run result treat the run as having none.
func (rc *RunContext) applyScore(res scorer.Result) {
	rc.Scored = res.Scored
	rc.warn(res.Warnings...)
	if res.Failed {
		rc.Model = nil
		rc.ModelState = model.ModelStateFailed
	}
}

func (rc *RunContext) warn(ws ...model.Warning) {
	rc.Warnings = append(rc.Warnings, ws...)
}

// Result converts the context into the run result kept in run history.
func (rc *RunContext) Result(outputPath string) *model.RunResult {
	res := &model.RunResult{
		RowsLoaded:   len(rc.Records),
		RowsScored:   rc.Scored,
		Features:     rc.Manifest.Features(),
		Capabilities: rc.Capabilities,
		ModelState:   rc.ModelState,
		Metrics:      rc.Metrics,
		OutputPath:   outputPath,
		Warnings:     rc.Warnings,
		Summary:      rc.Summary,
		Phases:       rc.Phases,
	}
	if res.ModelState == "" {
		res.ModelState = model.ModelStateUnavailable
	}
	return res
}
