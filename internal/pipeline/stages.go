package pipeline

import (
	"context"
	"errors"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/config"
	"github.com/sells-group/roadrisk/internal/enrich"
	"github.com/sells-group/roadrisk/internal/export"
	"github.com/sells-group/roadrisk/internal/features"
	"github.com/sells-group/roadrisk/internal/gbt"
	"github.com/sells-group/roadrisk/internal/ingest"
	"github.com/sells-group/roadrisk/internal/label"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/scorer"
	"github.com/sells-group/roadrisk/internal/trainer"
)

func (p *Pipeline) ingest(ctx context.Context, rc *RunContext) (*model.PhaseResult, error) {
	src := p.cfg.Sources
	sources := ingest.SourcesForYear(src.Dir, src.Templates, rc.Year)
	res, err := ingest.Load(ctx, sources, ingest.Options{
		Delimiter:    firstRune(src.Delimiter, ';'),
		Encoding:     src.Encoding,
		Concurrency:  src.Concurrency,
		RegionColumn: p.cfg.Enrich.RegionColumn,
	})
	if res != nil {
		rc.warn(res.Warnings...)
	}
	if err != nil {
		return nil, err
	}

	rc.Records = res.Records
	rc.Capabilities = res.Capabilities
	return &model.PhaseResult{
		Metadata: map[string]any{
			"rows":           len(res.Records),
			"sources":        len(sources),
			"sources_loaded": res.SourcesLoaded,
			"geo":            res.Capabilities.Geo,
			"summary":        res.Describe(),
		},
	}, nil
}

func (p *Pipeline) engineer(_ context.Context, rc *RunContext) (*model.PhaseResult, error) {
	opts, err := p.featureOptions()
	if err != nil {
		return nil, err
	}

	res := features.Engineer(rc.Records, rc.Capabilities, opts)
	rc.Vocabulary = res.Vocabulary
	rc.Summary = features.Summarize(rc.Records, p.cfg.Features.TopCauses)

	return &model.PhaseResult{
		Metadata: map[string]any{
			"frozen_vocabulary": opts.Vocabulary != nil,
			"weather_values":    len(res.Vocabulary.Weather),
			"road_type_values":  len(res.Vocabulary.RoadType),
			"unencoded":         res.Unencoded,
			"geo_rows":          res.GeoRows,
		},
	}, nil
}

// featureOptions reads the frozen vocabulary when the configured file
// exists. A configured path that does not exist yet is written by persist.
func (p *Pipeline) featureOptions() (features.Options, error) {
	fc := p.cfg.Features
	opts := p.manifestOptions()
	if fc.VocabularyPath == "" {
		return opts, nil
	}
	if _, err := os.Stat(fc.VocabularyPath); errors.Is(err, os.ErrNotExist) {
		return opts, nil
	}
	vocab, err := features.LoadVocabulary(fc.VocabularyPath)
	if err != nil {
		return opts, err
	}
	opts.Vocabulary = vocab
	return opts, nil
}

func (p *Pipeline) manifestOptions() features.Options {
	fc := p.cfg.Features
	return features.Options{
		CellLevel:      fc.CellLevel,
		CenterLat:      fc.CenterLat,
		CenterLon:      fc.CenterLon,
		UseCoordinates: fc.UseCoordinates,
		UseEnrichment:  fc.UseEnrichment,
	}
}

// enrich joins the region aggregates, then fixes the feature manifest from
// the final capabilities.
func (p *Pipeline) enrich(ctx context.Context, rc *RunContext) (*model.PhaseResult, error) {
	pr := &model.PhaseResult{Metadata: map[string]any{}}
	defer func() {
		rc.Manifest = features.BuildManifest(rc.Capabilities, p.manifestOptions())
		pr.Metadata["features"] = rc.Manifest.Features()
	}()

	path := p.cfg.Enrich.Path
	if path == "" {
		pr.Status = model.PhaseStatusSkipped
		return pr, nil
	}

	aggs, err := enrich.LoadAggregates(ctx, path, p.fetcher)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "pipeline: enrich cancelled")
		}
		cond := model.ConditionParseFailure
		if errors.Is(err, enrich.ErrAggregateUnavailable) {
			cond = model.ConditionSourceUnavailable
		}
		rc.warn(model.Warning{
			Stage:     "enrich",
			Condition: cond,
			Subject:   path,
			Message:   err.Error(),
		})
		pr.Status = model.PhaseStatusSkipped
		return pr, nil
	}

	joined := enrich.Join(rc.Records, aggs)
	if joined.Matched > 0 {
		rc.Capabilities.Enrichment = true
	}
	if joined.Unmatched > 0 {
		zap.L().Debug("pipeline: records without region aggregate",
			zap.String("component", "pipeline"),
			zap.Int("unmatched", joined.Unmatched),
			zap.Int("records", len(rc.Records)),
		)
	}

	pr.Metadata["aggregates"] = len(aggs)
	pr.Metadata["matched"] = joined.Matched
	pr.Metadata["unmatched"] = joined.Unmatched
	pr.Metadata["duplicates"] = joined.Duplicates
	return pr, nil
}

func (p *Pipeline) label(_ context.Context, rc *RunContext) (*model.PhaseResult, error) {
	counts := label.Apply(rc.Records, p.cfg.Label.InjurySubstring)
	return &model.PhaseResult{
		Metadata: map[string]any{
			"positive":      counts.Positive,
			"negative":      counts.Negative,
			"unclassified":  counts.Unclassified,
			"positive_rate": counts.PositiveRate(),
		},
	}, nil
}

// train fits the model. Too little data or a failing fit leaves the run
// without a model; every record then scores 0.
func (p *Pipeline) train(ctx context.Context, rc *RunContext) (*model.PhaseResult, error) {
	res, err := trainer.Train(ctx, rc.Records, rc.Manifest, trainerConfig(p.cfg.Model))
	if err != nil {
		var modelErr *trainer.ModelError
		switch {
		case errors.Is(err, trainer.ErrInsufficientData):
			rc.ModelState = model.ModelStateInsufficient
			rc.warn(model.Warning{
				Stage:     "train",
				Condition: model.ConditionInsufficientData,
				Message:   err.Error(),
			})
		case errors.As(err, &modelErr):
			rc.ModelState = model.ModelStateFailed
			rc.warn(model.Warning{
				Stage:     "train",
				Condition: model.ConditionModelFailure,
				Subject:   modelErr.Op,
				Message:   err.Error(),
			})
		default:
			return nil, err
		}
		return &model.PhaseResult{
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"model_state": string(rc.ModelState)},
		}, nil
	}

	rc.Model = res.Model
	rc.ModelState = model.ModelStateTrained
	metricsCopy := res.Metrics
	rc.Metrics = &metricsCopy

	return &model.PhaseResult{
		Metadata: map[string]any{
			"model_state": string(rc.ModelState),
			"train_rows":  res.Metrics.TrainRows,
			"test_rows":   res.Metrics.TestRows,
			"auc":         res.Metrics.AUC,
			"auc_defined": res.Metrics.AUCDefined,
			"accuracy":    res.Metrics.Accuracy,
		},
	}, nil
}

func (p *Pipeline) score(ctx context.Context, rc *RunContext) (*model.PhaseResult, error) {
	res, err := scorer.Score(ctx, rc.Records, rc.Predictor())
	if err != nil {
		return nil, err
	}
	rc.applyScore(res)

	pr := &model.PhaseResult{
		Metadata: map[string]any{
			"scored":      res.Scored,
			"defaulted":   res.Defaulted,
			"model_state": string(rc.ModelState),
		},
	}
	if rc.Model == nil {
		pr.Status = model.PhaseStatusSkipped
	}
	return pr, nil
}

// rank selects the top-K records and segments and keeps the ranking in run
// history. No risky record is not an error; the ranking is just empty.
func (p *Pipeline) rank(ctx context.Context, rc *RunContext) (*model.PhaseResult, error) {
	k := p.cfg.Output.TopK
	top, err := scorer.TopK(rc.Records, k)
	if errors.Is(err, scorer.ErrNoRiskyRecords) {
		zap.L().Info("pipeline: no records to rank", zap.String("run_id", rc.RunID))
		return &model.PhaseResult{
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"ranked": 0},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	rc.TopK = top

	segments, err := scorer.TopSegments(rc.Records, p.cfg.Output.SegmentKM, k)
	if err != nil && !errors.Is(err, scorer.ErrNoRiskyRecords) {
		return nil, err
	}
	rc.Segments = segments

	if err := p.store.SaveHotspots(ctx, rc.RunID, model.HotspotsFromRecords(top)); err != nil {
		return nil, eris.Wrap(err, "pipeline: save hotspots")
	}

	meta := map[string]any{
		"ranked":    len(top),
		"segments":  len(segments),
		"top_score": top[0].RiskScore,
	}
	if len(segments) > 0 {
		meta["top_segment"] = segments[0].Key()
	}
	return &model.PhaseResult{Metadata: meta}, nil
}

func (p *Pipeline) persist(_ context.Context, rc *RunContext) (*model.PhaseResult, error) {
	out := p.cfg.Output
	if err := export.WriteScored(out.Path, firstRune(out.Delimiter, '\t'), rc.Records); err != nil {
		return nil, err
	}
	meta := map[string]any{"path": out.Path, "rows": len(rc.Records)}

	if out.HotspotsPath != "" {
		if err := export.WriteHotspots(out.HotspotsPath, rc.TopK); err != nil {
			return nil, err
		}
		meta["hotspots_path"] = out.HotspotsPath
	}

	if path := p.cfg.Features.VocabularyPath; path != "" && rc.Vocabulary != nil {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := rc.Vocabulary.Save(path); err != nil {
				return nil, err
			}
			meta["vocabulary_path"] = path
		}
	}
	return &model.PhaseResult{Metadata: meta}, nil
}

func trainerConfig(mc config.ModelConfig) trainer.Config {
	params := gbt.DefaultParams()
	params.NumTrees = mc.NumTrees
	params.MaxDepth = mc.MaxDepth
	params.LearningRate = mc.LearningRate
	if mc.MinChildWeight > 0 {
		params.MinChildWeight = mc.MinChildWeight
	}
	if mc.Lambda > 0 {
		params.Lambda = mc.Lambda
	}
	return trainer.Config{
		MinSamples:   mc.MinSamples,
		TestFraction: mc.TestFraction,
		Seed:         mc.Seed,
		Params:       params,
	}
}

func firstRune(s string, def rune) rune {
	if s == "" {
		return def
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
