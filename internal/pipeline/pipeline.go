// Package pipeline runs the accident risk stages in order and records each
// run and stage in run history.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/config"
	"github.com/sells-group/roadrisk/internal/fetcher"
	"github.com/sells-group/roadrisk/internal/metrics"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/store"
)

// Stage names, in run order.
const (
	StageIngest   = "1_ingest"
	StageFeatures = "2_features"
	StageEnrich   = "3_enrich"
	StageLabel    = "4_label"
	StageTrain    = "5_train"
	StageScore    = "6_score"
	StageRank     = "7_rank"
	StagePersist  = "8_persist"
)

// stage is one step of a run. A returned error stops the run; recoverable
// conditions are recorded on the RunContext as warnings instead.
type stage struct {
	name   string
	status model.RunStatus
	run    func(ctx context.Context, rc *RunContext) (*model.PhaseResult, error)
}

// Pipeline runs the stages against a configuration and a run store.
type Pipeline struct {
	cfg     *config.Config
	store   store.Store
	fetcher fetcher.Fetcher
}

// New creates a Pipeline. The fetcher is used for http(s) aggregate tables
// and may be nil when enrichment reads local files only.
func New(cfg *config.Config, st store.Store, f fetcher.Fetcher) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		fetcher: f,
	}
}

// Run executes every stage for the requested year: it trains, scores all
// records, ranks them and writes the output files.
func (p *Pipeline) Run(ctx context.Context, req model.RunRequest) (*RunContext, error) {
	return p.execute(ctx, req, p.stages(StagePersist), p.cfg.Output.Path)
}

// Train executes the stages up to and including training. The returned
// context holds the model (if one could be trained) for point queries.
func (p *Pipeline) Train(ctx context.Context, req model.RunRequest) (*RunContext, error) {
	return p.execute(ctx, req, p.stages(StageTrain), "")
}

// stages returns the run's stages up to and including last.
func (p *Pipeline) stages(last string) []stage {
	all := []stage{
		{StageIngest, model.RunStatusIngesting, p.ingest},
		{StageFeatures, model.RunStatusEngineering, p.engineer},
		{StageEnrich, model.RunStatusEngineering, p.enrich},
		{StageLabel, model.RunStatusEngineering, p.label},
		{StageTrain, model.RunStatusTraining, p.train},
		{StageScore, model.RunStatusScoring, p.score},
		{StageRank, model.RunStatusScoring, p.rank},
		{StagePersist, model.RunStatusPersisting, p.persist},
	}
	for i, s := range all {
		if s.name == last {
			return all[:i+1]
		}
	}
	return all
}

func (p *Pipeline) execute(ctx context.Context, req model.RunRequest, stages []stage, outputPath string) (*RunContext, error) {
	run, err := p.store.CreateRun(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	rc := &RunContext{RunID: run.ID, Year: req.Year}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", run.ID), zap.Int("year", req.Year))
	log.Info("pipeline: run started", zap.Int("stages", len(stages)))

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(s stage) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, s.name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", s.name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := s.run(ctx, rc)
		elapsed := time.Since(start)
		metrics.ObserveStage(s.name, elapsed)

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = s.name
		phaseResult.Duration = elapsed.Milliseconds()

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", s.name),
				zap.Int64("duration_ms", phaseResult.Duration),
				zap.Error(fnErr),
			)
		} else {
			if phaseResult.Status == "" {
				phaseResult.Status = model.PhaseStatusComplete
			}
			log.Info("pipeline: phase complete",
				zap.String("phase", s.name),
				zap.String("status", string(phaseResult.Status)),
				zap.Int64("duration_ms", phaseResult.Duration),
			)
		}

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, phaseResult); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", s.name), zap.Error(err))
			}
		}
		rc.Phases = append(rc.Phases, *phaseResult)
		return fnErr
	}

	var runErr error
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			runErr = eris.Wrapf(err, "pipeline: cancelled before %s", s.name)
			break
		}
		setStatus(s.status)
		if err := trackPhase(s); err != nil {
			runErr = err
			break
		}
	}

	result := rc.Result(outputPath)
	status := model.RunStatusComplete
	if runErr != nil {
		result.Error = runErr.Error()
		result.OutputPath = ""
		status = model.RunStatusFailed
	}
	metrics.ObserveRun(status, result)

	// A cancelled run still gets its final record.
	saveCtx := context.WithoutCancel(ctx)
	if saveErr := p.store.UpdateRunResult(saveCtx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
	}

	if runErr != nil {
		log.Error("pipeline: run failed", zap.Error(runErr))
		return rc, runErr
	}

	log.Info("pipeline: run complete",
		zap.Int("rows", result.RowsLoaded),
		zap.Int("scored", result.RowsScored),
		zap.String("model_state", string(result.ModelState)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return rc, nil
}
