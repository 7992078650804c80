package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusIngesting   RunStatus = "ingesting"
	RunStatusEngineering RunStatus = "engineering"
	RunStatusTraining    RunStatus = "training"
	RunStatusScoring     RunStatus = "scoring"
	RunStatusPersisting  RunStatus = "persisting"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// ModelState describes whether a run produced a usable model.
type ModelState string

const (
	ModelStateTrained      ModelState = "trained"
	ModelStateInsufficient ModelState = "insufficient_data"
	ModelStateFailed       ModelState = "failed"
	ModelStateUnavailable  ModelState = "unavailable"
)

// RunRequest identifies what a run should process.
type RunRequest struct {
	Year int `json:"year"`
}

// Run represents a single pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Request   RunRequest `json:"request"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Metrics holds held-out evaluation results for a trained model.
type Metrics struct {
	AUC          float64            `json:"auc"`
	AUCDefined   bool               `json:"auc_defined"`
	Accuracy     float64            `json:"accuracy"`
	TrainRows    int                `json:"train_rows"`
	TestRows     int                `json:"test_rows"`
	PositiveRate float64            `json:"positive_rate"`
	Importance   map[string]float64 `json:"importance"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	RowsLoaded   int           `json:"rows_loaded"`
	RowsScored   int           `json:"rows_scored"`
	Features     []string      `json:"features"`
	Capabilities Capabilities  `json:"capabilities"`
	ModelState   ModelState    `json:"model_state"`
	Metrics      *Metrics      `json:"metrics,omitempty"`
	OutputPath   string        `json:"output_path,omitempty"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Summary      *Summary      `json:"summary,omitempty"`
	Phases       []PhaseResult `json:"phases"`
	Error        string        `json:"error,omitempty"`
}

// RunPhase represents a stage within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline stage.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline stage.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
