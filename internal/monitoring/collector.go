// Package monitoring summarizes run history and raises alerts when model
// quality or run reliability degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal      int     `json:"runs_total"`
	RunsComplete   int     `json:"runs_complete"`
	RunsFailed     int     `json:"runs_failed"`
	RunsInProgress int     `json:"runs_in_progress"`
	FailRate       float64 `json:"fail_rate"`

	// Model outcomes of completed runs.
	ModelsTrained      int     `json:"models_trained"`
	ModelsInsufficient int     `json:"models_insufficient"`
	ModelsFailed       int     `json:"models_failed"`
	AvgAUC             float64 `json:"avg_auc"`
	LatestAUC          float64 `json:"latest_auc"`
	AvgRowsLoaded      int     `json:"avg_rows_loaded"`

	Warnings map[model.Condition]int `json:"warnings,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from run history.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect gathers a snapshot over the given lookback window. A lookback of 0
// or less covers all recorded runs.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
		Warnings:      make(map[model.Condition]int),
	}

	filter := store.RunFilter{Limit: 10000}
	if lookbackHours > 0 {
		filter.CreatedAfter = time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var aucSum float64
	var aucRuns, rowsSum, withResult int
	latestSeen := false

	// Runs are listed newest first.
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsInProgress++
		}
		if r.Result == nil {
			continue
		}
		withResult++
		rowsSum += r.Result.RowsLoaded
		for _, w := range r.Result.Warnings {
			snap.Warnings[w.Condition]++
		}

		switch r.Result.ModelState {
		case model.ModelStateTrained:
			snap.ModelsTrained++
		case model.ModelStateInsufficient:
			snap.ModelsInsufficient++
		case model.ModelStateFailed:
			snap.ModelsFailed++
		}
		if m := r.Result.Metrics; m != nil && m.AUCDefined {
			aucSum += m.AUC
			aucRuns++
			if !latestSeen {
				snap.LatestAUC = m.AUC
				latestSeen = true
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if aucRuns > 0 {
		snap.AvgAUC = aucSum / float64(aucRuns)
	}
	if withResult > 0 {
		snap.AvgRowsLoaded = rowsSum / withResult
	}
	return snap, nil
}
