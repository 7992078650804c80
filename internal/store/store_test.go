package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func f64p(v float64) *float64 { return &v }

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2023})
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusQueued, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, 2023, got.Request.Year)
		assert.Equal(t, model.RunStatusQueued, got.Status)
		assert.Nil(t, got.Result)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "nonexistent-id")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2023})
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusTraining))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusTraining, got.Status)
	})

	t.Run("UpdateRunStatusNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRunStatus(context.Background(), "nonexistent-id", model.RunStatusTraining)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "run nonexistent-id")
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2022})
		require.NoError(t, err)

		result := &model.RunResult{
			RowsLoaded: 240,
			RowsScored: 200,
			Features:   []string{"km", "hour", "weekday"},
			ModelState: model.ModelStateTrained,
			Metrics:    &model.Metrics{AUC: 0.81, AUCDefined: true, Accuracy: 0.75, TrainRows: 168, TestRows: 72},
			Warnings: []model.Warning{
				{Stage: "ingest", Condition: model.ConditionSourceUnavailable, Subject: "datatran2022.csv", Message: "missing"},
			},
		}
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, 240, got.Result.RowsLoaded)
		assert.Equal(t, []string{"km", "hour", "weekday"}, got.Result.Features)
		require.NotNil(t, got.Result.Metrics)
		assert.InDelta(t, 0.81, got.Result.Metrics.AUC, 1e-9)
		require.Len(t, got.Result.Warnings, 1)
		assert.Equal(t, model.ConditionSourceUnavailable, got.Result.Warnings[0].Condition)
	})

	t.Run("UpdateRunResultFailed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2022})
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, &model.RunResult{Error: "ingest: no source data"}))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r1, err := s.CreateRun(ctx, model.RunRequest{Year: 2021})
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.RunRequest{Year: 2022})
		require.NoError(t, err)
		r3, err := s.CreateRun(ctx, model.RunRequest{Year: 2022})
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, r3.ID, &model.RunResult{}))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		byYear, err := s.ListRuns(ctx, RunFilter{Year: 2021})
		require.NoError(t, err)
		require.Len(t, byYear, 1)
		assert.Equal(t, r1.ID, byYear[0].ID)

		complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, complete, 1)
		assert.Equal(t, r3.ID, complete[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		recent, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		assert.Len(t, recent, 3)

		future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)
	})

	t.Run("Phases", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2023})
		require.NoError(t, err)

		p1, err := s.CreatePhase(ctx, run.ID, "ingest")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseStatusRunning, p1.Status)
		require.NoError(t, s.CompletePhase(ctx, p1.ID, &model.PhaseResult{
			Name:     "ingest",
			Status:   model.PhaseStatusComplete,
			Duration: 12,
			Metadata: map[string]any{"rows": 240},
		}))
		_, err = s.CreatePhase(ctx, run.ID, "train")
		require.NoError(t, err)

		phases, err := s.ListPhases(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, phases, 2)
		assert.Equal(t, "ingest", phases[0].Name)
		assert.Equal(t, model.PhaseStatusComplete, phases[0].Status)
		require.NotNil(t, phases[0].Result)
		assert.Equal(t, int64(12), phases[0].Result.Duration)
		assert.EqualValues(t, 240, phases[0].Result.Metadata["rows"])
		assert.Equal(t, "train", phases[1].Name)
		assert.Nil(t, phases[1].Result)
	})

	t.Run("CompletePhaseNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.CompletePhase(context.Background(), "missing", &model.PhaseResult{Status: model.PhaseStatusComplete})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Hotspots", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunRequest{Year: 2023})
		require.NoError(t, err)

		hotspots := []model.Hotspot{
			{Rank: 1, Row: 17, StateCode: "MG", RoadID: "381", KM: 120.5, Cause: "Falta de atenção", Latitude: f64p(-19.9), Longitude: f64p(-43.9), RiskScore: 0.91},
			{Rank: 2, Row: 4, StateCode: "SP", RoadID: "116", KM: 33, RiskScore: 0.88},
		}
		require.NoError(t, s.SaveHotspots(ctx, run.ID, hotspots))

		got, err := s.ListHotspots(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, hotspots, got)

		// Saving again replaces the previous ranking.
		require.NoError(t, s.SaveHotspots(ctx, run.ID, hotspots[1:]))
		got, err = s.ListHotspots(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].Row)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), "mysql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestFinalStatus(t *testing.T) {
	assert.Equal(t, model.RunStatusComplete, finalStatus(nil))
	assert.Equal(t, model.RunStatusComplete, finalStatus(&model.RunResult{}))
	assert.Equal(t, model.RunStatusFailed, finalStatus(&model.RunResult{Error: "boom"}))
}
