//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "0f8a2c1e-aaaa-bbbb-cccc-1234567890ab",
			Request:   model.RunRequest{Year: 2023},
			Status:    model.RunStatusComplete,
			CreatedAt: created,
			UpdatedAt: created.Add(42 * time.Second),
			Result: &model.RunResult{
				RowsLoaded: 67766,
				ModelState: model.ModelStateTrained,
				Metrics:    &model.Metrics{AUC: 0.7234, AUCDefined: true},
			},
		},
		{
			ID:        "short",
			Request:   model.RunRequest{Year: 2021},
			Status:    model.RunStatusIngesting,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "DURATION")
	assert.Contains(t, out, "0f8a2c1e")
	assert.NotContains(t, out, "0f8a2c1e-aaaa")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "trained")
	assert.Contains(t, out, "0.723")
	assert.Contains(t, out, "67766")
	assert.Contains(t, out, "2026-03-01 14:30")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "short")
	assert.Contains(t, out, "ingesting")
}

func TestFormatRunSummary(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:          6,
		RunsComplete:       3,
		RunsFailed:         1,
		RunsInProgress:     2,
		FailRate:           0.25,
		ModelsTrained:      2,
		ModelsInsufficient: 1,
		AvgAUC:             0.705,
		LatestAUC:          0.71,
		AvgRowsLoaded:      1200,
		Warnings: map[model.Condition]int{
			model.ConditionSourceUnavailable: 2,
			model.ConditionJoinMismatch:      1,
		},
		LookbackHours: 168,
	}

	var buf bytes.Buffer
	formatRunSummary(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "last 168h")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "0.710")
	assert.Contains(t, out, "0.705")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "Warnings:")
	assert.Contains(t, out, "join_mismatch: 1")
	assert.Contains(t, out, "source_unavailable: 2")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("join_mismatch")), bytes.Index(buf.Bytes(), []byte("source_unavailable")))
}

func TestFormatRunSummary_AllTimeNoModels(t *testing.T) {
	var buf bytes.Buffer
	formatRunSummary(&buf, &monitoring.MetricsSnapshot{RunsTotal: 1, RunsFailed: 1, FailRate: 1})
	out := buf.String()

	assert.Contains(t, out, "all time")
	assert.NotContains(t, out, "Latest AUC")
	assert.NotContains(t, out, "Warnings:")
}

func TestFormatAlerts(t *testing.T) {
	var buf bytes.Buffer
	formatAlerts(&buf, nil)
	assert.Empty(t, buf.String())

	formatAlerts(&buf, []monitoring.Alert{
		{Type: monitoring.AlertLowAUC, Severity: "medium", Message: "latest model AUC 0.540 is below 0.600"},
	})
	assert.Contains(t, buf.String(), "Alerts (1):")
	assert.Contains(t, buf.String(), "[medium] low_auc: latest model AUC 0.540")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "abc", truncateID("abc"))
}
