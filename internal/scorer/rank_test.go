package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/model"
)

func f64p(v float64) *float64 { return &v }

func scored(scores ...float64) []*model.Record {
	records := make([]*model.Record, len(scores))
	for i, s := range scores {
		records[i] = &model.Record{Row: i + 1, RiskScore: s}
	}
	return records
}

func TestTopK(t *testing.T) {
	records := scored(0.2, 0, 0.9, 0.5, 0.9, 0.1)

	top, err := TopK(records, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// Stable: row 3 precedes row 5 at equal scores.
	assert.Equal(t, []int{3, 5, 4}, []int{top[0].Row, top[1].Row, top[2].Row})
}

func TestTopK_FewerThanK(t *testing.T) {
	top, err := TopK(scored(0, 0.3, 0, 0.6), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 4, top[0].Row)
	assert.Equal(t, 2, top[1].Row)
}

func TestTopK_NoRiskyRecords(t *testing.T) {
	_, err := TopK(scored(0, 0, 0), 10)
	assert.ErrorIs(t, err, ErrNoRiskyRecords)

	_, err = TopK(nil, 10)
	assert.ErrorIs(t, err, ErrNoRiskyRecords)
}

func TestTopK_InvalidK(t *testing.T) {
	for _, k := range []int{0, -3} {
		_, err := TopK(scored(0.4, 0.9), k)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidK)
		assert.NotErrorIs(t, err, ErrNoRiskyRecords)

		_, err = TopSegments(scored(0.4, 0.9), 10, k)
		assert.ErrorIs(t, err, ErrInvalidK)
	}
}

func TestTopK_DoesNotReorderInput(t *testing.T) {
	records := scored(0.1, 0.9)
	_, err := TopK(records, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, records[0].Row)
}

func TestTopSegments(t *testing.T) {
	records := []*model.Record{
		{StateCode: "MG", RoadID: "381", KM: 121, RiskScore: 0.8, Latitude: f64p(-20), Longitude: f64p(-44)},
		{StateCode: "MG", RoadID: "381", KM: 129.5, RiskScore: 0.6, Latitude: f64p(-20), Longitude: f64p(-44)},
		{StateCode: "SP", RoadID: "116", KM: 5, RiskScore: 0.5},
		{StateCode: "SP", RoadID: "116", KM: 15, RiskScore: 0.9},
		{StateCode: "RJ", RoadID: "101", KM: 3, RiskScore: 0},
	}

	segs, err := TopSegments(records, 10, 10)
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, "SP/116/10-20", segs[0].Key())
	assert.InDelta(t, 0.9, segs[0].MeanRisk, 1e-12)
	assert.Nil(t, segs[0].Latitude)

	assert.Equal(t, "MG/381/120-130", segs[1].Key())
	assert.Equal(t, 2, segs[1].Accidents)
	assert.InDelta(t, 0.7, segs[1].MeanRisk, 1e-12)
	assert.InDelta(t, 0.8, segs[1].MaxRisk, 1e-12)
	require.NotNil(t, segs[1].Latitude)
	assert.InDelta(t, -20, *segs[1].Latitude, 1e-9)
	assert.InDelta(t, -44, *segs[1].Longitude, 1e-9)

	assert.Equal(t, "SP/116/0-10", segs[2].Key())
}

func TestTopSegments_Limit(t *testing.T) {
	records := []*model.Record{
		{StateCode: "MG", RoadID: "040", KM: 1, RiskScore: 0.3},
		{StateCode: "MG", RoadID: "040", KM: 50, RiskScore: 0.4},
	}
	segs, err := TopSegments(records, 0, 1)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "MG/040/50-60", segs[0].Key())
}

func TestTopSegments_NoRiskyRecords(t *testing.T) {
	_, err := TopSegments(scored(0, 0), 10, 5)
	assert.ErrorIs(t, err, ErrNoRiskyRecords)
}
