//go:build !integration

package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/features"
	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/scorer"
)

func parsePredictFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("predict", pflag.ContinueOnError)
	for flag := range featureFlags {
		fs.Float64(flag, 0, "")
	}
	fs.String("weather", "", "")
	fs.String("road-type", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

var testVocab = &features.Vocabulary{
	Weather:  []string{"Céu Claro", "Chuva", "Nublado"},
	RoadType: []string{"Simples", "Dupla"},
}

func TestQueryFromFlags_OnlySetFlags(t *testing.T) {
	fs := parsePredictFlags(t, "--km=120.5", "--hour=18", "--weekday=0")

	q, err := queryFromFlags(fs, testVocab)
	require.NoError(t, err)
	assert.Equal(t, scorer.Query{
		model.FeatureKM:      120.5,
		model.FeatureHour:    18,
		model.FeatureWeekday: 0,
	}, q)
}

func TestQueryFromFlags_Labels(t *testing.T) {
	fs := parsePredictFlags(t, "--km=10", "--hour=7", "--weather=Chuva", "--road-type= Dupla ")

	q, err := queryFromFlags(fs, testVocab)
	require.NoError(t, err)
	assert.InDelta(t, 1, q[model.FeatureWeatherCode], 1e-9)
	assert.InDelta(t, 1, q[model.FeatureRoadTypeCode], 1e-9)
}

func TestQueryFromFlags_UnknownLabel(t *testing.T) {
	fs := parsePredictFlags(t, "--weather=Neve")

	_, err := queryFromFlags(fs, testVocab)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown weather "Neve"`)
	assert.Contains(t, err.Error(), "Chuva")
}

func TestQueryFromFlags_LabelWithoutVocabulary(t *testing.T) {
	fs := parsePredictFlags(t, "--road-type=Dupla")

	_, err := queryFromFlags(fs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a category vocabulary")
}

func TestLabelCode(t *testing.T) {
	feature, code, err := labelCode(testVocab, "weather", "Nublado")
	require.NoError(t, err)
	assert.Equal(t, model.FeatureWeatherCode, feature)
	assert.Equal(t, 2, code)

	feature, code, err = labelCode(testVocab, "road-type", "Simples")
	require.NoError(t, err)
	assert.Equal(t, model.FeatureRoadTypeCode, feature)
	assert.Equal(t, 0, code)
}
