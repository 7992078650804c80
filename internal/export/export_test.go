package export

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/roadrisk/internal/model"
)

func f64p(v float64) *float64 { return &v }
func intp(v int) *int          { return &v }

func sampleRecords() []*model.Record {
	return []*model.Record{
		{
			Row: 1, Latitude: f64p(-14.235), Longitude: f64p(-51.925), Weekday: intp(4), Hour: intp(18),
			Cause: "Falta de atenção", RiskScore: 0.8125, StateCode: "GO", RoadID: "153", KM: 120.5,
		},
		{
			Row: 2, Cause: "Velocidade incompatível", RiskScore: 0, StateCode: "MG", RoadID: "381", KM: 33,
		},
		{
			Row: 3, Latitude: f64p(-23.5), Longitude: f64p(-46.6), Weekday: intp(0), Hour: intp(0),
			Cause: "Chuva; pista\tmolhada", RiskScore: 0.375, StateCode: "SP", RoadID: "116", KM: 0,
		},
	}
}

func TestWriteScored_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "predictions.tsv")
	records := sampleRecords()

	require.NoError(t, WriteScored(path, '\t', records))

	rows, err := ReadScored(path, '\t')
	require.NoError(t, err)
	require.Len(t, rows, len(records))
	for i, r := range records {
		assert.Equal(t, RowFromRecord(r), rows[i], "row %d", r.Row)
	}

	// Nulls round-trip as nulls.
	assert.Nil(t, rows[1].Latitude.Ptr())
	assert.Nil(t, rows[1].Hour.Ptr())
	require.NotNil(t, rows[2].Weekday.Ptr())
	assert.Equal(t, 0, *rows[2].Weekday.Ptr())
}

func TestWriteScored_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.tsv")
	require.NoError(t, WriteScored(path, 0, sampleRecords()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "latitude\tlongitude\tweekday\thour\tcause\trisk_score\tstate\troad_id\tkm", lines[0])
	assert.Equal(t, "-14.235\t-51.925\t4\t18\tFalta de atenção\t0.8125\tGO\t153\t120.5", lines[1])
}

func TestWriteScored_EmptyWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.tsv")
	require.NoError(t, WriteScored(path, '\t', nil))

	rows, err := ReadScored(path, '\t')
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteScored_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictions.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteScored(path, ',', sampleRecords()))

	rows, err := ReadScored(path, ',')
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
	assert.Equal(t, "predictions.csv", entries[0].Name())
}

func TestWriteScored_BadDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteScored(filepath.Join(blocker, "predictions.tsv"), '\t', sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export: create dir")
}

func TestReadScored_Missing(t *testing.T) {
	_, err := ReadScored(filepath.Join(t.TempDir(), "nope.tsv"), '\t')
	require.Error(t, err)
}

func TestNullTypes(t *testing.T) {
	var f NullFloat
	require.NoError(t, f.UnmarshalText([]byte("-14.235")))
	assert.Equal(t, NullFloat{Value: -14.235, Valid: true}, f)
	require.Error(t, f.UnmarshalText([]byte("abc")))

	var i NullInt
	require.NoError(t, i.UnmarshalText(nil))
	assert.False(t, i.Valid)
	b, err := NullInt{Value: 7, Valid: true}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "7", string(b))
}

func TestHotspots(t *testing.T) {
	fc := Hotspots(sampleRecords())
	require.Len(t, fc.Features, 2, "records without coordinates are skipped")

	first := fc.Features[0]
	assert.Equal(t, "1", first.ID)
	pt, ok := first.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{-51.925, -14.235}, pt.FlatCoords())
	assert.Equal(t, 1, first.Properties["rank"])
	assert.Equal(t, "81.2%", first.Properties["percentage"])
	assert.Equal(t, "critical", first.Properties["band"])

	assert.Equal(t, 3, fc.Features[1].Properties["rank"])
}

func TestWriteHotspots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "hotspots.geojson")
	require.NoError(t, WriteHotspots(path, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])

	var fc geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "SP", fc.Features[1].Properties["state"])
}

func TestWriteHotspots_NoGeo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotspots.geojson")
	require.NoError(t, WriteHotspots(path, []*model.Record{{Row: 1, RiskScore: 0.5}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"features":[]`)
}

func TestWriteHotspots_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hotspots.geojson")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteHotspots(path, sampleRecords()))

	var fc geojson.FeatureCollection
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")
	assert.Equal(t, "hotspots.geojson", entries[0].Name())
}

func TestWriteHotspots_SkipsNonFiniteCoordinates(t *testing.T) {
	records := sampleRecords()
	records[0].Latitude = f64p(math.NaN())
	records[2].Longitude = f64p(math.Inf(1))

	path := filepath.Join(t.TempDir(), "hotspots.geojson")
	require.NoError(t, WriteHotspots(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"features":[]`)
}
