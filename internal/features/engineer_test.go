package features

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roadrisk/internal/model"
)

func strp(s string) *string { return &s }

func f64p(v float64) *float64 { return &v }

func datep(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func allCaps() model.Capabilities {
	return model.Capabilities{Date: true, Time: true, KM: true, Geo: true, Weather: true, RoadType: true, Classification: true}
}

func TestEngineer_WeekdayAndMonth(t *testing.T) {
	records := []*model.Record{
		{Date: datep(2023, time.January, 2)}, // Monday
		{Date: datep(2023, time.January, 1)}, // Sunday
		{Date: datep(2023, time.March, 15)},  // Wednesday
		{},
	}
	Engineer(records, allCaps(), Options{CellLevel: 13})

	require.NotNil(t, records[0].Weekday)
	assert.Equal(t, 0, *records[0].Weekday)
	assert.Equal(t, 6, *records[1].Weekday)
	assert.Equal(t, 2, *records[2].Weekday)
	assert.Equal(t, 3, *records[2].Month)
	assert.Nil(t, records[3].Weekday)
	assert.Nil(t, records[3].Month)
}

func TestEngineer_CodesFirstSeenOrder(t *testing.T) {
	build := func() []*model.Record {
		return []*model.Record{
			{Weather: strp("Chuva"), RoadType: strp("Dupla")},
			{Weather: strp("Céu Claro"), RoadType: nil},
			{Weather: strp("Chuva"), RoadType: strp("Simples")},
			{Weather: nil, RoadType: strp("Dupla")},
		}
	}

	a := build()
	resA := Engineer(a, allCaps(), Options{})
	b := build()
	Engineer(b, allCaps(), Options{})

	assert.Equal(t, 0, *a[0].WeatherCode)
	assert.Equal(t, 1, *a[1].WeatherCode)
	assert.Equal(t, 0, *a[2].WeatherCode)
	assert.Nil(t, a[3].WeatherCode)
	assert.Nil(t, a[1].RoadTypeCode)
	assert.Equal(t, 1, *a[2].RoadTypeCode)

	for i := range a {
		assert.Equal(t, a[i].WeatherCode, b[i].WeatherCode)
		assert.Equal(t, a[i].RoadTypeCode, b[i].RoadTypeCode)
	}
	assert.Equal(t, []string{"Chuva", "Céu Claro"}, resA.Vocabulary.Weather)
	assert.Equal(t, []string{"Dupla", "Simples"}, resA.Vocabulary.RoadType)
}

func TestEngineer_FrozenVocabulary(t *testing.T) {
	records := []*model.Record{
		{Weather: strp("Nublado")},
		{Weather: strp("Granizo")},
	}
	res := Engineer(records, allCaps(), Options{
		Vocabulary: &Vocabulary{Weather: []string{"Chuva", "Nublado"}},
	})

	require.NotNil(t, records[0].WeatherCode)
	assert.Equal(t, 1, *records[0].WeatherCode)
	assert.Nil(t, records[1].WeatherCode)
	assert.Equal(t, 1, res.Unencoded)
	assert.Equal(t, []string{"Chuva", "Nublado"}, res.Vocabulary.Weather)
}

func TestEngineer_Geo(t *testing.T) {
	records := []*model.Record{
		{Latitude: f64p(-19.96), Longitude: f64p(-44.19)},
		{Latitude: f64p(-19.96)},
	}
	res := Engineer(records, allCaps(), Options{CellLevel: 10, CenterLat: -14.235, CenterLon: -51.925})

	assert.Equal(t, 1, res.GeoRows)
	assert.NotEmpty(t, records[0].CellToken)
	require.NotNil(t, records[0].DistCenterKM)
	assert.Greater(t, *records[0].DistCenterKM, 900.0)
	assert.Less(t, *records[0].DistCenterKM, 1100.0)
	assert.Empty(t, records[1].CellToken)
	assert.Nil(t, records[1].DistCenterKM)
}

func TestEngineer_GeoCapabilityOff(t *testing.T) {
	records := []*model.Record{{Latitude: f64p(-19.96), Longitude: f64p(-44.19)}}
	caps := allCaps()
	caps.Geo = false
	Engineer(records, caps, Options{CellLevel: 13})
	assert.Empty(t, records[0].CellToken)
}

func TestBuildManifest(t *testing.T) {
	tests := []struct {
		name string
		caps model.Capabilities
		opts Options
		want []string
	}{
		{
			name: "original feature set",
			caps: allCaps(),
			want: []string{"km", "hour", "weekday", "weather_code", "road_type_code"},
		},
		{
			name: "coordinates opt-in",
			caps: allCaps(),
			opts: Options{UseCoordinates: true},
			want: []string{"km", "hour", "weekday", "latitude", "longitude", "dist_center_km", "weather_code", "road_type_code"},
		},
		{
			name: "coordinates requested without geo",
			caps: model.Capabilities{Date: true, Time: true, KM: true},
			opts: Options{UseCoordinates: true},
			want: []string{"km", "hour", "weekday"},
		},
		{
			name: "enrichment opt-in",
			caps: model.Capabilities{Time: true, KM: true, Enrichment: true},
			opts: Options{UseEnrichment: true},
			want: []string{"km", "hour", "population", "fleet_size"},
		},
		{
			name: "enrichment available but not requested",
			caps: model.Capabilities{KM: true, Enrichment: true},
			want: []string{"km"},
		},
		{
			name: "no km column",
			caps: model.Capabilities{Time: true, Date: true},
			want: []string{"hour", "weekday"},
		},
		{
			name: "no usable columns",
			caps: model.Capabilities{Classification: true},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildManifest(tt.caps, tt.opts).Features())
		})
	}
}

func TestVocabularyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab", "vocabulary.yaml")
	v := &Vocabulary{Weather: []string{"Chuva", "Sol"}, RoadType: []string{"Dupla"}}
	require.NoError(t, v.Save(path))

	got, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestLoadVocabulary_Errors(t *testing.T) {
	_, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features: read vocabulary")
}

func TestEncoder(t *testing.T) {
	e := NewEncoder()
	assert.False(t, e.Frozen())
	assert.Equal(t, 0, *e.Encode(strp("a")))
	assert.Equal(t, 1, *e.Encode(strp("b")))
	assert.Equal(t, 0, *e.Encode(strp("a")))
	assert.Nil(t, e.Encode(nil))

	code, ok := e.Code("b")
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	_, ok = e.Code("c")
	assert.False(t, ok)

	f := FrozenEncoder([]string{"x", "x", "y"})
	assert.True(t, f.Frozen())
	assert.Equal(t, []string{"x", "y"}, f.Values())
	assert.Nil(t, f.Encode(strp("z")))
	assert.Equal(t, []string{"x", "y"}, f.Values())
}
