// Package features derives model inputs from normalized accident records and
// fixes the run's feature manifest.
package features

import (
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
)

// Options configures Engineer and BuildManifest.
type Options struct {
	// Vocabulary freezes categorical codes when set.
	Vocabulary *Vocabulary

	CellLevel int
	CenterLat float64
	CenterLon float64

	UseCoordinates bool
	UseEnrichment  bool
}

// Result reports what Engineer derived.
type Result struct {
	// Vocabulary holds the codes actually used, in code order.
	Vocabulary *Vocabulary
	// Unencoded counts non-null categorical values a frozen vocabulary rejected.
	Unencoded int
	GeoRows   int
}

// Engineer fills the derived fields of every record in place. Weekday and
// month come only from the parsed date. Categorical codes follow first-seen
// row order unless opts.Vocabulary freezes them.
func Engineer(records []*model.Record, caps model.Capabilities, opts Options) *Result {
	weather, roadType := NewEncoder(), NewEncoder()
	if opts.Vocabulary != nil {
		weather = FrozenEncoder(opts.Vocabulary.Weather)
		roadType = FrozenEncoder(opts.Vocabulary.RoadType)
	}

	res := &Result{}
	for _, r := range records {
		if r.Date != nil {
			// time.Weekday counts from Sunday; records count from Monday.
			wd := (int(r.Date.Weekday()) + 6) % 7
			month := int(r.Date.Month())
			r.Weekday = &wd
			r.Month = &month
		}

		r.WeatherCode = weather.Encode(r.Weather)
		if r.Weather != nil && r.WeatherCode == nil {
			res.Unencoded++
		}
		r.RoadTypeCode = roadType.Encode(r.RoadType)
		if r.RoadType != nil && r.RoadTypeCode == nil {
			res.Unencoded++
		}

		if caps.Geo && r.HasGeo() {
			r.CellToken = CellToken(*r.Latitude, *r.Longitude, opts.CellLevel)
			d := DistanceKM(*r.Latitude, *r.Longitude, opts.CenterLat, opts.CenterLon)
			r.DistCenterKM = &d
			res.GeoRows++
		}
	}

	res.Vocabulary = &Vocabulary{
		Weather:  weather.Values(),
		RoadType: roadType.Values(),
	}

	zap.L().Info("features engineered",
		zap.String("component", "features"),
		zap.Int("rows", len(records)),
		zap.Int("weather_values", len(res.Vocabulary.Weather)),
		zap.Int("road_type_values", len(res.Vocabulary.RoadType)),
		zap.Int("geo_rows", res.GeoRows),
		zap.Int("unencoded", res.Unencoded),
	)
	return res
}

// BuildManifest fixes the ordered feature list for a run from the final
// capabilities (after enrichment). Each feature follows its capability and,
// where one exists, its opt-in flag.
func BuildManifest(caps model.Capabilities, opts Options) model.Manifest {
	names := []string{}
	if caps.KM {
		names = append(names, model.FeatureKM)
	}
	if caps.Time {
		names = append(names, model.FeatureHour)
	}
	if caps.Date {
		names = append(names, model.FeatureWeekday)
	}
	if caps.Geo && opts.UseCoordinates {
		names = append(names, model.FeatureLatitude, model.FeatureLongitude, model.FeatureDistCenter)
	}
	if caps.Weather {
		names = append(names, model.FeatureWeatherCode)
	}
	if caps.RoadType {
		names = append(names, model.FeatureRoadTypeCode)
	}
	if caps.Enrichment && opts.UseEnrichment {
		names = append(names, model.FeaturePopulation, model.FeatureFleetSize)
	}
	return model.NewManifest(names...)
}
