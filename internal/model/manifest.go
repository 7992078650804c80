package model

import (
	"math"
	"slices"
)

// Feature names used in the manifest and in point queries.
const (
	FeatureKM           = "km"
	FeatureHour         = "hour"
	FeatureWeekday      = "weekday"
	FeatureMonth        = "month"
	FeatureLatitude     = "latitude"
	FeatureLongitude    = "longitude"
	FeatureDistCenter   = "dist_center_km"
	FeatureWeatherCode  = "weather_code"
	FeatureRoadTypeCode = "road_type_code"
	FeaturePopulation   = "population"
	FeatureFleetSize    = "fleet_size"
)

// optionalFeatures may be filled with a placeholder 0 in point queries.
var optionalFeatures = map[string]bool{
	FeatureWeatherCode:  true,
	FeatureRoadTypeCode: true,
	FeaturePopulation:   true,
	FeatureFleetSize:    true,
	FeatureDistCenter:   true,
}

// IsOptionalFeature reports whether a point query may omit the feature.
func IsOptionalFeature(name string) bool {
	return optionalFeatures[name]
}

// Manifest is the ordered, run-scoped list of features used for training and
// scoring. It is computed once per run and never mutated afterwards.
type Manifest struct {
	features []string
}

// NewManifest returns a manifest over a copy of the given feature names.
func NewManifest(features ...string) Manifest {
	return Manifest{features: slices.Clone(features)}
}

// Features returns a copy of the ordered feature names.
func (m Manifest) Features() []string {
	return slices.Clone(m.features)
}

// Len returns the number of features.
func (m Manifest) Len() int {
	return len(m.features)
}

// Contains reports whether the manifest includes the named feature.
func (m Manifest) Contains(name string) bool {
	return slices.Contains(m.features, name)
}

// Vector extracts the record's feature vector in manifest order. ok is false
// if any feature is null or non-finite for the record.
func (m Manifest) Vector(r *Record) (vec []float64, ok bool) {
	vec = make([]float64, len(m.features))
	for i, name := range m.features {
		v, present := r.Feature(name)
		if !present || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		vec[i] = v
	}
	return vec, true
}
