// Package model defines the accident record, feature manifest, and run types
// shared by every pipeline stage.
package model

import "time"

// Record is one observed accident event. Identity is the row position within
// the merged load; no natural key survives the merge of yearly sources.
type Record struct {
	Row    int    `json:"row"`
	Source string `json:"source"`

	// Temporal fields are derived from the parsed date and time only.
	Date    *time.Time `json:"date,omitempty"`
	Hour    *int       `json:"hour,omitempty"`
	Weekday *int       `json:"weekday,omitempty"` // 0=Monday .. 6=Sunday
	Month   *int       `json:"month,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RoadID    string   `json:"road_id,omitempty"`
	StateCode string   `json:"state_code,omitempty"`
	KM        float64  `json:"km"`
	Region    string   `json:"region,omitempty"`

	Cause          string  `json:"cause,omitempty"`
	Classification *string `json:"classification,omitempty"`
	Weather        *string `json:"weather,omitempty"`
	RoadType       *string `json:"road_type,omitempty"`
	AccidentType   string  `json:"accident_type,omitempty"`

	Persons  int `json:"persons"`
	Deaths   int `json:"deaths"`
	Injured  int `json:"injured"`
	Vehicles int `json:"vehicles"`

	// Derived by later stages. Fields are only ever added, never cleared.
	WeatherCode   *int     `json:"weather_code,omitempty"`
	RoadTypeCode  *int     `json:"road_type_code,omitempty"`
	CellToken     string   `json:"cell_token,omitempty"`
	DistCenterKM  *float64 `json:"dist_center_km,omitempty"`
	Population    *float64 `json:"population,omitempty"`
	FleetSize     *float64 `json:"fleet_size,omitempty"`
	HighRiskLabel int      `json:"high_risk_label"`
	RiskScore     float64  `json:"risk_score"`
}

// HasGeo reports whether both coordinates are present.
func (r *Record) HasGeo() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Feature returns the value of the named manifest feature for this record.
// The second result is false when the feature is null for the record or the
// name is not a known feature.
func (r *Record) Feature(name string) (float64, bool) {
	switch name {
	case FeatureKM:
		return r.KM, true
	case FeatureHour:
		return intPtrValue(r.Hour)
	case FeatureWeekday:
		return intPtrValue(r.Weekday)
	case FeatureMonth:
		return intPtrValue(r.Month)
	case FeatureLatitude:
		return floatPtrValue(r.Latitude)
	case FeatureLongitude:
		return floatPtrValue(r.Longitude)
	case FeatureDistCenter:
		return floatPtrValue(r.DistCenterKM)
	case FeatureWeatherCode:
		return intPtrValue(r.WeatherCode)
	case FeatureRoadTypeCode:
		return intPtrValue(r.RoadTypeCode)
	case FeaturePopulation:
		return floatPtrValue(r.Population)
	case FeatureFleetSize:
		return floatPtrValue(r.FleetSize)
	default:
		return 0, false
	}
}

func intPtrValue(p *int) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

func floatPtrValue(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// RegionAggregate is one row of the external region-level enrichment table.
type RegionAggregate struct {
	RegionName string  `json:"region_name" csv:"region_name"`
	Population float64 `json:"population" csv:"population"`
	FleetSize  float64 `json:"fleet_size" csv:"fleet_size"`
}
