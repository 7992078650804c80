package model

// Capabilities describes which optional inputs are present in a load. It is
// computed once at ingestion (and extended by enrichment) and consulted by
// every later stage instead of re-checking column presence.
type Capabilities struct {
	Date           bool `json:"date"`
	Time           bool `json:"time"`
	KM             bool `json:"km"`
	Geo            bool `json:"geo"`
	Weather        bool `json:"weather"`
	RoadType       bool `json:"road_type"`
	Classification bool `json:"classification"`
	Region         bool `json:"region"`
	Enrichment     bool `json:"enrichment"`
}
