package model

// Hotspot is one entry of a run's top-K ranking, kept in run history.
type Hotspot struct {
	Rank      int      `json:"rank"`
	Row       int      `json:"row"`
	StateCode string   `json:"state"`
	RoadID    string   `json:"road_id"`
	KM        float64  `json:"km"`
	Cause     string   `json:"cause,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RiskScore float64  `json:"risk_score"`
}

// HotspotsFromRecords ranks records in the given order, starting at 1.
func HotspotsFromRecords(records []*Record) []Hotspot {
	out := make([]Hotspot, len(records))
	for i, r := range records {
		out[i] = Hotspot{
			Rank:      i + 1,
			Row:       r.Row,
			StateCode: r.StateCode,
			RoadID:    r.RoadID,
			KM:        r.KM,
			Cause:     r.Cause,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			RiskScore: r.RiskScore,
		}
	}
	return out
}
