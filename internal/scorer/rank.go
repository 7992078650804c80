package scorer

import (
	"errors"
	"math"
	"sort"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/roadrisk/internal/model"
)

var (
	// ErrNoRiskyRecords means no record had a positive risk score to rank.
	ErrNoRiskyRecords = errors.New("scorer: no records with positive risk score")
	// ErrInvalidK means a ranking was asked for fewer than one entry.
	ErrInvalidK = errors.New("scorer: k must be >= 1")
)

// TopK returns at most k records with RiskScore > 0, highest first. Ties
// keep input order. Fewer than k are returned when fewer qualify.
func TopK(records []*model.Record, k int) ([]*model.Record, error) {
	if k <= 0 {
		return nil, eris.Wrapf(ErrInvalidK, "scorer: top-k with k=%d", k)
	}
	var risky []*model.Record
	for _, r := range records {
		if r.RiskScore > 0 {
			risky = append(risky, r)
		}
	}
	if len(risky) == 0 {
		return nil, ErrNoRiskyRecords
	}

	sort.SliceStable(risky, func(i, j int) bool {
		return risky[i].RiskScore > risky[j].RiskScore
	})
	if len(risky) > k {
		risky = risky[:k]
	}
	return risky, nil
}

// Segment is a stretch of road grouped by state, road and km bucket.
type Segment struct {
	StateCode string  `json:"state"`
	RoadID    string  `json:"road_id"`
	KMStart   float64 `json:"km_start"`
	KMEnd     float64 `json:"km_end"`
	Accidents int     `json:"accidents"`
	MeanRisk  float64 `json:"mean_risk"`
	MaxRisk   float64 `json:"max_risk"`

	// Spherical centroid of the segment's geolocated records, if any.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Key identifies the segment, e.g. "MG/381/120-130".
func (s Segment) Key() string {
	return s.StateCode + "/" + s.RoadID + "/" +
		strconv.FormatFloat(s.KMStart, 'f', -1, 64) + "-" +
		strconv.FormatFloat(s.KMEnd, 'f', -1, 64)
}

// TopSegments groups scored records into bucketKM-long stretches and returns
// the k segments with the highest mean risk. Only records with a positive
// score count. Ties are broken by accident count, then key.
func TopSegments(records []*model.Record, bucketKM float64, k int) ([]Segment, error) {
	if k <= 0 {
		return nil, eris.Wrapf(ErrInvalidK, "scorer: top segments with k=%d", k)
	}
	if bucketKM <= 0 {
		bucketKM = 10
	}

	type acc struct {
		seg      Segment
		sum      float64
		centroid r3.Vector
		geo      int
	}
	groups := make(map[string]*acc)
	for _, r := range records {
		if r.RiskScore <= 0 {
			continue
		}
		start := math.Floor(r.KM/bucketKM) * bucketKM
		seg := Segment{StateCode: r.StateCode, RoadID: r.RoadID, KMStart: start, KMEnd: start + bucketKM}
		key := seg.Key()
		g, ok := groups[key]
		if !ok {
			g = &acc{seg: seg}
			groups[key] = g
		}
		g.seg.Accidents++
		g.sum += r.RiskScore
		g.seg.MaxRisk = math.Max(g.seg.MaxRisk, r.RiskScore)
		if r.HasGeo() {
			pt := s2.PointFromLatLng(s2.LatLngFromDegrees(*r.Latitude, *r.Longitude))
			g.centroid = g.centroid.Add(pt.Vector)
			g.geo++
		}
	}
	if len(groups) == 0 {
		return nil, ErrNoRiskyRecords
	}

	segments := make([]Segment, 0, len(groups))
	for _, g := range groups {
		g.seg.MeanRisk = g.sum / float64(g.seg.Accidents)
		if g.geo > 0 && g.centroid.Norm() > 0 {
			ll := s2.LatLngFromPoint(s2.Point{Vector: g.centroid.Normalize()})
			lat, lon := ll.Lat.Degrees(), ll.Lng.Degrees()
			g.seg.Latitude, g.seg.Longitude = &lat, &lon
		}
		segments = append(segments, g.seg)
	}
	sort.Slice(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if a.MeanRisk != b.MeanRisk {
			return a.MeanRisk > b.MeanRisk
		}
		if a.Accidents != b.Accidents {
			return a.Accidents > b.Accidents
		}
		return a.Key() < b.Key()
	})
	if len(segments) > k {
		segments = segments[:k]
	}
	return segments, nil
}
