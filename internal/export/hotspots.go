package export

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
	"github.com/sells-group/roadrisk/internal/scorer"
)

// Hotspots builds a GeoJSON FeatureCollection of point features, one per
// geolocated record, in the given order. Records without finite coordinates
// are skipped.
func Hotspots(records []*model.Record) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for rank, r := range records {
		if !r.HasGeo() || !finite(*r.Latitude) || !finite(*r.Longitude) {
			continue
		}
		props := map[string]interface{}{
			"rank":       rank + 1,
			"risk_score": r.RiskScore,
			"percentage": scorer.FormatPercent(r.RiskScore),
			"band":       string(scorer.Band(r.RiskScore)),
			"state":      r.StateCode,
			"road_id":    r.RoadID,
			"km":         r.KM,
			"cause":      r.Cause,
		}
		if r.CellToken != "" {
			props["cell"] = r.CellToken
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(r.Row),
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Longitude, *r.Latitude}),
			Properties: props,
		})
	}
	return fc
}

// WriteHotspots atomically writes Hotspots(records) to path.
func WriteHotspots(path string, records []*model.Record) error {
	fc := Hotspots(records)
	data, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal hotspots")
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, werr := w.Write(data)
		return eris.Wrapf(werr, "export: write %s", path)
	})
	if err != nil {
		return err
	}

	zap.L().Info("export: wrote hotspots",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
