// Package enrich left-joins region-level population and fleet figures onto
// accident records.
package enrich

import (
	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
)

// Result summarizes a join.
type Result struct {
	Matched    int
	Unmatched  int
	Duplicates int // aggregate rows ignored because their region repeated
}

// Join sets Population and FleetSize on every record whose Region equals an
// aggregate's RegionName exactly. Unmatched records are kept with nil
// enrichment fields. When a region repeats, the first row wins.
func Join(records []*model.Record, aggs []model.RegionAggregate) Result {
	index := make(map[string]model.RegionAggregate, len(aggs))
	var res Result
	for _, a := range aggs {
		if _, dup := index[a.RegionName]; dup {
			res.Duplicates++
			continue
		}
		index[a.RegionName] = a
	}

	for _, r := range records {
		a, ok := index[r.Region]
		if !ok || r.Region == "" {
			res.Unmatched++
			continue
		}
		pop, fleet := a.Population, a.FleetSize
		r.Population = &pop
		r.FleetSize = &fleet
		res.Matched++
	}

	zap.L().Info("enrichment joined",
		zap.String("component", "enrich"),
		zap.Int("aggregates", len(index)),
		zap.Int("matched", res.Matched),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("duplicates", res.Duplicates),
	)
	return res
}
