package features

import (
	"cmp"
	"slices"

	"github.com/sells-group/roadrisk/internal/model"
)

// Summarize computes the descriptive aggregates shown next to the model:
// counts by hour, weekday and weather, the topCauses most frequent causes,
// and accident types per state.
func Summarize(records []*model.Record, topCauses int) *model.Summary {
	s := &model.Summary{
		Rows:        len(records),
		ByStateType: make(map[string]map[string]int),
	}
	weather := make(map[string]int)
	causes := make(map[string]int)

	for _, r := range records {
		if r.Injured > 0 {
			s.Injured++
		}
		s.Deaths += r.Deaths
		if r.Hour != nil && *r.Hour >= 0 && *r.Hour < 24 {
			s.ByHour[*r.Hour]++
		}
		if r.Weekday != nil && *r.Weekday >= 0 && *r.Weekday < 7 {
			s.ByWeekday[*r.Weekday]++
		}
		if r.Weather != nil {
			weather[*r.Weather]++
		}
		if r.Cause != "" {
			causes[r.Cause]++
		}
		if r.StateCode != "" && r.AccidentType != "" {
			byType, ok := s.ByStateType[r.StateCode]
			if !ok {
				byType = make(map[string]int)
				s.ByStateType[r.StateCode] = byType
			}
			byType[r.AccidentType]++
		}
	}

	s.ByWeather = rankCounts(weather, 0)
	s.TopCauses = rankCounts(causes, topCauses)
	return s
}

// rankCounts orders counts descending with ties by name. limit <= 0 keeps all.
func rankCounts(counts map[string]int, limit int) []model.CategoryCount {
	out := make([]model.CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.CategoryCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b model.CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
