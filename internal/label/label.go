// Package label derives the binary high-risk target from the accident
// classification.
package label

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/roadrisk/internal/model"
)

// DefaultInjurySubstring marks a classification as an injury accident.
const DefaultInjurySubstring = "Com Vítimas"

// Counts reports the label balance after Apply.
type Counts struct {
	Positive     int
	Negative     int
	Unclassified int // null classification, labeled 0
}

// PositiveRate is the share of positive labels.
func (c Counts) PositiveRate() float64 {
	total := c.Positive + c.Negative
	if total == 0 {
		return 0
	}
	return float64(c.Positive) / float64(total)
}

// Apply sets HighRiskLabel to 1 when the classification contains substr
// (case-sensitive) and 0 otherwise. A null classification is labeled 0, so
// unclassified accidents count as low risk.
func Apply(records []*model.Record, substr string) Counts {
	if substr == "" {
		substr = DefaultInjurySubstring
	}

	var c Counts
	for _, r := range records {
		r.HighRiskLabel = 0
		switch {
		case r.Classification == nil:
			c.Unclassified++
			c.Negative++
		case strings.Contains(*r.Classification, substr):
			r.HighRiskLabel = 1
			c.Positive++
		default:
			c.Negative++
		}
	}

	zap.L().Info("labels applied",
		zap.String("component", "label"),
		zap.Int("positive", c.Positive),
		zap.Int("negative", c.Negative),
		zap.Int("unclassified", c.Unclassified),
	)
	return c
}
