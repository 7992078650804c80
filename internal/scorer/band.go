package scorer

// RiskBand is a coarse label for a probability.
type RiskBand string

const (
	BandLow      RiskBand = "low"
	BandModerate RiskBand = "moderate"
	BandHigh     RiskBand = "high"
	BandCritical RiskBand = "critical"
)

// Band buckets p at 25%, 50% and 75%. Each threshold belongs to the band
// above it.
func Band(p float64) RiskBand {
	switch {
	case p >= 0.75:
		return BandCritical
	case p >= 0.5:
		return BandHigh
	case p >= 0.25:
		return BandModerate
	default:
		return BandLow
	}
}
