package gbt

import (
	"slices"
	"sort"
)

// binner quantizes each feature column into at most maxBins ordered bins.
// A value v falls in bin k when cuts[k-1] < v <= cuts[k].
type binner struct {
	cuts [][]float64
}

func newBinner(X [][]float64, numFeatures, maxBins int) *binner {
	b := &binner{cuts: make([][]float64, numFeatures)}
	col := make([]float64, len(X))
	for f := range numFeatures {
		for i, row := range X {
			col[i] = row[f]
		}
		b.cuts[f] = cutPoints(col, maxBins)
	}
	return b
}

// cutPoints returns split thresholds for one column: midpoints between
// distinct values, or quantile values when there are too many distinct ones.
func cutPoints(col []float64, maxBins int) []float64 {
	sorted := slices.Clone(col)
	slices.Sort(sorted)
	distinct := slices.Compact(sorted)
	if len(distinct) < 2 {
		return nil
	}

	if len(distinct) <= maxBins {
		cuts := make([]float64, len(distinct)-1)
		for i := range cuts {
			cuts[i] = (distinct[i] + distinct[i+1]) / 2
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBins-1)
	for q := 1; q < maxBins; q++ {
		v := distinct[q*len(distinct)/maxBins]
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	// The largest value must not share a bin boundary with a cut.
	if cuts[len(cuts)-1] >= distinct[len(distinct)-1] {
		cuts = cuts[:len(cuts)-1]
	}
	return cuts
}

func (b *binner) bin(f int, v float64) uint16 {
	return uint16(sort.SearchFloat64s(b.cuts[f], v))
}

// transform returns the bin matrix, feature-major.
func (b *binner) transform(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(b.cuts))
	for f := range b.cuts {
		out[f] = make([]uint16, len(X))
		for i, row := range X {
			out[f][i] = b.bin(f, row[f])
		}
	}
	return out
}
