// Package gbt trains gradient-boosted regression trees for binary
// classification with logistic loss. Splits are chosen from per-node
// gradient histograms over quantized features.
package gbt

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// Params configures training.
type Params struct {
	NumTrees       int
	MaxDepth       int
	LearningRate   float64
	MinChildWeight float64 // minimum hessian sum per child
	Lambda         float64 // L2 regularization on leaf weights
	MinSplitGain   float64
	MaxBins        int
}

// DefaultParams mirrors the usual boosted-tree defaults.
func DefaultParams() Params {
	return Params{
		NumTrees:       100,
		MaxDepth:       6,
		LearningRate:   0.3,
		MinChildWeight: 1,
		Lambda:         1,
		MaxBins:        256,
	}
}

func (p Params) validate() error {
	switch {
	case p.NumTrees < 1:
		return eris.New("gbt: num trees must be >= 1")
	case p.MaxDepth < 1:
		return eris.New("gbt: max depth must be >= 1")
	case p.LearningRate <= 0:
		return eris.New("gbt: learning rate must be > 0")
	case p.Lambda < 0 || p.MinChildWeight < 0 || p.MinSplitGain < 0:
		return eris.New("gbt: regularization terms must be >= 0")
	case p.MaxBins < 2 || p.MaxBins > math.MaxUint16:
		return eris.New("gbt: max bins out of range")
	}
	return nil
}

// Model is a trained ensemble. It is immutable and safe for concurrent use.
type Model struct {
	numFeatures int
	base        float64
	trees       []tree
	gain        []float64
}

// Fit trains a model on rows X with labels y in {0,1}.
func Fit(X [][]float64, y []int, p Params) (*Model, error) {
	if p.MaxBins == 0 {
		p.MaxBins = DefaultParams().MaxBins
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, eris.New("gbt: no training rows")
	}
	if len(X) != len(y) {
		return nil, eris.Errorf("gbt: %d rows but %d labels", len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return nil, eris.New("gbt: rows have no features")
	}

	var positives float64
	for i, row := range X {
		if len(row) != nf {
			return nil, eris.Errorf("gbt: row %d has %d features, want %d", i, len(row), nf)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, eris.Errorf("gbt: row %d has a non-finite value", i)
			}
		}
		switch y[i] {
		case 0:
		case 1:
			positives++
		default:
			return nil, eris.Errorf("gbt: label %d at row %d is not 0 or 1", y[i], i)
		}
	}

	b := newBinner(X, nf, p.MaxBins)
	g := &grower{
		params: p,
		bins:   b.transform(X),
		cuts:   b.cuts,
		grad:   make([]float64, len(X)),
		hess:   make([]float64, len(X)),
		gain:   make([]float64, nf),
	}

	m := &Model{
		numFeatures: nf,
		base:        logit(positives / float64(len(X))),
		trees:       make([]tree, 0, p.NumTrees),
	}

	margin := make([]float64, len(X))
	for i := range margin {
		margin[i] = m.base
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	for range p.NumTrees {
		for i, f := range margin {
			prob := sigmoid(f)
			g.grad[i] = prob - float64(y[i])
			g.hess[i] = math.Max(prob*(1-prob), 1e-16)
		}
		t := g.grow(idx)
		for i, row := range X {
			margin[i] += t.predict(row)
		}
		m.trees = append(m.trees, t)
	}

	m.gain = g.gain
	return m, nil
}

// NumFeatures is the expected input width.
func (m *Model) NumFeatures() int { return m.numFeatures }

// NumTrees is the ensemble size.
func (m *Model) NumTrees() int { return len(m.trees) }

// Margin returns the raw log-odds for x.
func (m *Model) Margin(x []float64) (float64, error) {
	if len(x) != m.numFeatures {
		return 0, eris.Errorf("gbt: input has %d features, want %d", len(x), m.numFeatures)
	}
	out := m.base
	for i := range m.trees {
		out += m.trees[i].predict(x)
	}
	return out, nil
}

// PredictProba returns the positive-class probability for x.
func (m *Model) PredictProba(x []float64) (float64, error) {
	f, err := m.Margin(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(f), nil
}

// Importance returns each feature's share of the total split gain. The
// shares sum to 1 unless no split was ever made, in which case all are 0.
func (m *Model) Importance() []float64 {
	imp := make([]float64, len(m.gain))
	copy(imp, m.gain)
	if total := floats.Sum(imp); total > 0 {
		floats.Scale(1/total, imp)
	}
	return imp
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// logit clamps p away from 0 and 1 so single-class data still yields a
// finite base margin.
func logit(p float64) float64 {
	const eps = 1e-6
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}
