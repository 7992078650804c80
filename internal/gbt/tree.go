package gbt

// node is a tree node. Leaves carry Value already scaled by the learning rate.
type node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// grower builds one regression tree on gradient statistics using per-node
// histograms over the binned features.
type grower struct {
	params Params
	bins   [][]uint16
	cuts   [][]float64
	grad   []float64
	hess   []float64
	gain   []float64 // accumulated split gain per feature
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (g *grower) grow(idx []int) tree {
	t := tree{}
	g.build(&t, idx, 0)
	return t
}

func (g *grower) build(t *tree, idx []int, depth int) int {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += g.grad[i]
		sumH += g.hess[i]
	}

	pos := len(t.nodes)
	t.nodes = append(t.nodes, node{})

	best, ok := g.bestSplit(idx, sumG, sumH, depth)
	if !ok {
		t.nodes[pos] = node{
			Leaf:  true,
			Value: g.params.LearningRate * leafWeight(sumG, sumH, g.params.Lambda),
		}
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	col := g.bins[best.feature]
	for _, i := range idx {
		if int(col[i]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	g.gain[best.feature] += best.gain
	l := g.build(t, left, depth+1)
	r := g.build(t, right, depth+1)
	t.nodes[pos] = node{
		Feature:   best.feature,
		Threshold: g.cuts[best.feature][best.bin],
		Left:      l,
		Right:     r,
	}
	return pos
}

func (g *grower) bestSplit(idx []int, sumG, sumH float64, depth int) (split, bool) {
	p := g.params
	if depth >= p.MaxDepth || len(idx) < 2 || sumH < 2*p.MinChildWeight {
		return split{}, false
	}

	parent := score(sumG, sumH, p.Lambda)
	best := split{gain: p.MinSplitGain}
	found := false

	for f, cuts := range g.cuts {
		if len(cuts) == 0 {
			continue
		}
		histG := make([]float64, len(cuts)+1)
		histH := make([]float64, len(cuts)+1)
		col := g.bins[f]
		for _, i := range idx {
			histG[col[i]] += g.grad[i]
			histH[col[i]] += g.hess[i]
		}

		var gl, hl float64
		for k := range cuts {
			gl += histG[k]
			hl += histH[k]
			gr, hr := sumG-gl, sumH-hl
			if hl < p.MinChildWeight || hr < p.MinChildWeight {
				continue
			}
			gain := 0.5 * (score(gl, hl, p.Lambda) + score(gr, hr, p.Lambda) - parent)
			if gain > best.gain {
				best = split{feature: f, bin: k, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

func score(g, h, lambda float64) float64 {
	return g * g / (h + lambda)
}

func leafWeight(g, h, lambda float64) float64 {
	return -g / (h + lambda)
}
