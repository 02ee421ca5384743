package forest

import (
	"math/rand"
	"sort"
)

// node is one entry of a flattened regression tree. Leaves have Left == -1.
type node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a fitted regression tree stored as a flat node slice, root first.
type Tree struct {
	nodes []node
}

// Predict walks the tree for one row.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// NumNodes returns the number of nodes, leaves included.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// treeBuilder grows one tree on a bootstrap sample.
type treeBuilder struct {
	x           [][]float64
	y           []float64
	mtry        int
	minNodeSize int
	rng         *rand.Rand
	nodes       []node
}

// split is a candidate partition of a node.
type split struct {
	feature   int
	threshold float64
	score     float64
	ok        bool
}

func buildTree(x [][]float64, y []float64, sample []int, mtry, minNodeSize int, rng *rand.Rand) *Tree {
	b := &treeBuilder{
		x:           x,
		y:           y,
		mtry:        mtry,
		minNodeSize: minNodeSize,
		rng:         rng,
	}
	b.grow(sample)
	return &Tree{nodes: b.nodes}
}

// grow appends the subtree for idx and returns its node index.
func (b *treeBuilder) grow(idx []int) int {
	pos := len(b.nodes)
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Value: b.mean(idx)})

	if len(idx) < 2*b.minNodeSize || b.pure(idx) {
		return pos
	}

	best := b.bestSplit(idx)
	if !best.ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left)
	r := b.grow(right)
	b.nodes[pos].Feature = best.feature
	b.nodes[pos].Threshold = best.threshold
	b.nodes[pos].Left = l
	b.nodes[pos].Right = r
	return pos
}

// bestSplit draws mtry candidate features and returns the split with the
// largest squared-error reduction among those leaving at least minNodeSize
// samples on each side.
func (b *treeBuilder) bestSplit(idx []int) split {
	p := len(b.x[0])
	candidates := b.rng.Perm(p)[:b.mtry]

	var best split
	sorted := make([]int, len(idx))
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		// Maximizing sumL²/nL + sumR²/nR is equivalent to minimizing the
		// children's summed squared error.
		var sumL float64
		for k := 1; k < n; k++ {
			sumL += b.y[sorted[k-1]]
			if k < b.minNodeSize || n-k < b.minNodeSize {
				continue
			}
			lo := b.x[sorted[k-1]][f]
			hi := b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			sumR := total - sumL
			score := sumL*sumL/float64(k) + sumR*sumR/float64(n-k)
			if !best.ok || score > best.score {
				th := lo + (hi-lo)/2
				if th >= hi {
					th = lo
				}
				best = split{feature: f, threshold: th, score: score, ok: true}
			}
		}
	}

	// A split must improve on the parent.
	if best.ok && best.score <= total*total/float64(n) {
		best.ok = false
	}
	return best
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *treeBuilder) pure(idx []int) bool {
	for _, i := range idx[1:] {
		if b.y[i] != b.y[idx[0]] {
			return false
		}
	}
	return true
}
