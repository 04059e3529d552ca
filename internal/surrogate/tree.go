package surrogate

import (
	"sort"
)

// minImpurity stops splitting nodes whose targets are already constant
const minImpurity = 1e-14

type treeBuilder struct {
	X        [][]float64
	y        []float64
	maxDepth int
	nodes    []Node
}

// buildTree grows a CART regression tree on the rows in idx (repeats allowed,
// as in a bootstrap sample). Splits minimise the summed squared error of the
// children; thresholds sit halfway between consecutive distinct values and
// the first best split found wins ties.
func buildTree(X [][]float64, y []float64, idx []int, maxDepth int) Tree {
	b := &treeBuilder{X: X, y: y, maxDepth: maxDepth}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	id := len(b.nodes)
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	b.nodes = append(b.nodes, Node{Leaf: true, Value: mean, Samples: len(idx)})

	if depth >= b.maxDepth || len(idx) < 2 || sumSq-sum*sum/n <= minImpurity {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
		Value:     mean,
		Samples:   len(idx),
	}
	return id
}

func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := 0.0
	order := make([]int, len(idx))
	numFeatures := len(b.X[idx[0]])

	for f := 0; f < numFeatures; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X[order[a]][f] < b.X[order[c]][f]
		})

		totalSum, totalSq := 0.0, 0.0
		for _, i := range order {
			totalSum += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		for k := 0; k < len(order)-1; k++ {
			yi := b.y[order[k]]
			leftSum += yi
			leftSq += yi * yi

			v, next := b.X[order[k]][f], b.X[order[k+1]][f]
			if v == next {
				continue
			}
			nl := float64(k + 1)
			nr := float64(len(order) - k - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if bestFeature < 0 || sse < bestSSE-1e-12 {
				bestFeature, bestThreshold, bestSSE = f, (v+next)/2, sse
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
