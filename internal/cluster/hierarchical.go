package cluster

import (
	"math"

	"opinion-engine/internal/vector"
)

// Agglomerative builds the full Ward-linkage dendrogram over points, merging
// until a single root remains. Merge distances follow the Lance-Williams
// update on squared Euclidean distances; each internal node reports the square
// root, which matches the usual Ward height. No cut is applied.
//
// Zero points yield a nil root; one point yields a single leaf.
func Agglomerative(points []Point) *Result {
	result := &Result{Kind: KindTree}
	n := len(points)
	switch n {
	case 0:
		return result
	case 1:
		result.Root = newLeaf(points[0])
		return result
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := vector.SquaredEuclidean(points[i].Vector, points[j].Vector)
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	nodes := make([]*Node, n)
	sizes := make([]int, n)
	active := make([]bool, n)
	for i := range points {
		nodes[i] = newLeaf(points[i])
		sizes[i] = 1
		active[i] = true
	}

	// Nearest-neighbour chain: Ward is reducible, so reciprocal nearest
	// neighbours can be merged as soon as they are found.
	chain := make([]int, 0, n)
	for merges := 0; merges < n-1; merges++ {
		for {
			if len(chain) == 0 {
				chain = append(chain, firstActive(active))
			}
			a := chain[len(chain)-1]

			b := -1
			best := math.Inf(1)
			if len(chain) >= 2 {
				b = chain[len(chain)-2]
				best = dist[a][b]
			}
			for x := 0; x < n; x++ {
				if !active[x] || x == a {
					continue
				}
				if dist[a][x] < best {
					best = dist[a][x]
					b = x
				}
			}

			if len(chain) >= 2 && b == chain[len(chain)-2] {
				chain = chain[:len(chain)-2]
				mergeWard(dist, nodes, sizes, active, a, b, best)
				break
			}
			chain = append(chain, b)
		}
	}

	result.Root = nodes[firstActive(active)]
	return result
}

// mergeWard folds the clusters in slots a and b into the lower slot and
// updates its distances to every other active cluster.
func mergeWard(dist [][]float64, nodes []*Node, sizes []int, active []bool, a, b int, d float64) {
	keep, drop := a, b
	if drop < keep {
		keep, drop = drop, keep
	}

	nKeep, nDrop := float64(sizes[keep]), float64(sizes[drop])
	for x := range active {
		if !active[x] || x == keep || x == drop {
			continue
		}
		nx := float64(sizes[x])
		updated := ((nKeep+nx)*dist[keep][x] + (nDrop+nx)*dist[drop][x] - nx*d) / (nKeep + nDrop + nx)
		if updated < 0 {
			updated = 0
		}
		dist[keep][x] = updated
		dist[x][keep] = updated
	}

	nodes[keep] = newInternal(math.Sqrt(d), nodes[keep], nodes[drop])
	sizes[keep] += sizes[drop]
	active[drop] = false
	nodes[drop] = nil
}

func firstActive(active []bool) int {
	for i, ok := range active {
		if ok {
			return i
		}
	}
	return -1
}
