package cluster

import (
	"math"
	"math/rand"

	"opinion-engine/internal/vector"
)

const (
	// KMeansSeed seeds k-means++ so identical input always yields identical clusters.
	KMeansSeed = 42

	kmeansMaxIterations = 300
	kmeansTolerance     = 1e-4
)

// KMeans partitions points into at most k clusters. k larger than the number
// of points is clamped so each point can have its own cluster. Clusters are
// numbered in centroid-creation order; clusters that end up empty are omitted.
func KMeans(points []Point, k int) *Result {
	result := &Result{Kind: KindFlat, Clusters: []FlatCluster{}}
	n := len(points)
	if n == 0 || k <= 0 {
		return result
	}
	if k > n {
		k = n
	}

	rng := rand.New(rand.NewSource(KMeansSeed))
	centroids := seedPlusPlus(points, k, rng)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	dims := len(points[0].Vector)
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	counts := make([]int, k)

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		if changed := assign(points, centroids, assignments); changed == 0 {
			break
		}
		if shift := updateCentroids(points, assignments, centroids, sums, counts); shift <= kmeansTolerance {
			// Relabel against the converged centroids.
			assign(points, centroids, assignments)
			break
		}
	}

	members := make([][]Member, k)
	for i, c := range assignments {
		members[c] = append(members[c], Member{ID: points[i].ID, Text: points[i].Text})
	}
	for c := 0; c < k; c++ {
		if len(members[c]) == 0 {
			continue
		}
		result.Clusters = append(result.Clusters, FlatCluster{ClusterIndex: c, Items: members[c]})
	}
	return result
}

// seedPlusPlus picks k initial centroids with k-means++: the first uniformly,
// each next one with probability proportional to its squared distance from the
// nearest chosen centroid. When every remaining point coincides with a chosen
// centroid, the lowest unchosen index is used.
func seedPlusPlus(points []Point, k int, rng *rand.Rand) [][]float32 {
	n := len(points)
	chosen := make([]bool, n)
	centroids := make([][]float32, 0, k)

	first := rng.Intn(n)
	chosen[first] = true
	centroids = append(centroids, cloneVector(points[first].Vector))

	minDist := make([]float64, n)
	for i := range points {
		minDist[i] = vector.SquaredEuclidean(points[i].Vector, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for i := range minDist {
			if !chosen[i] {
				total += minDist[i]
			}
		}

		selected := -1
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i := range minDist {
				if chosen[i] || minDist[i] == 0 {
					continue
				}
				cum += minDist[i]
				selected = i
				if cum >= target {
					break
				}
			}
		}
		if selected < 0 {
			for i := range chosen {
				if !chosen[i] {
					selected = i
					break
				}
			}
		}

		chosen[selected] = true
		centroid := cloneVector(points[selected].Vector)
		centroids = append(centroids, centroid)
		for i := range points {
			if d := vector.SquaredEuclidean(points[i].Vector, centroid); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centroids
}

// assign moves every point to its nearest centroid (lowest index on ties) and
// returns how many assignments changed.
func assign(points []Point, centroids [][]float32, assignments []int) int {
	changed := 0
	for i := range points {
		nearest := 0
		best := math.Inf(1)
		for c := range centroids {
			if d := vector.SquaredEuclidean(points[i].Vector, centroids[c]); d < best {
				best = d
				nearest = c
			}
		}
		if assignments[i] != nearest {
			assignments[i] = nearest
			changed++
		}
	}
	return changed
}

// updateCentroids recomputes each centroid as the mean of its members and
// returns the largest squared shift. Empty clusters keep their centroid.
func updateCentroids(points []Point, assignments []int, centroids [][]float32, sums [][]float64, counts []int) float64 {
	for c := range sums {
		counts[c] = 0
		for d := range sums[c] {
			sums[c][d] = 0
		}
	}
	for i, c := range assignments {
		counts[c]++
		for d, x := range points[i].Vector {
			sums[c][d] += float64(x)
		}
	}

	maxShift := 0.0
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		next := make([]float32, len(centroids[c]))
		for d := range next {
			next[d] = float32(sums[c][d] / float64(counts[c]))
		}
		if shift := vector.SquaredEuclidean(next, centroids[c]); shift > maxShift {
			maxShift = shift
		}
		centroids[c] = next
	}
	return maxShift
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
