// Package vector holds the numeric helpers shared by search and clustering.
package vector

import (
	"cmp"
	"math"
	"slices"
)

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine returns the cosine similarity of a and b. ok is false when the
// vectors are empty or differ in dimension. Zero vectors have similarity 0.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// SquaredEuclidean returns the squared L2 distance between a and b, which must
// have equal length.
func SquaredEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Candidate is a stored vector competing for a place in a top-k result.
type Candidate struct {
	ID     string
	Vector []float32
}

// Hit is one search result.
type Hit struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// TopK scores every candidate against query by cosine similarity and returns
// at most k hits ordered by similarity descending, ties broken by ascending id.
// Candidates whose dimension differs from the query are skipped, as are
// repeated ids after the first. Exact O(n*d) scan.
func TopK(query []float32, candidates []Candidate, k int) []Hit {
	if k <= 0 || len(candidates) == 0 {
		return []Hit{}
	}

	seen := make(map[string]struct{}, len(candidates))
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		sim, ok := Cosine(query, c.Vector)
		if !ok {
			continue
		}
		seen[c.ID] = struct{}{}
		hits = append(hits, Hit{ID: c.ID, Similarity: sim})
	}

	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
