// Package cluster groups embedded opinion items with k-means or agglomerative
// (Ward) clustering. Every call is stateless and works on the points it is given.
package cluster

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Method selects the clustering algorithm.
type Method string

const (
	MethodKMeans       Method = "kmeans"
	MethodHierarchical Method = "hierarchical"
)

// ParseMethod maps the wire value to a Method.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodKMeans, MethodHierarchical:
		return Method(s), true
	}
	return "", false
}

// Kind tags which variant of Result is populated.
type Kind string

const (
	KindFlat Kind = "flat"
	KindTree Kind = "tree"
)

// Point is one item to cluster.
type Point struct {
	ID     string
	Text   string
	Vector []float32
}

// Member is the item payload carried by clusters and leaves.
type Member struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FlatCluster is one k-means group.
type FlatCluster struct {
	ClusterIndex int      `json:"clusterIndex"`
	Items        []Member `json:"items"`
}

// Node is a dendrogram node. Leaves carry ID and Text, internal nodes carry
// Distance and Children. Count is the number of leaves below (1 for a leaf).
type Node struct {
	IsLeaf   bool     `json:"is_leaf"`
	ID       string   `json:"id,omitempty"`
	Text     string   `json:"text,omitempty"`
	Count    int      `json:"count"`
	Distance *float64 `json:"distance,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

func newLeaf(p Point) *Node {
	return &Node{IsLeaf: true, ID: p.ID, Text: p.Text, Count: 1}
}

func newInternal(distance float64, children ...*Node) *Node {
	n := &Node{Distance: &distance, Children: children}
	for _, c := range children {
		n.Count += c.Count
	}
	return n
}

// Leaves returns the leaves under n in left-to-right order.
func (n *Node) Leaves() []*Node {
	if n == nil {
		return nil
	}
	if n.IsLeaf {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Result is the outcome of one clustering run: Clusters for KindFlat, Root for KindTree.
type Result struct {
	Kind     Kind
	Clusters []FlatCluster
	Root     *Node
}

// IsEmpty reports whether the run had nothing to group.
func (r Result) IsEmpty() bool {
	switch r.Kind {
	case KindFlat:
		return len(r.Clusters) == 0
	case KindTree:
		return r.Root == nil
	}
	return true
}

// ItemCount is the number of items placed in the result.
func (r Result) ItemCount() int {
	switch r.Kind {
	case KindFlat:
		n := 0
		for _, c := range r.Clusters {
			n += len(c.Items)
		}
		return n
	case KindTree:
		if r.Root == nil {
			return 0
		}
		return r.Root.Count
	}
	return 0
}

// MarshalJSON keeps the legacy wire shapes: {"clusters": [...]} for k-means and
// the bare root node for hierarchical results.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindFlat:
		clusters := r.Clusters
		if clusters == nil {
			clusters = []FlatCluster{}
		}
		return json.Marshal(struct {
			Clusters []FlatCluster `json:"clusters"`
		}{Clusters: clusters})
	case KindTree:
		return json.Marshal(r.Root)
	}
	return nil, errors.Newf("unknown cluster result kind %q", r.Kind)
}
