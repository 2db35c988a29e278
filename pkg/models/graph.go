package models

import (
	"sort"
	"time"
)

// Person is a node in the co-appearance graph. ID is the normalized name,
// so two spellings that normalize equally resolve to the same node.
type Person struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
}

// Edge is an undirected co-appearance between two people. One record exists
// per unordered pair; SourceID/TargetID are stored in canonical (sorted)
// order. Confidence is the maximum image score ever observed for the pair.
type Edge struct {
	ID               string    `json:"id"`
	SourceID         string    `json:"source"`
	TargetID         string    `json:"target"`
	Confidence       float64   `json:"confidence"`
	BestEvidenceURL  string    `json:"evidenceUrl,omitempty"`
	BestThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	ContextURL       string    `json:"contextUrl,omitempty"`
	DiscoveredAt     time.Time `json:"discoveredAt"`
}

// EdgeID returns the canonical edge id for a pair of node ids.
func EdgeID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "--" + b
}

// CanonicalPair returns the two node ids in canonical (sorted) order.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Graph is a full snapshot of the co-appearance graph.
type Graph struct {
	Nodes []*Person `json:"nodes"`
	Edges []*Edge   `json:"edges"`
}

// GraphStats summarizes the stored graph.
type GraphStats struct {
	NodeCount     int     `json:"nodeCount"`
	EdgeCount     int     `json:"edgeCount"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// PathStep is one hop of a found path.
type PathStep struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Confidence   float64 `json:"confidence"`
	ThumbnailURL string  `json:"thumbnail,omitempty"`
	ContextURL   string  `json:"contextUrl,omitempty"`
}

// PathResult is the outcome of a shortest-path lookup.
type PathResult struct {
	Found         bool       `json:"found"`
	Path          []string   `json:"path,omitempty"`
	PathIDs       []string   `json:"pathIds,omitempty"`
	Steps         []PathStep `json:"steps,omitempty"`
	Hops          int        `json:"hops"`
	MinConfidence float64    `json:"minConfidence"`
}

// SortNodes orders nodes by id for deterministic snapshots.
func SortNodes(nodes []*Person) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// SortEdges orders edges by id for deterministic snapshots.
func SortEdges(edges []*Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
}
