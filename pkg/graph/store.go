// Package graph persists the co-appearance graph and answers shortest-path
// queries over it.
package graph

import (
	"context"
	"errors"

	"github.com/snapgraph/snapgraph/pkg/models"
)

var (
	// ErrEmptyName is returned when a person name normalizes to nothing.
	ErrEmptyName = errors.New("person name is empty")

	// ErrSelfEdge is returned when both edge endpoints resolve to the same node.
	ErrSelfEdge = errors.New("edge endpoints resolve to the same person")
)

// Store is the persistence contract for the co-appearance graph.
//
// Upserts are idempotent and safe for concurrent writers: a node is created
// once and never deleted, an edge's confidence only ever grows, and the
// best-evidence triple is replaced only by a strictly higher confidence.
type Store interface {
	// UpsertNode inserts a person or no-ops on an existing one. A non-empty
	// thumbnail upgrades the stored one.
	UpsertNode(ctx context.Context, name, thumbnailURL string) (*models.Person, error)

	// UpsertEdge records a verified co-appearance between two people,
	// creating nodes on demand. On conflict the stored confidence becomes
	// max(old, new) and the evidence triple is replaced iff new > old.
	UpsertEdge(ctx context.Context, a, b string, confidence float64, evidenceURL, thumbnailURL, contextURL string) (*models.Edge, error)

	// GetFullGraph returns a deterministic snapshot of all nodes and edges.
	GetFullGraph(ctx context.Context) (*models.Graph, error)

	// FindPath runs an unweighted BFS between two names and returns the
	// shortest path, or Found=false when the people are not connected.
	FindPath(ctx context.Context, from, to string) (*models.PathResult, error)

	// Stats summarizes node and edge counts and the mean edge confidence.
	Stats(ctx context.Context) (*models.GraphStats, error)

	// Health reports whether the backing store is reachable.
	Health(ctx context.Context) error
}
