package graph

import (
	"context"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/models"
)

// MemoryStore is an in-memory Store with the same upsert semantics as the
// Postgres implementation. It backs store-less deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*models.Person
	edges map[string]*models.Edge
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*models.Person),
		edges: make(map[string]*models.Edge),
		now:   time.Now,
	}
}

// UpsertNode implements Store.
func (s *MemoryStore) UpsertNode(_ context.Context, name, thumbnailURL string) (*models.Person, error) {
	id := candidates.NodeID(name)
	if id == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPerson(s.upsertNodeLocked(id, name, thumbnailURL)), nil
}

func (s *MemoryStore) upsertNodeLocked(id, name, thumbnailURL string) *models.Person {
	node, ok := s.nodes[id]
	if !ok {
		node = &models.Person{
			ID:          id,
			Name:        name,
			FirstSeenAt: s.now().UTC(),
		}
		s.nodes[id] = node
	}
	if thumbnailURL != "" {
		node.ThumbnailURL = thumbnailURL
	}
	return node
}

// UpsertEdge implements Store.
func (s *MemoryStore) UpsertEdge(_ context.Context, a, b string, confidence float64, evidenceURL, thumbnailURL, contextURL string) (*models.Edge, error) {
	idA, idB := candidates.NodeID(a), candidates.NodeID(b)
	if idA == "" || idB == "" {
		return nil, ErrEmptyName
	}
	if idA == idB {
		return nil, ErrSelfEdge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nameA, nameB := a, b
	if idA > idB {
		idA, idB = idB, idA
		nameA, nameB = nameB, nameA
	}
	s.upsertNodeLocked(idA, nameA, "")
	s.upsertNodeLocked(idB, nameB, "")

	id := models.EdgeID(idA, idB)
	edge, ok := s.edges[id]
	if !ok {
		edge = &models.Edge{
			ID:               id,
			SourceID:         idA,
			TargetID:         idB,
			Confidence:       confidence,
			BestEvidenceURL:  evidenceURL,
			BestThumbnailURL: thumbnailURL,
			ContextURL:       contextURL,
			DiscoveredAt:     s.now().UTC(),
		}
		s.edges[id] = edge
		return copyEdge(edge), nil
	}

	if confidence > edge.Confidence {
		edge.Confidence = confidence
		edge.BestEvidenceURL = evidenceURL
		edge.BestThumbnailURL = thumbnailURL
		edge.ContextURL = contextURL
	}
	return copyEdge(edge), nil
}

// GetFullGraph implements Store.
func (s *MemoryStore) GetFullGraph(_ context.Context) (*models.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &models.Graph{
		Nodes: make([]*models.Person, 0, len(s.nodes)),
		Edges: make([]*models.Edge, 0, len(s.edges)),
	}
	for _, n := range s.nodes {
		g.Nodes = append(g.Nodes, copyPerson(n))
	}
	for _, e := range s.edges {
		g.Edges = append(g.Edges, copyEdge(e))
	}
	models.SortNodes(g.Nodes)
	models.SortEdges(g.Edges)
	return g, nil
}

// FindPath implements Store.
func (s *MemoryStore) FindPath(_ context.Context, from, to string) (*models.PathResult, error) {
	s.mu.RLock()
	adj := newAdjacency()
	for _, n := range s.nodes {
		adj.addNode(copyPerson(n))
	}
	for _, e := range s.edges {
		adj.addEdge(copyEdge(e))
	}
	s.mu.RUnlock()

	adj.sortNeighbors()
	return adj.shortestPath(candidates.NodeID(from), candidates.NodeID(to)), nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (*models.GraphStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &models.GraphStats{
		NodeCount: len(s.nodes),
		EdgeCount: len(s.edges),
	}
	if len(s.edges) > 0 {
		confidences := make([]float64, 0, len(s.edges))
		for _, e := range s.edges {
			confidences = append(confidences, e.Confidence)
		}
		mean, err := stats.Mean(confidences)
		if err != nil {
			return nil, err
		}
		out.AvgConfidence = mean
	}
	return out, nil
}

// Health implements Store.
func (s *MemoryStore) Health(context.Context) error {
	return nil
}

func copyPerson(p *models.Person) *models.Person {
	cp := *p
	return &cp
}

func copyEdge(e *models.Edge) *models.Edge {
	cp := *e
	return &cp
}
