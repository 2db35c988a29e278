package graph

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/snapgraph/snapgraph/pkg/candidates"
	"github.com/snapgraph/snapgraph/pkg/database"
	"github.com/snapgraph/snapgraph/pkg/models"
)

// PostgresStore is the Postgres-backed Store.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open connection pool. The schema is managed by
// the database package's embedded migrations.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertNodeSQL = `
INSERT INTO nodes (id, name, normalized_name, thumbnail_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    thumbnail_url = CASE WHEN EXCLUDED.thumbnail_url <> ''
                         THEN EXCLUDED.thumbnail_url
                         ELSE nodes.thumbnail_url END
RETURNING id, name, thumbnail_url, first_seen_at`

const upsertEdgeSQL = `
INSERT INTO edges (id, source_id, target_id, confidence, best_evidence_url, best_thumbnail_url, context_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    confidence = GREATEST(edges.confidence, EXCLUDED.confidence),
    best_evidence_url = CASE WHEN EXCLUDED.confidence > edges.confidence
                             THEN EXCLUDED.best_evidence_url
                             ELSE edges.best_evidence_url END,
    best_thumbnail_url = CASE WHEN EXCLUDED.confidence > edges.confidence
                              THEN EXCLUDED.best_thumbnail_url
                              ELSE edges.best_thumbnail_url END,
    context_url = CASE WHEN EXCLUDED.confidence > edges.confidence
                       THEN EXCLUDED.context_url
                       ELSE edges.context_url END
RETURNING id, source_id, target_id, confidence, best_evidence_url, best_thumbnail_url, context_url, discovered_at`

// UpsertNode implements Store.
func (s *PostgresStore) UpsertNode(ctx context.Context, name, thumbnailURL string) (*models.Person, error) {
	id := candidates.NodeID(name)
	if id == "" {
		return nil, ErrEmptyName
	}

	var p models.Person
	err := s.db.QueryRowContext(ctx, upsertNodeSQL, id, name, id, thumbnailURL).
		Scan(&p.ID, &p.Name, &p.ThumbnailURL, &p.FirstSeenAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert node: %w", err)
	}
	return &p, nil
}

// UpsertEdge implements Store. Node upserts happen in canonical order inside
// one transaction, so concurrent writers on the same pair always lock rows in
// the same order.
func (s *PostgresStore) UpsertEdge(ctx context.Context, a, b string, confidence float64, evidenceURL, thumbnailURL, contextURL string) (*models.Edge, error) {
	idA, idB := candidates.NodeID(a), candidates.NodeID(b)
	if idA == "" || idB == "" {
		return nil, ErrEmptyName
	}
	if idA == idB {
		return nil, ErrSelfEdge
	}

	nameA, nameB := a, b
	if idA > idB {
		idA, idB = idB, idA
		nameA, nameB = nameB, nameA
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin edge upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var discard models.Person
	if err := tx.QueryRowContext(ctx, upsertNodeSQL, idA, nameA, idA, "").
		Scan(&discard.ID, &discard.Name, &discard.ThumbnailURL, &discard.FirstSeenAt); err != nil {
		return nil, fmt.Errorf("failed to upsert source node: %w", err)
	}
	if err := tx.QueryRowContext(ctx, upsertNodeSQL, idB, nameB, idB, "").
		Scan(&discard.ID, &discard.Name, &discard.ThumbnailURL, &discard.FirstSeenAt); err != nil {
		return nil, fmt.Errorf("failed to upsert target node: %w", err)
	}

	var e models.Edge
	err = tx.QueryRowContext(ctx, upsertEdgeSQL,
		models.EdgeID(idA, idB), idA, idB, confidence, evidenceURL, thumbnailURL, contextURL).
		Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Confidence,
			&e.BestEvidenceURL, &e.BestThumbnailURL, &e.ContextURL, &e.DiscoveredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit edge upsert: %w", err)
	}
	return &e, nil
}

// GetFullGraph implements Store.
func (s *PostgresStore) GetFullGraph(ctx context.Context) (*models.Graph, error) {
	g := &models.Graph{Nodes: []*models.Person{}, Edges: []*models.Edge{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, thumbnail_url, first_seen_at FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.ThumbnailURL, &p.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		g.Nodes = append(g.Nodes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	edges, err := s.queryEdges(ctx)
	if err != nil {
		return nil, err
	}
	g.Edges = edges
	return g, nil
}

// FindPath implements Store. The adjacency snapshot is loaded in one pass and
// searched in memory.
func (s *PostgresStore) FindPath(ctx context.Context, from, to string) (*models.PathResult, error) {
	g, err := s.GetFullGraph(ctx)
	if err != nil {
		return nil, err
	}

	adj := newAdjacency()
	for _, n := range g.Nodes {
		adj.addNode(n)
	}
	for _, e := range g.Edges {
		adj.addEdge(e)
	}
	adj.sortNeighbors()
	return adj.shortestPath(candidates.NodeID(from), candidates.NodeID(to)), nil
}

// Stats implements Store.
func (s *PostgresStore) Stats(ctx context.Context) (*models.GraphStats, error) {
	var st models.GraphStats
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM nodes),
		       count(*),
		       COALESCE(avg(confidence), 0)
		FROM edges`).
		Scan(&st.NodeCount, &st.EdgeCount, &st.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to query graph stats: %w", err)
	}
	return &st, nil
}

// Health implements Store.
func (s *PostgresStore) Health(ctx context.Context) error {
	_, err := database.Health(ctx, s.db)
	return err
}

func (s *PostgresStore) queryEdges(ctx context.Context) ([]*models.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, confidence,
		       best_evidence_url, best_thumbnail_url, context_url, discovered_at
		FROM edges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := []*models.Edge{}
	for rows.Next() {
		var e models.Edge
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Confidence,
			&e.BestEvidenceURL, &e.BestThumbnailURL, &e.ContextURL, &e.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	return edges, nil
}
