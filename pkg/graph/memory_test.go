package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertNode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	node, err := store.UpsertNode(ctx, "Barack Obama", "")
	require.NoError(t, err)
	assert.Equal(t, "barack obama", node.ID)
	assert.Equal(t, "Barack Obama", node.Name)
	assert.False(t, node.FirstSeenAt.IsZero())

	// A spelling variant resolves to the same node and keeps the first name.
	again, err := store.UpsertNode(ctx, "barack  OBAMA", "https://thumb/1")
	require.NoError(t, err)
	assert.Equal(t, node.ID, again.ID)
	assert.Equal(t, "Barack Obama", again.Name)
	assert.Equal(t, "https://thumb/1", again.ThumbnailURL)
	assert.Equal(t, node.FirstSeenAt, again.FirstSeenAt)

	// An empty thumbnail does not clear the stored one.
	again, err = store.UpsertNode(ctx, "Barack Obama", "")
	require.NoError(t, err)
	assert.Equal(t, "https://thumb/1", again.ThumbnailURL)

	_, err = store.UpsertNode(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestMemoryStore_UpsertEdge_ConfidenceIsRunningMax(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	edge, err := store.UpsertEdge(ctx, "Elon Musk", "Beyonce", 85, "https://img/1", "https://thumb/1", "https://ctx/1")
	require.NoError(t, err)
	assert.Equal(t, float64(85), edge.Confidence)
	assert.Equal(t, "https://img/1", edge.BestEvidenceURL)

	// Lower confidence neither lowers the stored value nor touches evidence.
	edge, err = store.UpsertEdge(ctx, "Elon Musk", "Beyonce", 70, "https://img/2", "https://thumb/2", "https://ctx/2")
	require.NoError(t, err)
	assert.Equal(t, float64(85), edge.Confidence)
	assert.Equal(t, "https://img/1", edge.BestEvidenceURL)
	assert.Equal(t, "https://ctx/1", edge.ContextURL)

	// Equal confidence keeps the existing evidence: replacement requires a
	// strictly higher score.
	edge, err = store.UpsertEdge(ctx, "Elon Musk", "Beyonce", 85, "https://img/3", "https://thumb/3", "https://ctx/3")
	require.NoError(t, err)
	assert.Equal(t, "https://img/1", edge.BestEvidenceURL)

	// Strictly higher confidence replaces the whole evidence triple.
	edge, err = store.UpsertEdge(ctx, "Elon Musk", "Beyonce", 92, "https://img/4", "https://thumb/4", "https://ctx/4")
	require.NoError(t, err)
	assert.Equal(t, float64(92), edge.Confidence)
	assert.Equal(t, "https://img/4", edge.BestEvidenceURL)
	assert.Equal(t, "https://thumb/4", edge.BestThumbnailURL)
	assert.Equal(t, "https://ctx/4", edge.ContextURL)
}

func TestMemoryStore_UpsertEdge_CanonicalPair(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.UpsertEdge(ctx, "Elon Musk", "Beyonce", 80, "", "", "")
	require.NoError(t, err)

	// The reversed pair resolves to the same record.
	second, err := store.UpsertEdge(ctx, "Beyonce", "Elon Musk", 90, "https://img/2", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, float64(90), second.Confidence)

	g, err := store.GetFullGraph(ctx)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, "beyonce", g.Edges[0].SourceID)
	assert.Equal(t, "elon musk", g.Edges[0].TargetID)
}

func TestMemoryStore_UpsertEdge_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertEdge(ctx, "A One", "B Two", 75, "https://img/1", "https://thumb/1", "https://ctx/1")
	require.NoError(t, err)
	before, err := store.GetFullGraph(ctx)
	require.NoError(t, err)

	_, err = store.UpsertEdge(ctx, "A One", "B Two", 75, "https://img/1", "https://thumb/1", "https://ctx/1")
	require.NoError(t, err)
	after, err := store.GetFullGraph(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestMemoryStore_UpsertEdge_RejectsSelfLoop(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.UpsertEdge(context.Background(), "Barack Obama", "barack  obama", 90, "", "", "")
	assert.ErrorIs(t, err, ErrSelfEdge)
}

func TestMemoryStore_FindPath_SameNode(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertNode(ctx, "Rihanna", "")
	require.NoError(t, err)

	res, err := store.FindPath(ctx, "Rihanna", "rihanna")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 0, res.Hops)
	assert.Equal(t, float64(100), res.MinConfidence)
	assert.Equal(t, []string{"Rihanna"}, res.Path)
	assert.Empty(t, res.Steps)
}

func TestMemoryStore_FindPath_UnknownPerson(t *testing.T) {
	store := NewMemoryStore()

	res, err := store.FindPath(context.Background(), "Nobody", "Rihanna")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMemoryStore_FindPath_ShortestWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// Long route A-M1-M2-B plus a direct shortcut A-B.
	_, err := store.UpsertEdge(ctx, "Person A", "Middle One", 95, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, "Middle One", "Middle Two", 94, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, "Middle Two", "Person B", 93, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, "Person A", "Person B", 81, "https://img/direct", "", "https://ctx/direct")
	require.NoError(t, err)

	res, err := store.FindPath(ctx, "Person A", "Person B")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 1, res.Hops)
	assert.Equal(t, []string{"Person A", "Person B"}, res.Path)
	assert.Equal(t, float64(81), res.MinConfidence)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "https://ctx/direct", res.Steps[0].ContextURL)
}

func TestMemoryStore_FindPath_BottleneckConfidence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertEdge(ctx, "Person A", "Bridge M", 95, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, "Bridge M", "Person B", 88, "", "", "")
	require.NoError(t, err)

	res, err := store.FindPath(ctx, "Person A", "Person B")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 2, res.Hops)
	assert.Equal(t, []string{"Person A", "Bridge M", "Person B"}, res.Path)
	assert.Equal(t, []string{"person a", "bridge m", "person b"}, res.PathIDs)
	assert.Equal(t, float64(88), res.MinConfidence)
}

func TestMemoryStore_FindPath_Disconnected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.UpsertEdge(ctx, "Person A", "Bridge M", 95, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertNode(ctx, "Person B", "")
	require.NoError(t, err)

	res, err := store.FindPath(ctx, "Person A", "Person B")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMemoryStore_Stats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.NodeCount)
	assert.Equal(t, 0, st.EdgeCount)
	assert.Equal(t, float64(0), st.AvgConfidence)

	_, err = store.UpsertEdge(ctx, "Person A", "Person B", 80, "", "", "")
	require.NoError(t, err)
	_, err = store.UpsertEdge(ctx, "Person B", "Person C", 90, "", "", "")
	require.NoError(t, err)

	st, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.NodeCount)
	assert.Equal(t, 2, st.EdgeCount)
	assert.InDelta(t, 85.0, st.AvgConfidence, 0.0001)
}
