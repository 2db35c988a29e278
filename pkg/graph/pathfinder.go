package graph

import (
	"sort"

	"github.com/snapgraph/snapgraph/pkg/models"
)

// adjacency is an in-memory snapshot of the graph used for path search.
type adjacency struct {
	nodes     map[string]*models.Person
	neighbors map[string][]edgeRef
}

// edgeRef points from one endpoint to the other across an edge.
type edgeRef struct {
	other string
	edge  *models.Edge
}

func newAdjacency() *adjacency {
	return &adjacency{
		nodes:     make(map[string]*models.Person),
		neighbors: make(map[string][]edgeRef),
	}
}

func (a *adjacency) addNode(p *models.Person) {
	a.nodes[p.ID] = p
}

func (a *adjacency) addEdge(e *models.Edge) {
	a.neighbors[e.SourceID] = append(a.neighbors[e.SourceID], edgeRef{other: e.TargetID, edge: e})
	a.neighbors[e.TargetID] = append(a.neighbors[e.TargetID], edgeRef{other: e.SourceID, edge: e})
}

// sortNeighbors fixes the expansion order so results are deterministic for a
// given snapshot.
func (a *adjacency) sortNeighbors() {
	for id := range a.neighbors {
		refs := a.neighbors[id]
		sort.Slice(refs, func(i, j int) bool { return refs[i].other < refs[j].other })
	}
}

// shortestPath runs an unweighted BFS from one node id to another and
// assembles the path result. Both ids must exist in the snapshot.
func (a *adjacency) shortestPath(fromID, toID string) *models.PathResult {
	fromNode, fromOK := a.nodes[fromID]
	if _, toOK := a.nodes[toID]; !fromOK || !toOK {
		return &models.PathResult{Found: false}
	}

	if fromID == toID {
		return &models.PathResult{
			Found:         true,
			Path:          []string{fromNode.Name},
			PathIDs:       []string{fromID},
			Steps:         []models.PathStep{},
			Hops:          0,
			MinConfidence: 100,
		}
	}

	parent := make(map[string]edgeRef)
	visited := map[string]bool{fromID: true}
	queue := []string{fromID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, ref := range a.neighbors[current] {
			if visited[ref.other] {
				continue
			}
			visited[ref.other] = true
			parent[ref.other] = edgeRef{other: current, edge: ref.edge}
			if ref.other == toID {
				return a.assemblePath(fromID, toID, parent)
			}
			queue = append(queue, ref.other)
		}
	}

	return &models.PathResult{Found: false}
}

// assemblePath walks the parent chain back from the target and builds the
// ordered steps with the bottleneck confidence.
func (a *adjacency) assemblePath(fromID, toID string, parent map[string]edgeRef) *models.PathResult {
	ids := []string{toID}
	for ids[len(ids)-1] != fromID {
		prev := parent[ids[len(ids)-1]]
		ids = append(ids, prev.other)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	result := &models.PathResult{
		Found:         true,
		PathIDs:       ids,
		Hops:          len(ids) - 1,
		MinConfidence: 100,
	}
	for _, id := range ids {
		result.Path = append(result.Path, a.nodes[id].Name)
	}
	for i := 1; i < len(ids); i++ {
		ref := parent[ids[i]]
		result.Steps = append(result.Steps, models.PathStep{
			From:         a.nodes[ids[i-1]].Name,
			To:           a.nodes[ids[i]].Name,
			Confidence:   ref.edge.Confidence,
			ThumbnailURL: ref.edge.BestThumbnailURL,
			ContextURL:   ref.edge.ContextURL,
		})
		if ref.edge.Confidence < result.MinConfidence {
			result.MinConfidence = ref.edge.Confidence
		}
	}
	return result
}
