package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeIDDeterministic(t *testing.T) {
	a := NewNodeID("Satellite", "INSAT-3D")
	b := NewNodeID("Satellite", "  insat-3d ")
	c := NewNodeID("Mission", "INSAT-3D")

	assert.Equal(t, a, b, "same type and normalized name must hash to the same id")
	assert.NotEqual(t, a, c, "same name under a different type is a different node")
}

func TestUpsertNodeIdempotent(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id1, err := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{SourceURL: "a"})
	require.NoError(t, err)
	id2, err := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{SourceURL: "b"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	node, err := s.GetNode(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "INSAT-3D", node.CanonicalName)
}

func TestPropertyMergePolicy(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	id, err := s.UpsertNode(ctx, "Satellite", "INSAT-3D", map[string]Property{
		"orbit": {Value: "geostationary", Confidence: 0.9, LastUpdated: newer},
	}, Provenance{})
	require.NoError(t, err)

	// An older observation never overwrites a newer one.
	_, err = s.UpsertNode(ctx, "Satellite", "INSAT-3D", map[string]Property{
		"orbit": {Value: "polar", Confidence: 0.95, LastUpdated: older},
	}, Provenance{})
	require.NoError(t, err)

	node, err := s.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "geostationary", node.Properties["orbit"].Value)

	// Same timestamp, higher confidence wins.
	_, err = s.UpsertNode(ctx, "Satellite", "INSAT-3D", map[string]Property{
		"orbit": {Value: "geosynchronous", Confidence: 0.95, LastUpdated: newer},
	}, Provenance{})
	require.NoError(t, err)

	node, err = s.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "geosynchronous", node.Properties["orbit"].Value)
}

func TestUpsertEdgeRequiresEndpoints(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	src, err := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})
	require.NoError(t, err)

	_, err = s.UpsertEdge(ctx, src, NodeID("missing"), "launched_by", nil, 0.9, Provenance{})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestEdgeConfidenceNeverDowngrades(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	src, _ := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})
	dst, _ := s.UpsertNode(ctx, "LaunchVehicle", "GSLV", nil, Provenance{})

	first, err := s.UpsertEdge(ctx, src, dst, "launched_by", nil, 0.9, Provenance{SourceURL: "a"})
	require.NoError(t, err)

	second, err := s.UpsertEdge(ctx, src, dst, "launched_by", nil, 0.6, Provenance{SourceURL: "b"})
	require.NoError(t, err)

	assert.Equal(t, first.UUID, second.UUID, "same triple must refresh, not duplicate")
	assert.Equal(t, 0.9, second.Confidence)
	// The low-confidence attempt is still recorded as provenance.
	assert.Len(t, second.Corroborations, 1)
}

func TestNeighborsBounded(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()

	root, _ := s.UpsertNode(ctx, "Topic", "root", nil, Provenance{})
	for i := 0; i < 10; i++ {
		child, _ := s.UpsertNode(ctx, "Topic", fmt.Sprintf("child-%d", i), nil, Provenance{})
		_, err := s.UpsertEdge(ctx, root, child, "provides", nil, 0.9, Provenance{})
		require.NoError(t, err)
	}

	sg, err := s.Neighbors(ctx, root, TraversalOptions{MaxHops: 2})
	require.NoError(t, err)

	// Ceiling of 3 counts the start node too.
	assert.LessOrEqual(t, len(sg.Nodes), 3)
}

func TestNeighborsHopLimit(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	a, _ := s.UpsertNode(ctx, "Topic", "a", nil, Provenance{})
	b, _ := s.UpsertNode(ctx, "Topic", "b", nil, Provenance{})
	c, _ := s.UpsertNode(ctx, "Topic", "c", nil, Provenance{})
	s.UpsertEdge(ctx, a, b, "provides", nil, 0.9, Provenance{})
	s.UpsertEdge(ctx, b, c, "provides", nil, 0.9, Provenance{})

	sg, err := s.Neighbors(ctx, a, TraversalOptions{MaxHops: 1})
	require.NoError(t, err)

	assert.Contains(t, sg.Nodes, b)
	assert.NotContains(t, sg.Nodes, c)
}

func TestNeighborsExcludesStale(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	a, _ := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})
	b, _ := s.UpsertNode(ctx, "Date", "2013-07-26", nil, Provenance{})
	edge, err := s.UpsertEdge(ctx, a, b, "launch_date", nil, 0.9, Provenance{})
	require.NoError(t, err)

	require.NoError(t, s.MarkStale(ctx, edge.UUID, "successor-uuid"))

	sg, err := s.Neighbors(ctx, a, TraversalOptions{MaxHops: 1})
	require.NoError(t, err)
	assert.Empty(t, sg.Edges)

	sg, err = s.Neighbors(ctx, a, TraversalOptions{MaxHops: 1, IncludeStale: true})
	require.NoError(t, err)
	require.Len(t, sg.Edges, 1)
	assert.True(t, sg.Edges[0].Stale)
	assert.Equal(t, "successor-uuid", sg.Edges[0].SupersededBy)
}

func TestFindByAliasRanking(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	id, _ := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})
	s.UpsertNode(ctx, "Satellite", "INSAT-3DR", nil, Provenance{})

	matches, err := s.FindByAlias(ctx, "insat-3d")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, id, matches[0].ID, "exact alias beats fuzzy")
	assert.Equal(t, 1.0, matches[0].Score)
	if len(matches) > 1 {
		assert.Less(t, matches[1].Score, 1.0)
	}
}

func TestFindByAliasDeterministicTieBreak(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	// Two nodes sharing the alias surface and with identical confidence and
	// recency must resolve in a stable order.
	a, _ := s.UpsertNode(ctx, "Satellite", "SARAL", nil, Provenance{})
	b, _ := s.UpsertNode(ctx, "Mission", "SARAL", nil, Provenance{})

	for i := 0; i < 5; i++ {
		matches, err := s.FindByAlias(ctx, "saral")
		require.NoError(t, err)
		require.Len(t, matches, 2)
		lo, hi := a, b
		if b < a {
			lo, hi = b, a
		}
		assert.Equal(t, lo, matches[0].ID)
		assert.Equal(t, hi, matches[1].ID)
	}
}

func TestMarkStaleFreesTripleKey(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	a, _ := s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})
	b, _ := s.UpsertNode(ctx, "Date", "2013-07-26", nil, Provenance{})

	old, err := s.UpsertEdge(ctx, a, b, "launch_date", nil, 0.9, Provenance{})
	require.NoError(t, err)
	require.NoError(t, s.MarkStale(ctx, old.UUID, ""))

	// Re-observing the old value creates a fresh edge rather than resurrecting
	// the stale one.
	fresh, err := s.UpsertEdge(ctx, a, b, "launch_date", nil, 0.9, Provenance{})
	require.NoError(t, err)
	assert.NotEqual(t, old.UUID, fresh.UUID)
	assert.False(t, fresh.Stale)
}

func TestNodesByType(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	s.UpsertNode(ctx, "DataProduct", "Sea Surface Temperature", nil, Provenance{})
	s.UpsertNode(ctx, "DataProduct", "Outgoing Longwave Radiation", nil, Provenance{})
	s.UpsertNode(ctx, "Satellite", "INSAT-3D", nil, Provenance{})

	nodes, err := s.NodesByType(ctx, "DataProduct", 10)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = s.NodesByType(ctx, "DataProduct", 1)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}
