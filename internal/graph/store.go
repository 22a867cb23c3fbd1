package graph

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("graph: not found")
	// ErrMissingEndpoint is returned when an edge upsert references a node
	// that has not been created yet. Endpoints are created first, always.
	ErrMissingEndpoint = errors.New("graph: edge endpoint does not exist")
	// ErrStoreUnavailable wraps transport or storage faults so callers can
	// distinguish "no information" from "could not look".
	ErrStoreUnavailable = errors.New("graph: store unavailable")
)

// Store is the knowledge graph. Mutations are atomic at single-node/edge
// granularity; a batch of extracted facts is applied fact by fact so partial
// application (one fact committed, one rejected) is observable and desired.
type Store interface {
	// UpsertNode creates the node for (nodeType, canonicalName) or merges
	// properties into it. Per property, the newer LastUpdated wins; ties go
	// to the higher confidence.
	UpsertNode(ctx context.Context, nodeType, canonicalName string, props map[string]Property, prov Provenance) (NodeID, error)

	// AddAlias attaches an alternative surface form to an existing node.
	// Alias merges are explicit: the store never silently folds two nodes.
	AddAlias(ctx context.Context, id NodeID, alias string) error

	// UpsertEdge commits a fact. If the (source, relation, target) edge
	// already exists, confidence only moves upward: an equal-or-higher
	// observation refreshes the edge, a strictly lower one is recorded as a
	// corroboration attempt and otherwise ignored.
	UpsertEdge(ctx context.Context, src, dst NodeID, relation string, props map[string]string, confidence float64, prov Provenance) (*Edge, error)

	GetNode(ctx context.Context, id NodeID) (*Node, error)

	// EdgesFrom returns active outgoing edges of a node, optionally filtered
	// by relation type. Stale edges are excluded.
	EdgesFrom(ctx context.Context, id NodeID, relation string) ([]*Edge, error)

	// Neighbors performs a bounded breadth-first traversal. The visit ceiling
	// caps total visited nodes regardless of hub density.
	Neighbors(ctx context.Context, id NodeID, opts TraversalOptions) (*Subgraph, error)

	// FindByAlias returns candidate nodes ranked by match score, then by
	// corroborated confidence, then by recency. The ordering is total, so
	// ambiguous mentions resolve deterministically.
	FindByAlias(ctx context.Context, text string) ([]AliasMatch, error)

	// NodesByType lists nodes of one ontology type, newest first.
	NodesByType(ctx context.Context, nodeType string, limit int) ([]*Node, error)

	// MarkStale retires an edge in favor of its successor. The edge is kept
	// for traceability; it never comes back from non-stale reads.
	MarkStale(ctx context.Context, edgeUUID, supersededBy string) error

	Close(ctx context.Context) error
}
