package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
)

// fuzzyFloor is the minimum similarity for a fuzzy alias hit to be reported
// at all; resolution thresholds above it are the caller's policy.
const fuzzyFloor = 0.6

// MemoryStore is the in-process Store implementation. A single RWMutex guards
// the maps: reads run fully concurrent and only block for the instant a
// specific upsert holds the write lock, which is the granularity the system
// needs since every mutation touches one node or edge.
type MemoryStore struct {
	mu           sync.RWMutex
	nodes        map[NodeID]*Node
	edges        map[string]*Edge
	edgesByKey   map[string]string   // (src|rel|dst) -> edge uuid
	outgoing     map[NodeID][]string // node -> edge uuids
	incoming     map[NodeID][]string
	aliasIndex   map[string]map[NodeID]struct{} // normalized alias -> node ids
	visitCeiling int
}

func NewMemoryStore(visitCeiling int) *MemoryStore {
	if visitCeiling <= 0 {
		visitCeiling = 500
	}
	return &MemoryStore{
		nodes:        make(map[NodeID]*Node),
		edges:        make(map[string]*Edge),
		edgesByKey:   make(map[string]string),
		outgoing:     make(map[NodeID][]string),
		incoming:     make(map[NodeID][]string),
		aliasIndex:   make(map[string]map[NodeID]struct{}),
		visitCeiling: visitCeiling,
	}
}

func (s *MemoryStore) UpsertNode(ctx context.Context, nodeType, canonicalName string, props map[string]Property, prov Provenance) (NodeID, error) {
	id := NewNodeID(nodeType, canonicalName)

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		node = &Node{
			ID:            id,
			Type:          nodeType,
			CanonicalName: canonicalName,
			Properties:    make(map[string]Property),
			CreatedAt:     time.Now().UTC(),
		}
		s.nodes[id] = node
		s.indexAlias(canonicalName, id)
		node.Aliases = append(node.Aliases, canonicalName)
	}

	for name, incoming := range props {
		existing, has := node.Properties[name]
		if has && !mergeWins(incoming, existing) {
			continue
		}
		node.Properties[name] = incoming
	}
	return id, nil
}

// mergeWins implements the per-property merge policy: newer last_updated
// wins, ties broken by higher confidence.
func mergeWins(incoming, existing Property) bool {
	if incoming.LastUpdated.After(existing.LastUpdated) {
		return true
	}
	if incoming.LastUpdated.Before(existing.LastUpdated) {
		return false
	}
	return incoming.Confidence > existing.Confidence
}

func (s *MemoryStore) AddAlias(ctx context.Context, id NodeID, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if node.HasAlias(alias) {
		return nil
	}
	node.Aliases = append(node.Aliases, alias)
	s.indexAlias(alias, id)
	return nil
}

func (s *MemoryStore) indexAlias(alias string, id NodeID) {
	norm := NormalizeName(alias)
	if norm == "" {
		return
	}
	set, ok := s.aliasIndex[norm]
	if !ok {
		set = make(map[NodeID]struct{})
		s.aliasIndex[norm] = set
	}
	set[id] = struct{}{}
}

func (s *MemoryStore) UpsertEdge(ctx context.Context, src, dst NodeID, relation string, props map[string]string, confidence float64, prov Provenance) (*Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[src]; !ok {
		return nil, ErrMissingEndpoint
	}
	if _, ok := s.nodes[dst]; !ok {
		return nil, ErrMissingEndpoint
	}

	key := string(src) + "|" + relation + "|" + string(dst)
	now := time.Now().UTC()

	if edgeUUID, ok := s.edgesByKey[key]; ok {
		edge := s.edges[edgeUUID]
		if confidence >= edge.Confidence {
			edge.Confidence = confidence
			for k, v := range props {
				if edge.Properties == nil {
					edge.Properties = make(map[string]string)
				}
				edge.Properties[k] = v
			}
			edge.LastSeen = now
		}
		// Lower-confidence observations never downgrade the fact, but the
		// attempt is still part of its provenance trail.
		edge.Corroborations = append(edge.Corroborations, prov)
		return cloneEdge(edge), nil
	}

	edge := &Edge{
		UUID:       uuid.New().String(),
		SourceID:   src,
		TargetID:   dst,
		Relation:   relation,
		Confidence: confidence,
		SourceRef:  prov,
		LastSeen:   now,
	}
	if len(props) > 0 {
		edge.Properties = make(map[string]string, len(props))
		for k, v := range props {
			edge.Properties[k] = v
		}
	}
	s.edges[edge.UUID] = edge
	s.edgesByKey[key] = edge.UUID
	s.outgoing[src] = append(s.outgoing[src], edge.UUID)
	s.incoming[dst] = append(s.incoming[dst], edge.UUID)
	return cloneEdge(edge), nil
}

func (s *MemoryStore) GetNode(ctx context.Context, id NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneNode(node), nil
}

func (s *MemoryStore) EdgesFrom(ctx context.Context, id NodeID, relation string) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, ErrNotFound
	}
	var out []*Edge
	for _, edgeUUID := range s.outgoing[id] {
		edge := s.edges[edgeUUID]
		if edge.Stale {
			continue
		}
		if relation != "" && edge.Relation != relation {
			continue
		}
		out = append(out, cloneEdge(edge))
	}
	return out, nil
}

func (s *MemoryStore) Neighbors(ctx context.Context, id NodeID, opts TraversalOptions) (*Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}

	ceiling := opts.VisitCeiling
	if ceiling <= 0 {
		ceiling = s.visitCeiling
	}
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 1
	}

	sg := NewSubgraph()
	sg.Nodes[id] = cloneNode(start)

	type frontierEntry struct {
		id   NodeID
		hops int
	}
	queue := []frontierEntry{{id: id, hops: 0}}
	visited := map[NodeID]struct{}{id: {}}
	seenEdges := make(map[string]struct{})

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= maxHops {
			continue
		}

		for _, edgeUUID := range s.traversable(cur.id, opts.Direction) {
			edge := s.edges[edgeUUID]
			if edge.Stale && !opts.IncludeStale {
				continue
			}
			if opts.RelationFilter != "" && edge.Relation != opts.RelationFilter {
				continue
			}
			next := edge.TargetID
			if next == cur.id {
				next = edge.SourceID
			}
			if _, seen := visited[next]; !seen {
				if len(visited) >= ceiling {
					continue
				}
				visited[next] = struct{}{}
				sg.Nodes[next] = cloneNode(s.nodes[next])
				queue = append(queue, frontierEntry{id: next, hops: cur.hops + 1})
			}
			if _, dup := seenEdges[edge.UUID]; !dup {
				seenEdges[edge.UUID] = struct{}{}
				sg.Edges = append(sg.Edges, cloneEdge(edge))
			}
		}
	}
	return sg, nil
}

func (s *MemoryStore) traversable(id NodeID, dir Direction) []string {
	switch dir {
	case DirectionOut:
		return s.outgoing[id]
	case DirectionIn:
		return s.incoming[id]
	default:
		out := s.outgoing[id]
		in := s.incoming[id]
		both := make([]string, 0, len(out)+len(in))
		both = append(both, out...)
		both = append(both, in...)
		return both
	}
}

func (s *MemoryStore) FindByAlias(ctx context.Context, text string) ([]AliasMatch, error) {
	norm := NormalizeName(text)
	if norm == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scores := make(map[NodeID]float64)

	for id := range s.aliasIndex[norm] {
		scores[id] = 1.0
	}

	// Fuzzy pass over the alias index. The index is small relative to the
	// graph (aliases, not facts), so a linear scan holds up.
	for alias, ids := range s.aliasIndex {
		if alias == norm {
			continue
		}
		score := similarity(norm, alias)
		if score < fuzzyFloor {
			continue
		}
		for id := range ids {
			if score > scores[id] {
				scores[id] = score
			}
		}
	}

	matches := make([]AliasMatch, 0, len(scores))
	for id, score := range scores {
		node := s.nodes[id]
		matches = append(matches, AliasMatch{
			ID:          id,
			Node:        cloneNode(node),
			Score:       score,
			Confidence:  node.MaxConfidence(),
			LastUpdated: node.LastUpdated(),
		})
	}
	sortMatches(matches)
	return matches, nil
}

// sortMatches orders by score, then corroborated confidence, then recency,
// then id. The final id comparison makes resolution fully deterministic.
func sortMatches(matches []AliasMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if !matches[i].LastUpdated.Equal(matches[j].LastUpdated) {
			return matches[i].LastUpdated.After(matches[j].LastUpdated)
		}
		return matches[i].ID < matches[j].ID
	})
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

func (s *MemoryStore) NodesByType(ctx context.Context, nodeType string, limit int) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Node
	for _, node := range s.nodes {
		if node.Type == nodeType {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastUpdated(), out[j].LastUpdated()
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkStale(ctx context.Context, edgeUUID, supersededBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[edgeUUID]
	if !ok {
		return ErrNotFound
	}
	edge.Stale = true
	edge.SupersededBy = supersededBy
	// The key now belongs to the successor fact, if any, so a re-observation
	// of the old value becomes a fresh (contradicting) edge.
	if s.edgesByKey[edge.Key()] == edgeUUID {
		delete(s.edgesByKey, edge.Key())
	}
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Aliases = append([]string(nil), n.Aliases...)
	c.Properties = make(map[string]Property, len(n.Properties))
	for k, v := range n.Properties {
		c.Properties[k] = v
	}
	return &c
}

func cloneEdge(e *Edge) *Edge {
	c := *e
	if e.Properties != nil {
		c.Properties = make(map[string]string, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	c.Corroborations = append([]Provenance(nil), e.Corroborations...)
	return &c
}
