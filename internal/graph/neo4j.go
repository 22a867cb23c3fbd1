package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// MemgraphStore backs the knowledge graph with a Memgraph (or Neo4j)
// instance over the bolt protocol. Properties live as HAS_PROPERTY satellite
// nodes so each carries its own provenance and merge timestamp.
type MemgraphStore struct {
	driver       neo4j.DriverWithContext
	visitCeiling int
}

func NewMemgraphStore(ctx context.Context, uri, username, password string, visitCeiling int) (*MemgraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if visitCeiling <= 0 {
		visitCeiling = 500
	}
	return &MemgraphStore{driver: driver, visitCeiling: visitCeiling}, nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *MemgraphStore) run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

// BuildIndices sets up the label/property indices. Failures are tolerated
// since the indices may already exist.
func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Entity(id);",
		"CREATE INDEX ON :Entity(type);",
		"CREATE INDEX ON :Property(name);",
	}
	for _, q := range queries {
		if _, err := s.run(ctx, q, nil); err != nil {
			continue
		}
	}
	return nil
}

func (s *MemgraphStore) UpsertNode(ctx context.Context, nodeType, canonicalName string, props map[string]Property, prov Provenance) (NodeID, error) {
	id := NewNodeID(nodeType, canonicalName)
	params := map[string]interface{}{
		"id":             string(id),
		"type":           nodeType,
		"canonical_name": canonicalName,
		"created_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.run(ctx, saveNodeQuery, params); err != nil {
		return "", err
	}

	for name, p := range props {
		propParams := map[string]interface{}{
			"id":           string(id),
			"name":         name,
			"value":        p.Value,
			"confidence":   p.Confidence,
			"source_url":   p.SourceRef.SourceURL,
			"method":       string(p.SourceRef.Method),
			"last_updated": p.LastUpdated.UTC().Format(time.RFC3339Nano),
		}
		if _, err := s.run(ctx, setNodePropertyQuery, propParams); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (s *MemgraphStore) AddAlias(ctx context.Context, id NodeID, alias string) error {
	res, err := s.run(ctx, nodeExistsQuery, map[string]interface{}{"id": string(id)})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return ErrNotFound
	}
	_, err = s.run(ctx, addAliasQuery, map[string]interface{}{"id": string(id), "alias": alias})
	return err
}

func (s *MemgraphStore) UpsertEdge(ctx context.Context, src, dst NodeID, relation string, props map[string]string, confidence float64, prov Provenance) (*Edge, error) {
	for _, id := range []NodeID{src, dst} {
		res, err := s.run(ctx, nodeExistsQuery, map[string]interface{}{"id": string(id)})
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			return nil, ErrMissingEndpoint
		}
	}

	now := time.Now().UTC()
	propsJSON := encodeProps(props)

	existing, err := s.run(ctx, getActiveEdgeQuery, map[string]interface{}{
		"source_id": string(src),
		"target_id": string(dst),
		"relation":  relation,
	})
	if err != nil {
		return nil, err
	}

	edge := &Edge{
		SourceID:   src,
		TargetID:   dst,
		Relation:   relation,
		Properties: props,
		SourceRef:  prov,
		LastSeen:   now,
	}

	if len(existing.Records) > 0 {
		rec := existing.Records[0]
		edge.UUID = recString(rec, "uuid")
		edge.Confidence = recFloat(rec, "confidence")
		if confidence >= edge.Confidence {
			edge.Confidence = confidence
			if _, err := s.run(ctx, refreshEdgeQuery, map[string]interface{}{
				"uuid":       edge.UUID,
				"confidence": confidence,
				"properties": propsJSON,
				"last_seen":  now.Format(time.RFC3339Nano),
			}); err != nil {
				return nil, err
			}
		}
		_, err = s.run(ctx, recordCorroborationQuery, map[string]interface{}{
			"uuid":  edge.UUID,
			"entry": encodeProvenance(prov),
		})
		return edge, err
	}

	edge.UUID = uuid.New().String()
	edge.Confidence = confidence
	_, err = s.run(ctx, saveEdgeQuery, map[string]interface{}{
		"uuid":       edge.UUID,
		"source_id":  string(src),
		"target_id":  string(dst),
		"relation":   relation,
		"confidence": confidence,
		"properties": propsJSON,
		"source_url": prov.SourceURL,
		"method":     string(prov.Method),
		"fetched_at": prov.FetchedAt.UTC().Format(time.RFC3339Nano),
		"last_seen":  now.Format(time.RFC3339Nano),
	})
	return edge, err
}

func (s *MemgraphStore) GetNode(ctx context.Context, id NodeID) (*Node, error) {
	res, err := s.run(ctx, getNodeQuery, map[string]interface{}{"id": string(id)})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return nodeFromRecord(res.Records[0]), nil
}

func (s *MemgraphStore) EdgesFrom(ctx context.Context, id NodeID, relation string) ([]*Edge, error) {
	res, err := s.run(ctx, edgesFromQuery, map[string]interface{}{
		"id":       string(id),
		"relation": relation,
	})
	if err != nil {
		return nil, err
	}
	edges := make([]*Edge, 0, len(res.Records))
	for _, rec := range res.Records {
		edges = append(edges, edgeFromRecord(rec))
	}
	return edges, nil
}

func (s *MemgraphStore) Neighbors(ctx context.Context, id NodeID, opts TraversalOptions) (*Subgraph, error) {
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 1
	}
	ceiling := opts.VisitCeiling
	if ceiling <= 0 {
		ceiling = s.visitCeiling
	}

	start, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(neighborsQueryFmt, maxHops)
	res, err := s.run(ctx, query, map[string]interface{}{
		"id":            string(id),
		"relation":      opts.RelationFilter,
		"ceiling":       int64(ceiling),
		"include_stale": opts.IncludeStale,
	})
	if err != nil {
		return nil, err
	}

	sg := NewSubgraph()
	sg.Nodes[id] = start
	seenEdges := make(map[string]struct{})
	for _, rec := range res.Records {
		nodeID := NodeID(recString(rec, "node_id"))
		if _, ok := sg.Nodes[nodeID]; !ok {
			sg.Nodes[nodeID] = &Node{
				ID:            nodeID,
				Type:          recString(rec, "node_type"),
				CanonicalName: recString(rec, "node_name"),
				Aliases:       recStrings(rec, "node_aliases"),
			}
		}
		edge := edgeFromRecord(rec)
		if _, dup := seenEdges[edge.UUID]; !dup {
			seenEdges[edge.UUID] = struct{}{}
			sg.Edges = append(sg.Edges, edge)
		}
	}
	return sg, nil
}

func (s *MemgraphStore) FindByAlias(ctx context.Context, text string) ([]AliasMatch, error) {
	norm := NormalizeName(text)
	if norm == "" {
		return nil, nil
	}
	res, err := s.run(ctx, findByAliasQuery, map[string]interface{}{"alias": norm})
	if err != nil {
		return nil, err
	}
	matches := make([]AliasMatch, 0, len(res.Records))
	for _, rec := range res.Records {
		node := &Node{
			ID:            NodeID(recString(rec, "id")),
			Type:          recString(rec, "type"),
			CanonicalName: recString(rec, "canonical_name"),
			Aliases:       recStrings(rec, "aliases"),
		}
		matches = append(matches, AliasMatch{
			ID:          node.ID,
			Node:        node,
			Score:       recFloat(rec, "score"),
			Confidence:  recFloat(rec, "confidence"),
			LastUpdated: recTime(rec, "last_updated"),
		})
	}
	return matches, nil
}

func (s *MemgraphStore) NodesByType(ctx context.Context, nodeType string, limit int) ([]*Node, error) {
	if limit <= 0 {
		limit = 25
	}
	res, err := s.run(ctx, nodesByTypeQuery, map[string]interface{}{
		"type":  nodeType,
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(res.Records))
	for _, rec := range res.Records {
		nodes = append(nodes, &Node{
			ID:            NodeID(recString(rec, "id")),
			Type:          recString(rec, "type"),
			CanonicalName: recString(rec, "canonical_name"),
			Aliases:       recStrings(rec, "aliases"),
			CreatedAt:     recTime(rec, "created_at"),
		})
	}
	return nodes, nil
}

func (s *MemgraphStore) MarkStale(ctx context.Context, edgeUUID, supersededBy string) error {
	res, err := s.run(ctx, markStaleQuery, map[string]interface{}{
		"uuid":          edgeUUID,
		"superseded_by": supersededBy,
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeProps(props map[string]string) string {
	if len(props) == 0 {
		return "{}"
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeProps(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var props map[string]string
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil
	}
	return props
}

func encodeProvenance(p Provenance) string {
	data, _ := json.Marshal(p)
	return string(data)
}

func nodeFromRecord(rec *neo4j.Record) *Node {
	node := &Node{
		ID:            NodeID(recString(rec, "id")),
		Type:          recString(rec, "type"),
		CanonicalName: recString(rec, "canonical_name"),
		Aliases:       recStrings(rec, "aliases"),
		CreatedAt:     recTime(rec, "created_at"),
		Properties:    make(map[string]Property),
	}
	raw, _ := rec.Get("props")
	entries, _ := raw.([]interface{})
	for _, e := range entries {
		m, ok := e.(map[string]interface{})
		if !ok || m["name"] == nil {
			continue
		}
		name, _ := m["name"].(string)
		value, _ := m["value"].(string)
		conf, _ := m["confidence"].(float64)
		srcURL, _ := m["source_url"].(string)
		method, _ := m["method"].(string)
		updated, _ := m["last_updated"].(string)
		ts, _ := time.Parse(time.RFC3339Nano, updated)
		node.Properties[name] = Property{
			Value:       value,
			Confidence:  conf,
			SourceRef:   Provenance{SourceURL: srcURL, Method: ExtractionMethod(method)},
			LastUpdated: ts,
		}
	}
	return node
}

func edgeFromRecord(rec *neo4j.Record) *Edge {
	return &Edge{
		UUID:       recString(rec, "uuid"),
		SourceID:   NodeID(recString(rec, "source_id")),
		TargetID:   NodeID(recString(rec, "target_id")),
		Relation:   recString(rec, "relation"),
		Confidence: recFloat(rec, "confidence"),
		Properties: decodeProps(recString(rec, "properties")),
		LastSeen:   recTime(rec, "last_seen"),
		// Absent columns read as zero values, so queries that filter stale
		// edges out need not return these.
		Stale:        recBool(rec, "stale"),
		SupersededBy: recString(rec, "superseded_by"),
	}
}

func recBool(rec *neo4j.Record, key string) bool {
	v, _ := rec.Get(key)
	b, _ := v.(bool)
	return b
}

func recString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func recFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func recStrings(rec *neo4j.Record, key string) []string {
	v, _ := rec.Get(key)
	raw, _ := v.([]interface{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func recTime(rec *neo4j.Record, key string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, recString(rec, key))
	if err != nil {
		return time.Time{}
	}
	return ts
}
