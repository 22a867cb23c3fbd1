package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type NodeID string

// ExtractionMethod records how a fact was produced; rule-based extractions
// outrank model-based ones when they collide.
type ExtractionMethod string

const (
	MethodRule  ExtractionMethod = "rule"
	MethodModel ExtractionMethod = "model"
)

// Provenance identifies where and when a fact was observed.
type Provenance struct {
	SourceURL string           `json:"source_url"`
	FetchedAt time.Time        `json:"fetched_at"`
	Method    ExtractionMethod `json:"method"`
}

// Property is a typed node attribute carrying its own provenance.
type Property struct {
	Value       string     `json:"value"`
	Confidence  float64    `json:"confidence"`
	SourceRef   Provenance `json:"source_ref"`
	LastUpdated time.Time  `json:"last_updated"`
}

type Node struct {
	ID            NodeID              `json:"id"`
	Type          string              `json:"type"`
	CanonicalName string              `json:"canonical_name"`
	Aliases       []string            `json:"aliases"`
	Properties    map[string]Property `json:"properties,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type Edge struct {
	UUID       string            `json:"uuid"`
	SourceID   NodeID            `json:"source_id"`
	TargetID   NodeID            `json:"target_id"`
	Relation   string            `json:"relation"`
	Properties map[string]string `json:"properties,omitempty"`
	Confidence float64           `json:"confidence"`
	SourceRef  Provenance        `json:"source_ref"`
	// Corroborations accumulates provenance from later observations of the
	// same fact, including attempts that did not change the edge.
	Corroborations []Provenance `json:"corroborations,omitempty"`
	LastSeen       time.Time    `json:"last_seen"`
	Stale          bool         `json:"stale"`
	SupersededBy   string       `json:"superseded_by,omitempty"`
}

// Key identifies an edge up to provenance: two observations of the same
// (source, relation, target) are the same fact.
func (e *Edge) Key() string {
	return string(e.SourceID) + "|" + e.Relation + "|" + string(e.TargetID)
}

// NewNodeID derives a stable node identity from (type, canonical name).
// Merging differently named extractions of one real-world entity is always
// an explicit alias operation, never an id collision.
func NewNodeID(nodeType, canonicalName string) NodeID {
	h := sha256.Sum256([]byte(nodeType + "\x00" + NormalizeName(canonicalName)))
	return NodeID(hex.EncodeToString(h[:16]))
}

// NormalizeName lowercases and collapses whitespace for alias comparison.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// MaxConfidence is the node-level confidence used for resolution tie-breaks:
// the highest confidence among the node's committed properties.
func (n *Node) MaxConfidence() float64 {
	max := 0.0
	for _, p := range n.Properties {
		if p.Confidence > max {
			max = p.Confidence
		}
	}
	return max
}

// LastUpdated is the newest property timestamp, falling back to CreatedAt.
func (n *Node) LastUpdated() time.Time {
	latest := n.CreatedAt
	for _, p := range n.Properties {
		if p.LastUpdated.After(latest) {
			latest = p.LastUpdated
		}
	}
	return latest
}

func (n *Node) HasAlias(alias string) bool {
	norm := NormalizeName(alias)
	for _, a := range n.Aliases {
		if NormalizeName(a) == norm {
			return true
		}
	}
	return false
}

// AliasMatch is a ranked candidate from Store.FindByAlias.
type AliasMatch struct {
	ID          NodeID
	Node        *Node
	Score       float64
	Confidence  float64
	LastUpdated time.Time
}

// Subgraph is the result of a bounded traversal.
type Subgraph struct {
	Nodes map[NodeID]*Node
	Edges []*Edge
}

func NewSubgraph() *Subgraph {
	return &Subgraph{Nodes: make(map[NodeID]*Node)}
}

func (s *Subgraph) Empty() bool {
	return s == nil || len(s.Edges) == 0 && len(s.Nodes) <= 1
}

// Direction constrains traversal to outgoing, incoming or both edge ends.
type Direction int

const (
	DirectionBoth Direction = iota
	DirectionOut
	DirectionIn
)

// TraversalOptions bounds a neighbors query. MaxHops and VisitCeiling are
// hard limits; a zero VisitCeiling means the store default applies.
type TraversalOptions struct {
	RelationFilter string
	MaxHops        int
	VisitCeiling   int
	Direction      Direction
	IncludeStale   bool
}
