// Package planner compiles (intent, entities) into bounded traversal specs.
// It never emits an unbounded traversal: anything it cannot bound is
// rejected as unsupported instead of executed.
package planner

import (
	"errors"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/nlu"
)

var ErrUnsupportedQuery = errors.New("planner: unsupported query")

type PlanKind int

const (
	// PlanTraverse walks the graph from the resolved entities.
	PlanTraverse PlanKind = iota
	// PlanListType enumerates nodes of one ontology type.
	PlanListType
	// PlanFallback searches stored passages by keyword.
	PlanFallback
	// PlanSummarize rephrases the previously retrieved facts.
	PlanSummarize
)

type Plan struct {
	Kind      PlanKind
	Start     []graph.NodeID
	Traversal graph.TraversalOptions
	NodeType  string // PlanListType
	Limit     int
}

type Config struct {
	MaxHopsCap   int
	VisitCeiling int
	ListLimit    int
}

type Planner struct {
	cfg Config
}

func New(cfg Config) *Planner {
	if cfg.MaxHopsCap <= 0 {
		cfg.MaxHopsCap = 3
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 5
	}
	return &Planner{cfg: cfg}
}

func (p *Planner) Plan(u *nlu.Understanding) (*Plan, error) {
	if u.Fallback {
		return &Plan{Kind: PlanFallback}, nil
	}

	switch u.Intent {
	case nlu.IntentSummarize:
		return &Plan{Kind: PlanSummarize}, nil

	case nlu.IntentListEntities:
		if u.NodeType == "" {
			return nil, ErrUnsupportedQuery
		}
		return &Plan{Kind: PlanListType, NodeType: u.NodeType, Limit: p.cfg.ListLimit}, nil

	case nlu.IntentEntityDetails, nlu.IntentListRelated:
		return p.traversal(u, "", 1)

	case nlu.IntentRelation:
		// The relation filter is fixed to the relation implied by the query.
		return p.traversal(u, u.Relation, 1)

	case nlu.IntentCompare:
		if len(u.Resolved()) < 2 {
			return nil, ErrUnsupportedQuery
		}
		// Comparison needs shared context, hence multi-hop. Still capped.
		return p.traversal(u, "", 3)

	default:
		return nil, ErrUnsupportedQuery
	}
}

func (p *Planner) traversal(u *nlu.Understanding, relation string, hops int) (*Plan, error) {
	resolved := u.Resolved()
	if len(resolved) == 0 {
		return nil, ErrUnsupportedQuery
	}
	if hops > p.cfg.MaxHopsCap {
		hops = p.cfg.MaxHopsCap
	}
	var start []graph.NodeID
	for _, r := range resolved {
		start = append(start, r.NodeID)
	}
	return &Plan{
		Kind:  PlanTraverse,
		Start: start,
		Traversal: graph.TraversalOptions{
			RelationFilter: relation,
			MaxHops:        hops,
			VisitCeiling:   p.cfg.VisitCeiling,
			Direction:      graph.DirectionBoth,
		},
	}, nil
}
