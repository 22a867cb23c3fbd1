// Package bot runs the online question answering pipeline: understand the
// query, plan a bounded retrieval, execute it against the graph, and
// synthesize a grounded answer.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/skyserve/drishti/internal/answer"
	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/llm"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/nlu"
	"github.com/skyserve/drishti/internal/passage"
	"github.com/skyserve/drishti/internal/planner"
)

type Config struct {
	QueryTimeout  time.Duration
	FallbackLimit int
}

type Engine struct {
	und      *nlu.Understander
	planner  *planner.Planner
	store    graph.Store
	passages *passage.Store
	synth    *answer.Synthesizer
	reranker llm.RerankerClient
	log      *logger.Logger
	cfg      Config

	mu        sync.Mutex
	lastFacts []answer.Fact
}

// NewEngine wires the pipeline. passages and reranker may be nil, which
// disables the keyword fallback and reranking respectively.
func NewEngine(und *nlu.Understander, pl *planner.Planner, store graph.Store, passages *passage.Store, synth *answer.Synthesizer, reranker llm.RerankerClient, log *logger.Logger, cfg Config) *Engine {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	if cfg.FallbackLimit <= 0 {
		cfg.FallbackLimit = 3
	}
	return &Engine{
		und:      und,
		planner:  pl,
		store:    store,
		passages: passages,
		synth:    synth,
		reranker: reranker,
		log:      log,
		cfg:      cfg,
	}
}

// Answer runs one query through the pipeline. Hitting the query deadline
// degrades to the no-information answer; a backend outage is returned as an
// error so callers can report a transient failure instead of "no facts".
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	u, err := e.und.Understand(ctx, query)
	if err != nil {
		return "", err
	}

	plan, err := e.planner.Plan(u)
	if err != nil {
		if errors.Is(err, planner.ErrUnsupportedQuery) {
			return answer.CantAnswerMessage, nil
		}
		return "", err
	}

	tctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	switch plan.Kind {
	case planner.PlanSummarize:
		return e.summarize(tctx, query), nil
	case planner.PlanListType:
		return e.listEntities(tctx, plan)
	case planner.PlanFallback:
		return e.fallback(tctx, u)
	default:
		return e.traverse(tctx, query, plan)
	}
}

// storeFault reports whether a retrieval error is a backend outage that must
// surface to the caller. Hitting the query deadline is not an outage; that
// still reads as "no facts in time".
func storeFault(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, graph.ErrStoreUnavailable)
}

func (e *Engine) traverse(ctx context.Context, query string, plan *planner.Plan) (string, error) {
	merged := graph.NewSubgraph()
	seen := make(map[string]struct{})
	for _, id := range plan.Start {
		sg, err := e.store.Neighbors(ctx, id, plan.Traversal)
		if err != nil {
			if storeFault(err) {
				return "", err
			}
			// A slow store yields the no-info answer, never a fabricated one.
			e.log.Warn("graph retrieval failed", "node", string(id), "error", err)
			continue
		}
		for nid, n := range sg.Nodes {
			merged.Nodes[nid] = n
		}
		for _, edge := range sg.Edges {
			if _, dup := seen[edge.UUID]; dup {
				continue
			}
			seen[edge.UUID] = struct{}{}
			merged.Edges = append(merged.Edges, edge)
		}
	}

	// Properties of the queried entities come first, then related facts.
	var facts []answer.Fact
	if plan.Traversal.RelationFilter == "" {
		for _, id := range plan.Start {
			facts = append(facts, e.synth.PropertyFacts(merged.Nodes[id])...)
		}
	}
	facts = append(facts, e.synth.FactsFromSubgraph(merged)...)
	e.mu.Lock()
	e.lastFacts = facts
	e.mu.Unlock()

	return e.synth.Synthesize(ctx, query, facts), nil
}

func (e *Engine) summarize(ctx context.Context, query string) string {
	e.mu.Lock()
	facts := append([]answer.Fact(nil), e.lastFacts...)
	e.mu.Unlock()
	if len(facts) == 0 {
		return answer.NoInfoMessage
	}
	return e.synth.Synthesize(ctx, query, facts)
}

func (e *Engine) listEntities(ctx context.Context, plan *planner.Plan) (string, error) {
	nodes, err := e.store.NodesByType(ctx, plan.NodeType, plan.Limit)
	if err != nil {
		if storeFault(err) {
			return "", err
		}
		e.log.Warn("entity listing failed", "type", plan.NodeType, "error", err)
		return answer.NoInfoMessage, nil
	}
	var names []string
	for _, n := range nodes {
		names = append(names, n.CanonicalName)
	}
	return answer.ListAnswer(plan.NodeType, names), nil
}

func (e *Engine) fallback(ctx context.Context, u *nlu.Understanding) (string, error) {
	if e.passages == nil || len(u.Terms) == 0 {
		return answer.NoInfoMessage, nil
	}
	// Over-fetch so the reranker has candidates to choose from.
	records, err := e.passages.Search(ctx, u.Terms, e.cfg.FallbackLimit*3)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		e.log.Warn("passage search timed out", "error", err)
		return answer.NoInfoMessage, nil
	}
	var texts []string
	for _, r := range records {
		texts = append(texts, r.Content)
	}
	if e.reranker != nil && len(texts) > 1 {
		if order, err := e.reranker.Rank(ctx, u.Query, texts); err == nil {
			reordered := make([]string, 0, len(order))
			for _, i := range order {
				reordered = append(reordered, texts[i])
			}
			texts = reordered
		} else {
			e.log.Warn("passage reranking failed", "error", err)
		}
	}
	if len(texts) > e.cfg.FallbackLimit {
		texts = texts[:e.cfg.FallbackLimit]
	}
	return answer.FallbackAnswer(texts), nil
}
