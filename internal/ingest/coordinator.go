// Package ingest reconciles extraction candidates against the current graph
// state: dedup via alias resolution, per-property merge, confidence
// corroboration and the contradiction/supersede policy for functional
// relations. It owns the Graph Store's write side.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skyserve/drishti/internal/extract"
	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/normalize"
	"github.com/skyserve/drishti/internal/ontology"
	"github.com/skyserve/drishti/internal/passage"
)

type Config struct {
	AliasMatchThreshold float64
	CorroborationBonus  float64
	MaxConfidence       float64
}

// Stats summarizes one document's ingestion. Partial application is normal:
// rejected candidates do not roll back committed ones.
type Stats struct {
	URL             string
	Skipped         bool
	Passages        int
	PassagesFailed  int
	NodesUpserted   int
	EdgesUpserted   int
	EdgesSuperseded int
	Rejected        int
}

type Coordinator struct {
	store     graph.Store
	passages  *passage.Store
	extractor *extract.Extractor
	ont       *ontology.Ontology
	log       *logger.Logger
	cfg       Config
	entityMu  *keyedMutex
}

func NewCoordinator(store graph.Store, passages *passage.Store, extractor *extract.Extractor, ont *ontology.Ontology, log *logger.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		store:     store,
		passages:  passages,
		extractor: extractor,
		ont:       ont,
		log:       log,
		cfg:       cfg,
		entityMu:  newKeyedMutex(),
	}
}

// IngestDocument runs one document through normalize → extract → reconcile.
// Unchanged documents (same content hash as the prior run) are skipped
// entirely, which bounds recurring ingestion cost to the delta.
func (c *Coordinator) IngestDocument(ctx context.Context, raw normalize.RawDocument) (*Stats, error) {
	stats := &Stats{URL: raw.URL}
	doc := normalize.Normalize(raw)

	prior, err := c.passages.DocumentHash(ctx, raw.URL)
	if err != nil {
		return stats, err
	}
	if prior != "" && prior == doc.ContentHash {
		stats.Skipped = true
		c.log.Debug("document unchanged, skipping", "url", raw.URL)
		return stats, nil
	}

	prov := graph.Provenance{
		SourceURL: raw.URL,
		FetchedAt: raw.FetchedAt,
		Method:    graph.MethodRule,
	}

	candidates := c.extractor.TableCandidates(doc, prov)

	for _, p := range doc.Passages {
		stats.Passages++
		passageCands, err := c.extractor.PassageCandidates(ctx, p, prov)
		if err != nil {
			// An unparseable passage never halts the batch.
			stats.PassagesFailed++
			c.log.Warn("passage extraction failed, skipping",
				"url", raw.URL, "passage", p.Index, "error", err)
			continue
		}
		if len(passageCands) == 0 {
			c.log.Debug("passage yielded no candidates", "url", raw.URL, "passage", p.Index)
			continue
		}
		candidates = append(candidates, passageCands...)
	}

	for _, cand := range candidates {
		if err := c.applyCandidate(ctx, cand, stats); err != nil {
			if errors.Is(err, graph.ErrStoreUnavailable) {
				return stats, err
			}
			stats.Rejected++
			c.log.Warn("candidate rejected", "url", raw.URL, "error", err)
		}
	}

	if err := c.passages.ReplaceDocument(ctx, doc); err != nil {
		return stats, fmt.Errorf("storing passages for %s: %w", raw.URL, err)
	}
	return stats, nil
}

func (c *Coordinator) applyCandidate(ctx context.Context, cand extract.Candidate, stats *Stats) error {
	switch {
	case cand.Node != nil:
		_, err := c.commitNode(ctx, *cand.Node)
		if err == nil {
			stats.NodesUpserted++
		}
		return err
	case cand.Edge != nil:
		return c.commitEdge(ctx, *cand.Edge, stats)
	default:
		return fmt.Errorf("empty candidate")
	}
}

// commitNode resolves a node candidate against existing aliases. At or above
// the threshold it merges into the matched node and records the surface form
// as an explicit alias; below it, a new node is created.
func (c *Coordinator) commitNode(ctx context.Context, nc extract.NodeCandidate) (graph.NodeID, error) {
	unlock := c.entityMu.Lock(nc.Type + "|" + graph.NormalizeName(nc.Name))
	defer unlock()

	var id graph.NodeID
	err := c.withRetry(ctx, func() error {
		matches, err := c.store.FindByAlias(ctx, nc.Name)
		if err != nil {
			return err
		}
		if len(matches) > 0 && matches[0].Score >= c.cfg.AliasMatchThreshold && matches[0].Node != nil && matches[0].Node.Type == nc.Type {
			target := matches[0].Node
			id, err = c.store.UpsertNode(ctx, target.Type, target.CanonicalName, nc.Properties, nc.Provenance)
			if err != nil {
				return err
			}
			if !target.HasAlias(nc.Name) {
				return c.store.AddAlias(ctx, id, nc.Name)
			}
			return nil
		}
		id, err = c.store.UpsertNode(ctx, nc.Type, nc.Name, nc.Properties, nc.Provenance)
		return err
	})
	return id, err
}

func (c *Coordinator) commitEdge(ctx context.Context, ec extract.EdgeCandidate, stats *Stats) error {
	// Endpoints first; an edge is never stored without both nodes present.
	srcID, err := c.commitNode(ctx, ec.Subject)
	if err != nil {
		return err
	}
	stats.NodesUpserted++
	dstID, err := c.commitNode(ctx, ec.Object)
	if err != nil {
		return err
	}
	stats.NodesUpserted++

	unlock := c.entityMu.Lock("edge|" + string(srcID) + "|" + ec.Relation)
	defer unlock()

	return c.withRetry(ctx, func() error {
		existing, err := c.store.EdgesFrom(ctx, srcID, ec.Relation)
		if err != nil {
			return err
		}

		confidence := ec.Confidence
		var contradicted []*graph.Edge
		for _, e := range existing {
			if e.TargetID == dstID {
				// Same fact seen again. An independent source corroborates
				// it; confidence only ever moves upward.
				if e.SourceRef.SourceURL != ec.Provenance.SourceURL {
					bumped := maxFloat(e.Confidence, confidence) + c.cfg.CorroborationBonus
					confidence = minFloat(bumped, c.cfg.MaxConfidence)
				}
				continue
			}
			if c.ont.IsFunctional(ec.Relation) {
				contradicted = append(contradicted, e)
			}
		}

		// A single low-confidence extraction never overwrites a committed
		// high-confidence fact.
		for _, old := range contradicted {
			if confidence < old.Confidence {
				return fmt.Errorf("contradicting %s fact rejected: confidence %.2f below committed %.2f",
					ec.Relation, confidence, old.Confidence)
			}
		}

		edge, err := c.store.UpsertEdge(ctx, srcID, dstID, ec.Relation, ec.Properties, confidence, ec.Provenance)
		if err != nil {
			return err
		}
		stats.EdgesUpserted++

		for _, old := range contradicted {
			if err := c.store.MarkStale(ctx, old.UUID, edge.UUID); err != nil {
				return err
			}
			stats.EdgesSuperseded++
			c.log.Info("fact superseded",
				"relation", ec.Relation, "old_edge", old.UUID, "new_edge", edge.UUID)
		}
		return nil
	})
}

// withRetry retries transient store faults with backoff; everything else
// fails immediately.
func (c *Coordinator) withRetry(ctx context.Context, fn func() error) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, graph.ErrStoreUnavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
