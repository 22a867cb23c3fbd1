// Package answer turns retrieved subgraphs into user-facing text. Every
// generated sentence is grounded in a stored fact; when nothing relevant
// was retrieved the synthesizer says so instead of inventing an answer.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/llm"
	"github.com/skyserve/drishti/internal/logger"
)

// NoInfoMessage is returned whenever retrieval produced an empty subgraph.
const NoInfoMessage = "I'm sorry, I couldn't find information on that. Could you please rephrase or ask about specific missions, satellites, data products, or services?"

// CantAnswerMessage is returned for queries the planner rejected.
const CantAnswerMessage = "I'm not able to answer that kind of question yet. Try asking about a specific mission, satellite, data product, or service."

// Fact is a single grounded statement extracted from the graph.
type Fact struct {
	Subject    string  `json:"subject"`
	Relation   string  `json:"relation"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type Config struct {
	MinConfidence float64
	UseGenerative bool
}

type Synthesizer struct {
	cfg    Config
	client llm.LLMClient
	log    *logger.Logger
}

func NewSynthesizer(cfg Config, client llm.LLMClient, log *logger.Logger) *Synthesizer {
	return &Synthesizer{cfg: cfg, client: client, log: log}
}

// phrasings maps relation names to sentence fragments. Relations without
// an entry fall through to a generic "subject relation object" sentence.
var phrasings = map[string]string{
	"launched_by":            "%s was launched by %s.",
	"launch_date":            "%s was launched on %s.",
	"developed_at":           "%s was developed at %s.",
	"produces":               "%s produces %s.",
	"from_satellite":         "%s is derived from the %s satellite.",
	"provides":               "%s provides %s.",
	"available_in_format":    "%s is available in %s format.",
	"applicable_for":         "%s is applicable for %s.",
	"uses_sensor":            "%s uses the %s sensor.",
	"produced_by":            "%s is produced by %s.",
	"offers_service":         "%s offers %s.",
	"has_time_resolution":    "%s has a temporal resolution of %s.",
	"has_spatial_resolution": "%s has a spatial resolution of %s.",
	"download":               "%s can be downloaded from %s.",
}

// FactsFromSubgraph flattens a retrieved subgraph into facts, filtered by
// the minimum confidence threshold. Stale edges never reach the answer.
func (s *Synthesizer) FactsFromSubgraph(sg *graph.Subgraph) []Fact {
	if sg == nil {
		return nil
	}
	var facts []Fact
	for _, e := range sg.Edges {
		if e.Stale || e.Confidence < s.cfg.MinConfidence {
			continue
		}
		src, ok := sg.Nodes[e.SourceID]
		if !ok {
			continue
		}
		dst, ok := sg.Nodes[e.TargetID]
		if !ok {
			continue
		}
		facts = append(facts, Fact{
			Subject:    src.CanonicalName,
			Relation:   e.Relation,
			Object:     dst.CanonicalName,
			Confidence: e.Confidence,
		})
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Subject != facts[j].Subject {
			return facts[i].Subject < facts[j].Subject
		}
		if facts[i].Relation != facts[j].Relation {
			return facts[i].Relation < facts[j].Relation
		}
		return facts[i].Object < facts[j].Object
	})
	return facts
}

// PropertyFacts lifts a node's committed properties into facts, filtered by
// the same confidence threshold as edges.
func (s *Synthesizer) PropertyFacts(n *graph.Node) []Fact {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	var facts []Fact
	for _, name := range names {
		p := n.Properties[name]
		if p.Confidence < s.cfg.MinConfidence {
			continue
		}
		facts = append(facts, Fact{
			Subject:    n.CanonicalName,
			Relation:   "has_" + name,
			Object:     p.Value,
			Confidence: p.Confidence,
		})
	}
	return facts
}

// Synthesize renders facts into an answer for the query. With a configured
// model it asks for a fluent summary restricted to the supplied facts and
// falls back to templates when the model call fails.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, facts []Fact) string {
	if len(facts) == 0 {
		return NoInfoMessage
	}
	if s.cfg.UseGenerative && s.client != nil {
		text, err := s.generate(ctx, query, facts)
		if err != nil {
			s.log.Warn("generative synthesis failed, using templates", "error", err)
		} else if strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return s.templateAnswer(facts)
}

func (s *Synthesizer) templateAnswer(facts []Fact) string {
	var lines []string
	for _, f := range facts {
		tmpl, ok := phrasings[f.Relation]
		if !ok {
			lines = append(lines, fmt.Sprintf("%s %s %s.", f.Subject, humanizeRelation(f.Relation), f.Object))
			continue
		}
		lines = append(lines, fmt.Sprintf(tmpl, f.Subject, f.Object))
	}
	return strings.Join(lines, " ")
}

func (s *Synthesizer) generate(ctx context.Context, query string, facts []Fact) (string, error) {
	payload, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("marshaling facts: %w", err)
	}
	prompt := fmt.Sprintf(`You are a help assistant for a satellite data portal. Answer the user's question using ONLY the facts below. Do not add information that is not present in the facts. If the facts do not answer the question, say you don't have that information. Keep the answer to a few sentences.

Question: %s

Facts (JSON):
%s`, query, string(payload))
	return s.client.Generate(ctx, prompt)
}

// ListAnswer renders an entity listing, e.g. known data products.
func ListAnswer(nodeType string, names []string) string {
	if len(names) == 0 {
		return NoInfoMessage
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	label := humanizeType(nodeType)
	if len(sorted) == 1 {
		return fmt.Sprintf("I know of one %s: %s.", label, sorted[0])
	}
	return fmt.Sprintf("Here are some %ss I know about: %s.", label, strings.Join(sorted, ", "))
}

// FallbackAnswer renders keyword-search passages when the graph had nothing.
func FallbackAnswer(passages []string) string {
	if len(passages) == 0 {
		return NoInfoMessage
	}
	return "I couldn't find a direct answer, but this might help: " + strings.Join(passages, " ")
}

func humanizeRelation(rel string) string {
	return strings.ReplaceAll(rel, "_", " ")
}

func humanizeType(t string) string {
	// Splits CamelCase type names, e.g. "DataProduct" reads "data product".
	var b strings.Builder
	for i, r := range t {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
