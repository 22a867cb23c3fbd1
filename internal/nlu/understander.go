// Package nlu parses user questions into an intent plus recognized and
// linked entities. It never fails a request outright: an unresolvable
// question degrades to the fallback path instead.
package nlu

import (
	"context"
	"strings"

	"github.com/skyserve/drishti/internal/extract"
	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/ontology"
)

type Intent string

const (
	IntentEntityDetails Intent = "GET_ENTITY_DETAILS"
	IntentRelation      Intent = "GET_RELATION"
	IntentListRelated   Intent = "LIST_RELATED"
	IntentListEntities  Intent = "LIST_ENTITIES"
	IntentCompare       Intent = "COMPARE"
	IntentSummarize     Intent = "SUMMARIZE"
	IntentUnknown       Intent = "UNKNOWN"
)

// Resolution is one recognized mention. NodeID is empty when the mention
// could not be linked to a stored entity.
type Resolution struct {
	Mention string
	NodeID  graph.NodeID
	Type    string
	Score   float64
}

type Understanding struct {
	Query    string
	Intent   Intent
	Relation string // set for GET_RELATION
	NodeType string // set for LIST_ENTITIES
	Entities []Resolution
	// Fallback is set when the intent needs an entity and none resolved;
	// the planner then routes to keyword search over stored passages.
	Fallback bool
	Terms    []string
}

// Resolved returns the linked entities, in detection order.
func (u *Understanding) Resolved() []Resolution {
	var out []Resolution
	for _, e := range u.Entities {
		if e.NodeID != "" {
			out = append(out, e)
		}
	}
	return out
}

type Understander struct {
	ont      *ontology.Ontology
	detector *extract.Detector
	log      *logger.Logger
}

func NewUnderstander(ont *ontology.Ontology, detector *extract.Detector, log *logger.Logger) *Understander {
	return &Understander{ont: ont, detector: detector, log: log}
}

func (u *Understander) Understand(ctx context.Context, text string) (*Understanding, error) {
	out := &Understanding{
		Query:  text,
		Intent: IntentUnknown,
		Terms:  contentTerms(text),
	}

	u.classifyIntent(text, out)

	mentions, err := u.detector.DetectLinked(ctx, text)
	if err != nil {
		return nil, err
	}
	for _, m := range mentions {
		out.Entities = append(out.Entities, Resolution{
			Mention: m.Text,
			NodeID:  m.Resolved,
			Type:    m.Type,
			Score:   m.Score,
		})
	}

	// A recognized portal entity with no explicit question shape means the
	// user wants details about it.
	if out.Intent == IntentUnknown && len(out.Resolved()) > 0 {
		out.Intent = IntentEntityDetails
	}

	switch out.Intent {
	case IntentEntityDetails, IntentRelation, IntentListRelated, IntentCompare:
		out.Fallback = len(out.Resolved()) == 0
	case IntentUnknown:
		out.Fallback = true
	}

	u.log.Debug("understood query",
		"intent", string(out.Intent), "relation", out.Relation,
		"entities", len(out.Entities), "fallback", out.Fallback)
	return out, nil
}

// classifyIntent matches the configured trigger phrases; the longest match
// wins. GET_RELATION triggers carry the relation they imply.
func (u *Understander) classifyIntent(text string, out *Understanding) {
	lower := strings.ToLower(text)
	bestLen := 0
	for _, t := range u.ont.IntentTriggers {
		phrase := strings.ToLower(t.Phrase)
		if !strings.Contains(lower, phrase) || len(phrase) <= bestLen {
			continue
		}
		bestLen = len(phrase)
		out.Intent = Intent(t.Intent)
		out.Relation = t.Relation
		out.NodeType = t.NodeType
	}

	// A relation trigger in the question narrows GET_ENTITY_DETAILS to the
	// specific relation even without an intent phrase.
	if out.Intent == IntentUnknown || (out.Intent == IntentEntityDetails && out.Relation == "") {
		if rel, ok := u.ont.RelationForTrigger(lower); ok {
			out.Intent = IntentRelation
			out.Relation = rel.Name
		}
	}
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "how": {},
	"of": {}, "for": {}, "to": {}, "in": {}, "on": {}, "about": {}, "me": {},
	"tell": {}, "give": {}, "show": {}, "do": {}, "does": {}, "can": {},
	"you": {}, "i": {}, "it": {}, "its": {}, "and": {}, "or": {}, "data": {},
}

func contentTerms(text string) []string {
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r == '-' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z'))
	}) {
		if _, stop := stopwords[f]; stop || len(f) < 3 {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
