// Package extract turns normalized passages and tables into extraction
// candidates: node and edge proposals with confidence and provenance.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/llm"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/normalize"
	"github.com/skyserve/drishti/internal/ontology"
)

// DefaultNodeType is assigned when nothing in the ontology types a subject.
const DefaultNodeType = "Topic"

type Config struct {
	AliasMatchThreshold float64
	RuleConfidence      float64
	TableConfidence     float64
	UseModelExtraction  bool
}

type Extractor struct {
	ont      *ontology.Ontology
	detector *Detector
	llm      llm.LLMClient
	log      *logger.Logger
	cfg      Config
}

func NewExtractor(ont *ontology.Ontology, store graph.Store, llmClient llm.LLMClient, log *logger.Logger, cfg Config) *Extractor {
	return &Extractor{
		ont:      ont,
		detector: NewDetector(ont, store, cfg.AliasMatchThreshold),
		llm:      llmClient,
		log:      log,
		cfg:      cfg,
	}
}

func (e *Extractor) Detector() *Detector {
	return e.detector
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]?`)

// PassageCandidates runs the per-passage pipeline: mention detection, entity
// linking, then relation extraction over co-occurring pairs. A passage that
// yields nothing is not an error.
func (e *Extractor) PassageCandidates(ctx context.Context, p normalize.Passage, prov graph.Provenance) ([]Candidate, error) {
	mentions := e.detector.Detect(p.Text)
	mentions, err := e.detector.Link(ctx, mentions)
	if err != nil {
		return nil, fmt.Errorf("linking mentions: %w", err)
	}

	byTriple := make(map[string]*EdgeCandidate)
	var candidates []Candidate

	for _, m := range mentions {
		if m.Resolved != "" {
			continue
		}
		nodeType := m.Type
		if nodeType == "" {
			nodeType = DefaultNodeType
		}
		candidates = append(candidates, Candidate{Node: &NodeCandidate{
			Type:       nodeType,
			Name:       m.Text,
			Confidence: e.cfg.RuleConfidence,
			Provenance: prov,
		}})
	}

	// Rule-based relation extraction over pairs co-occurring in a sentence.
	for _, loc := range sentenceRe.FindAllStringIndex(p.Text, -1) {
		sentence := p.Text[loc[0]:loc[1]]
		rel, ok := e.ont.RelationForTrigger(sentence)
		if !ok {
			continue
		}
		inSentence := mentionsWithin(mentions, loc[0], loc[1])
		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				subj, obj := inSentence[i], inSentence[j]
				if !objectTypeAllowed(rel, obj.Type) {
					continue
				}
				ec := e.edgeCandidate(subj, rel, obj, graph.MethodRule, e.cfg.RuleConfidence, prov)
				byTriple[ec.tripleKey()] = ec
			}
		}
	}

	// Model-based pass; rule-based candidates win ties for the same triple.
	if e.cfg.UseModelExtraction && e.llm != nil {
		modelEdges, err := e.modelCandidates(ctx, p, mentions, prov)
		if err != nil {
			e.log.Warn("model extraction failed, keeping rule-based candidates",
				"url", p.URL, "passage", p.Index, "error", err)
		}
		for _, ec := range modelEdges {
			if _, ruled := byTriple[ec.tripleKey()]; !ruled {
				byTriple[ec.tripleKey()] = ec
			}
		}
	}

	for _, ec := range byTriple {
		candidates = append(candidates, Candidate{Edge: ec})
	}
	return candidates, nil
}

func (e *Extractor) edgeCandidate(subj Mention, rel *ontology.Relation, obj Mention, method graph.ExtractionMethod, confidence float64, prov graph.Provenance) *EdgeCandidate {
	subjType := subj.Type
	if subjType == "" {
		subjType = DefaultNodeType
	}
	objType := obj.Type
	if objType == "" {
		objType = rel.ObjectType
	}
	if objType == "" {
		objType = DefaultNodeType
	}
	return &EdgeCandidate{
		Subject:    NodeCandidate{Type: subjType, Name: subj.Text, Confidence: confidence, Provenance: prov},
		Relation:   rel.Name,
		Object:     NodeCandidate{Type: objType, Name: obj.Text, Confidence: confidence, Provenance: prov},
		Confidence: confidence,
		Method:     method,
		Provenance: prov,
	}
}

func objectTypeAllowed(rel *ontology.Relation, objType string) bool {
	return rel.ObjectType == "" || objType == "" || rel.ObjectType == objType
}

func mentionsWithin(mentions []Mention, start, end int) []Mention {
	var out []Mention
	for _, m := range mentions {
		if m.Start >= start && m.End <= end {
			out = append(out, m)
		}
	}
	return out
}

type modelRelation struct {
	Subject    string  `json:"subject"`
	Relation   string  `json:"relation"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type modelRelations struct {
	ExtractedRelations []modelRelation `json:"extracted_relations"`
}

func (e *Extractor) modelCandidates(ctx context.Context, p normalize.Passage, mentions []Mention, prov graph.Provenance) ([]*EdgeCandidate, error) {
	if len(mentions) < 2 {
		return nil, nil
	}

	var entityList, relationList strings.Builder
	for _, m := range mentions {
		fmt.Fprintf(&entityList, "- %s (%s)\n", m.Text, m.Type)
	}
	for _, r := range e.ont.Relations {
		fmt.Fprintf(&relationList, "- %s\n", r.Name)
	}

	prompt := fmt.Sprintf(`Extract relations between the listed entities from the passage.
Use ONLY relation types from the allowed list. Skip pairs with no stated relation.

<PASSAGE>
%s
</PASSAGE>

<ENTITIES>
%s</ENTITIES>

<ALLOWED RELATIONS>
%s</ALLOWED RELATIONS>

Return a JSON object:
{"extracted_relations": [{"subject": "...", "relation": "...", "object": "...", "confidence": 0.8}]}`,
		p.Text, entityList.String(), relationList.String())

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate relations: %w", err)
	}
	result, err := llm.ParseJSON[modelRelations](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relations: %w", err)
	}

	byName := make(map[string]Mention, len(mentions))
	for _, m := range mentions {
		byName[graph.NormalizeName(m.Text)] = m
	}

	var out []*EdgeCandidate
	for _, mr := range result.ExtractedRelations {
		rel, ok := e.ont.Relation(mr.Relation)
		if !ok {
			continue
		}
		subj, okS := byName[graph.NormalizeName(mr.Subject)]
		obj, okO := byName[graph.NormalizeName(mr.Object)]
		if !okS || !okO {
			continue
		}
		conf := mr.Confidence
		if conf <= 0 || conf > 1 {
			conf = e.cfg.RuleConfidence
		}
		out = append(out, e.edgeCandidate(subj, rel, obj, graph.MethodModel, conf, prov))
	}
	return out, nil
}
