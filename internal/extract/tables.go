package extract

import (
	"strings"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/normalize"
)

// TableCandidates is the rule-based structured path: tabular markup is
// treated as ground truth from the source page, so every triple gets the
// fixed table confidence and bypasses the relation classifier.
func (e *Extractor) TableCandidates(doc *normalize.Document, prov graph.Provenance) []Candidate {
	prov.Method = graph.MethodRule
	var candidates []Candidate
	for _, t := range doc.Tables {
		if len(t.Columns) > 0 {
			candidates = append(candidates, e.columnTableCandidates(t, prov)...)
		} else {
			candidates = append(candidates, e.keyValueCandidates(t, prov)...)
		}
	}
	return candidates
}

// columnTableCandidates handles header tables. The subject column is the
// header matching an ontology node type; the remaining columns become
// relations (when the header matches a relation trigger) or properties.
func (e *Extractor) columnTableCandidates(t normalize.Table, prov graph.Provenance) []Candidate {
	subjectCol := -1
	subjectType := ""
	for i, col := range t.Columns {
		if nt, ok := e.ont.NodeType(canonicalHeader(col)); ok {
			subjectCol = i
			subjectType = nt.Name
			break
		}
	}
	if subjectCol < 0 {
		return nil
	}

	var candidates []Candidate
	for _, row := range t.Rows {
		if subjectCol >= len(row) || strings.TrimSpace(row[subjectCol]) == "" {
			continue
		}
		subject := NodeCandidate{
			Type:       subjectType,
			Name:       strings.TrimSpace(row[subjectCol]),
			Confidence: e.cfg.TableConfidence,
			Provenance: prov,
		}
		candidates = append(candidates, Candidate{Node: &subject})
		for i, cell := range row {
			if i == subjectCol || i >= len(t.Columns) {
				continue
			}
			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			candidates = append(candidates, e.cellCandidate(subject, t.Columns[i], value, prov))
		}
	}
	return candidates
}

// keyValueCandidates handles two-column tables and definition lists whose
// subject is the enclosing page section or title.
func (e *Extractor) keyValueCandidates(t normalize.Table, prov graph.Provenance) []Candidate {
	subjectName := strings.TrimSpace(t.Subject)
	if subjectName == "" {
		return nil
	}
	subjectType, ok := e.typeOf(subjectName)
	if !ok {
		subjectType = DefaultNodeType
	}
	subject := NodeCandidate{
		Type:       subjectType,
		Name:       subjectName,
		Confidence: e.cfg.TableConfidence,
		Provenance: prov,
	}
	candidates := []Candidate{{Node: &subject}}
	for _, row := range t.Rows {
		if len(row) < 2 {
			continue
		}
		key := strings.TrimSpace(row[0])
		value := strings.TrimSpace(row[1])
		if key == "" || value == "" {
			continue
		}
		candidates = append(candidates, e.cellCandidate(subject, key, value, prov))
	}
	return candidates
}

// cellCandidate maps one (key, value) cell: a key matching a relation
// trigger yields an edge to a value node; anything else is a property.
func (e *Extractor) cellCandidate(subject NodeCandidate, key, value string, prov graph.Provenance) Candidate {
	if rel, ok := e.ont.RelationForTrigger(headerText(key)); ok {
		objType := rel.ObjectType
		if detected, found := e.typeOf(value); found {
			objType = detected
		}
		if objType == "" {
			objType = DefaultNodeType
		}
		return Candidate{Edge: &EdgeCandidate{
			Subject:    subject,
			Relation:   rel.Name,
			Object:     NodeCandidate{Type: objType, Name: value, Confidence: e.cfg.TableConfidence, Provenance: prov},
			Confidence: e.cfg.TableConfidence,
			Method:     graph.MethodRule,
			Provenance: prov,
		}}
	}

	node := subject
	node.Properties = map[string]graph.Property{
		propertyName(key): {
			Value:       value,
			Confidence:  e.cfg.TableConfidence,
			SourceRef:   prov,
			LastUpdated: prov.FetchedAt,
		},
	}
	return Candidate{Node: &node}
}

func (e *Extractor) typeOf(text string) (string, bool) {
	norm := graph.NormalizeName(text)
	for _, entry := range e.ont.Lexicon {
		if graph.NormalizeName(entry.Surface) == norm {
			return entry.Type, true
		}
	}
	return e.ont.MatchNodeType(text)
}

// canonicalHeader normalizes a column header for node type lookup:
// "launch vehicle" and "Launch_Vehicle" both become "LaunchVehicle".
func canonicalHeader(h string) string {
	fields := strings.Fields(headerText(h))
	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(strings.ToUpper(f[:1]))
		sb.WriteString(strings.ToLower(f[1:]))
	}
	return sb.String()
}

func headerText(h string) string {
	return strings.TrimSpace(strings.ToLower(strings.ReplaceAll(h, "_", " ")))
}

func propertyName(key string) string {
	return strings.ReplaceAll(headerText(key), " ", "_")
}
