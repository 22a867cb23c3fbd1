package extract

import (
	"github.com/skyserve/drishti/internal/graph"
)

// NodeCandidate proposes a node. It exists only inside the ingestion
// working set until the coordinator commits it.
type NodeCandidate struct {
	Type       string
	Name       string
	Properties map[string]graph.Property
	Confidence float64
	Provenance graph.Provenance
}

// EdgeCandidate proposes a fact. Subject and Object are embedded node
// candidates so the coordinator can create endpoints first.
type EdgeCandidate struct {
	Subject    NodeCandidate
	Relation   string
	Object     NodeCandidate
	Properties map[string]string
	Confidence float64
	Method     graph.ExtractionMethod
	Provenance graph.Provenance
}

// Candidate is a tagged union: exactly one of Node or Edge is set.
type Candidate struct {
	Node *NodeCandidate
	Edge *EdgeCandidate
}

// tripleKey identifies an edge candidate up to provenance, for rule-vs-model
// tie-breaking.
func (e *EdgeCandidate) tripleKey() string {
	return graph.NormalizeName(e.Subject.Name) + "|" + e.Relation + "|" + graph.NormalizeName(e.Object.Name)
}
