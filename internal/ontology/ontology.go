// Package ontology loads the versioned schema configuration: node types,
// relation types and the surface lexicons used for mention and intent
// detection. The schema is data, not code: extending it is a config change.
package ontology

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type NodeType struct {
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"` // optional regex for untyped mention detection

	re *regexp.Regexp
}

// Regexp returns the compiled surface pattern, compiling lazily for
// ontologies constructed in code rather than loaded from TOML.
func (nt *NodeType) Regexp() (*regexp.Regexp, error) {
	if nt.re == nil && nt.Pattern != "" {
		re, err := regexp.Compile(nt.Pattern)
		if err != nil {
			return nil, err
		}
		nt.re = re
	}
	return nt.re, nil
}

type Relation struct {
	Name string `toml:"name"`
	// Functional relations hold at most one active value per subject; a
	// contradicting observation supersedes the old edge instead of adding one.
	Functional bool     `toml:"functional"`
	ObjectType string   `toml:"object_type"`
	Triggers   []string `toml:"triggers"`
}

type LexiconEntry struct {
	Surface string `toml:"surface"`
	Type    string `toml:"type"`
}

type IntentTrigger struct {
	Phrase   string `toml:"phrase"`
	Intent   string `toml:"intent"`
	Relation string `toml:"relation"`
	NodeType string `toml:"node_type"` // listing intents scope to one type
}

type Ontology struct {
	Version        string          `toml:"version"`
	NodeTypes      []NodeType      `toml:"node_type"`
	Relations      []Relation      `toml:"relation"`
	Lexicon        []LexiconEntry  `toml:"lexicon"`
	IntentTriggers []IntentTrigger `toml:"intent_trigger"`

	relationsByName map[string]*Relation
	nodeTypesByName map[string]*NodeType
}

func Load(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology file '%s': %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Ontology, error) {
	var ont Ontology
	if err := toml.Unmarshal(data, &ont); err != nil {
		return nil, fmt.Errorf("failed to parse ontology TOML: %w", err)
	}
	if err := ont.index(); err != nil {
		return nil, err
	}
	return &ont, nil
}

func (o *Ontology) index() error {
	o.relationsByName = make(map[string]*Relation, len(o.Relations))
	for i := range o.Relations {
		r := &o.Relations[i]
		if _, dup := o.relationsByName[r.Name]; dup {
			return fmt.Errorf("duplicate relation type %q", r.Name)
		}
		o.relationsByName[r.Name] = r
	}

	o.nodeTypesByName = make(map[string]*NodeType, len(o.NodeTypes))
	for i := range o.NodeTypes {
		nt := &o.NodeTypes[i]
		if _, dup := o.nodeTypesByName[nt.Name]; dup {
			return fmt.Errorf("duplicate node type %q", nt.Name)
		}
		if nt.Pattern != "" {
			re, err := regexp.Compile(nt.Pattern)
			if err != nil {
				return fmt.Errorf("node type %q has invalid pattern: %w", nt.Name, err)
			}
			nt.re = re
		}
		o.nodeTypesByName[nt.Name] = nt
	}
	return nil
}

func (o *Ontology) Relation(name string) (*Relation, bool) {
	r, ok := o.relationsByName[name]
	return r, ok
}

func (o *Ontology) NodeType(name string) (*NodeType, bool) {
	nt, ok := o.nodeTypesByName[name]
	return nt, ok
}

// IsFunctional reports whether the given relation type is declared
// single-valued. Unknown relations are treated as non-functional.
func (o *Ontology) IsFunctional(relation string) bool {
	r, ok := o.relationsByName[relation]
	return ok && r.Functional
}

// MatchNodeType returns the first node type whose pattern matches the text.
func (o *Ontology) MatchNodeType(text string) (string, bool) {
	for i := range o.NodeTypes {
		nt := &o.NodeTypes[i]
		if nt.re != nil && nt.re.MatchString(text) {
			return nt.Name, true
		}
	}
	return "", false
}

// RelationForTrigger matches a lowercased text span against relation triggers.
// The longest matching trigger wins so "spatial resolution" is not shadowed
// by "resolution".
func (o *Ontology) RelationForTrigger(text string) (*Relation, bool) {
	lower := strings.ToLower(text)
	var best *Relation
	bestLen := 0
	for i := range o.Relations {
		r := &o.Relations[i]
		for _, t := range r.Triggers {
			if strings.Contains(lower, t) && len(t) > bestLen {
				best = r
				bestLen = len(t)
			}
		}
	}
	return best, best != nil
}
