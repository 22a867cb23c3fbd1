package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/ontology"
)

// Mention is a span of text tagged with a candidate ontology type, possibly
// already linked to an existing node.
type Mention struct {
	Text     string
	Type     string
	Start    int
	End      int
	Resolved graph.NodeID
	Score    float64
}

// Detector finds entity mentions using the ontology lexicon and the node
// type surface patterns, then links them against stored aliases.
type Detector struct {
	ont       *ontology.Ontology
	store     graph.Store
	threshold float64
}

func NewDetector(ont *ontology.Ontology, store graph.Store, aliasThreshold float64) *Detector {
	return &Detector{ont: ont, store: store, threshold: aliasThreshold}
}

// Detect runs mention detection without linking.
func (d *Detector) Detect(text string) []Mention {
	lower := strings.ToLower(text)
	var mentions []Mention

	for _, entry := range d.ont.Lexicon {
		surface := strings.ToLower(entry.Surface)
		for idx := 0; ; {
			pos := strings.Index(lower[idx:], surface)
			if pos < 0 {
				break
			}
			start := idx + pos
			mentions = append(mentions, Mention{
				Text:  text[start : start+len(surface)],
				Type:  entry.Type,
				Start: start,
				End:   start + len(surface),
			})
			idx = start + len(surface)
		}
	}

	for i := range d.ont.NodeTypes {
		nt := &d.ont.NodeTypes[i]
		if nt.Pattern == "" {
			continue
		}
		for _, span := range d.matchPattern(nt, text) {
			mentions = append(mentions, Mention{
				Text:  text[span[0]:span[1]],
				Type:  nt.Name,
				Start: span[0],
				End:   span[1],
			})
		}
	}

	return dedupeMentions(mentions)
}

func (d *Detector) matchPattern(nt *ontology.NodeType, text string) [][]int {
	re, err := nt.Regexp()
	if err != nil || re == nil {
		return nil
	}
	return re.FindAllStringIndex(text, -1)
}

// Link resolves mentions against existing node aliases. A top match at or
// above the threshold links the mention; anything else leaves it unresolved
// as a new-node proposal.
func (d *Detector) Link(ctx context.Context, mentions []Mention) ([]Mention, error) {
	for i := range mentions {
		matches, err := d.store.FindByAlias(ctx, mentions[i].Text)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 || matches[0].Score < d.threshold {
			continue
		}
		top := matches[0]
		mentions[i].Resolved = top.ID
		mentions[i].Score = top.Score
		if mentions[i].Type == "" && top.Node != nil {
			mentions[i].Type = top.Node.Type
		}
	}
	return mentions, nil
}

// DetectLinked additionally tries alias lookups over word n-grams so
// entities that exist only in the graph (not the lexicon) are still found.
// Used by the query understander on short user text.
func (d *Detector) DetectLinked(ctx context.Context, text string) ([]Mention, error) {
	mentions := d.Detect(text)

	tokens := tokenize(text)
	for n := 4; n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			span := tokens[i : i+n]
			start := span[0].start
			end := span[n-1].end
			if covered(mentions, start, end) {
				continue
			}
			candidate := text[start:end]
			matches, err := d.store.FindByAlias(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 || matches[0].Score < d.threshold {
				continue
			}
			top := matches[0]
			m := Mention{
				Text:     candidate,
				Start:    start,
				End:      end,
				Resolved: top.ID,
				Score:    top.Score,
			}
			if top.Node != nil {
				m.Type = top.Node.Type
			}
			mentions = append(mentions, m)
		}
	}

	mentions = dedupeMentions(mentions)
	return d.Link(ctx, mentions)
}

type tokenSpan struct {
	start, end int
}

func tokenize(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range text {
		isWord := r == '-' || r == '_' || ('0' <= r && r <= '9') ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
		if isWord && start < 0 {
			start = i
		}
		if !isWord && start >= 0 {
			spans = append(spans, tokenSpan{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{start: start, end: len(text)})
	}
	return spans
}

func covered(mentions []Mention, start, end int) bool {
	for _, m := range mentions {
		if start >= m.Start && end <= m.End {
			return true
		}
	}
	return false
}

// dedupeMentions drops spans fully contained in a longer mention and exact
// duplicates, keeping a deterministic order by position then length.
func dedupeMentions(mentions []Mention) []Mention {
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Start != mentions[j].Start {
			return mentions[i].Start < mentions[j].Start
		}
		return mentions[i].End-mentions[i].Start > mentions[j].End-mentions[j].Start
	})
	var out []Mention
	for _, m := range mentions {
		contained := false
		for _, kept := range out {
			if m.Start >= kept.Start && m.End <= kept.End {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, m)
		}
	}
	return out
}
