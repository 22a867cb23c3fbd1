package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// PassageReranker orders fallback passages by relevance to the user's
// question. On any model failure it keeps the original order, so the
// fallback path never depends on the model being up.
type PassageReranker struct {
	LLM LLMClient
}

func NewPassageReranker(client LLMClient) *PassageReranker {
	return &PassageReranker{LLM: client}
}

func (r *PassageReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	docList := ""
	for i, d := range docs {
		content := d
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		docList += fmt.Sprintf("[%d] %s\n", i, content)
	}

	prompt := fmt.Sprintf(`You rank documentation passages from a satellite data portal by relevance.
Question: %s

Passages:
%s

Rank the passages above by relevance to the question.
Output ONLY the indices in order of relevance, separated by commas.
Example: 0, 2, 1
Do not output any other text.`, query, docList)

	resp, err := r.LLM.Generate(ctx, prompt)
	if err != nil {
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	indices := parseIndices(resp)
	// Guard against hallucinated or missing indices.
	seen := make(map[int]bool)
	var valid []int
	for _, i := range indices {
		if i >= 0 && i < len(docs) && !seen[i] {
			seen[i] = true
			valid = append(valid, i)
		}
	}
	for i := range docs {
		if !seen[i] {
			valid = append(valid, i)
		}
	}
	return valid, nil
}

func parseIndices(s string) []int {
	re := regexp.MustCompile(`\d+`)
	matches := re.FindAllString(s, -1)
	var indices []int
	for _, m := range matches {
		if i, err := strconv.Atoi(m); err == nil {
			indices = append(indices, i)
		}
	}
	return indices
}
