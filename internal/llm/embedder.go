package llm

import (
	"context"
	"math"
	"sort"
)

// EmbeddingReranker orders fallback passages by cosine similarity between
// the question embedding and each passage embedding. Compared to the prompt
// based reranker it cannot hallucinate indices, so it is preferred whenever
// the provider exposes an embedding endpoint.
type EmbeddingReranker struct {
	Embedder EmbedderClient
}

func NewEmbeddingReranker(embedder EmbedderClient) *EmbeddingReranker {
	return &EmbeddingReranker{Embedder: embedder}
}

func (r *EmbeddingReranker) Rank(ctx context.Context, query string, docs []string) ([]int, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) == 1 {
		return []int{0}, nil
	}

	qv, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return identityOrder(len(docs)), err
	}

	scores := make([]float64, len(docs))
	for i, d := range docs {
		dv, err := r.Embedder.Embed(ctx, d)
		if err != nil {
			return identityOrder(len(docs)), err
		}
		scores[i] = cosineSimilarity(qv, dv)
	}

	order := identityOrder(len(docs))
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order, nil
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
