package passage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyserve/drishti/internal/normalize"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDoc(url, hash string, texts ...string) *normalize.Document {
	doc := &normalize.Document{URL: url, ContentHash: hash, FetchedAt: time.Now()}
	for i, text := range texts {
		doc.Passages = append(doc.Passages, normalize.Passage{URL: url, Index: i, Text: text})
	}
	return doc
}

func TestDocumentHashRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hash, err := s.DocumentHash(ctx, "https://portal.example/a")
	require.NoError(t, err)
	assert.Empty(t, hash, "unseen document has no hash")

	require.NoError(t, s.ReplaceDocument(ctx, sampleDoc("https://portal.example/a", "h1", "some text")))

	hash, err = s.DocumentHash(ctx, "https://portal.example/a")
	require.NoError(t, err)
	assert.Equal(t, "h1", hash)
}

func TestReplaceDocumentSwapsPassages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceDocument(ctx, sampleDoc("u", "h1", "old passage about rainfall")))
	require.NoError(t, s.ReplaceDocument(ctx, sampleDoc("u", "h2", "new passage about cyclones")))

	recs, err := s.Search(ctx, []string{"rainfall"}, 5)
	require.NoError(t, err)
	assert.Empty(t, recs, "replaced passages must not be searchable")

	recs, err = s.Search(ctx, []string{"cyclones"}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new passage about cyclones", recs[0].Content)
}

func TestSearchRanksByDistinctTermHits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceDocument(ctx, sampleDoc("u", "h",
		"rainfall products from INSAT",
		"rainfall and cyclone monitoring products",
		"unrelated ocean salinity notes")))

	recs, err := s.Search(ctx, []string{"rainfall", "cyclone"}, 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0].Content, "cyclone", "passage hitting both terms ranks first")
}

func TestSearchIgnoresShortTerms(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceDocument(ctx, sampleDoc("u", "h", "an is of text")))

	recs, err := s.Search(ctx, []string{"an", "is", "of"}, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
