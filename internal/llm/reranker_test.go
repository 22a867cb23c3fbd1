package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	response string
	err      error
}

func (m *mockClient) Generate(ctx context.Context, prompt string) (string, error) {
	return m.response, m.err
}

func TestRankOrdersByModelOutput(t *testing.T) {
	r := NewPassageReranker(&mockClient{response: "2, 0, 1"})

	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestRankGuardsHallucinatedIndices(t *testing.T) {
	r := NewPassageReranker(&mockClient{response: "7, 1, 1, 0"})

	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	// Out-of-range and duplicate indices dropped, missing ones appended.
	assert.Equal(t, []int{1, 0, 2}, order)
}

func TestRankKeepsOrderOnModelError(t *testing.T) {
	r := NewPassageReranker(&mockClient{err: errors.New("down")})

	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRankTrivialInputs(t *testing.T) {
	r := NewPassageReranker(&mockClient{response: "0"})

	order, err := r.Rank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, order)

	order, err = r.Rank(context.Background(), "q", []string{"only"})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, order)
}
