package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/logger"
)

type mockLLM struct {
	response string
	err      error
	prompts  []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func sampleSubgraph() *graph.Subgraph {
	satID := graph.NewNodeID("Satellite", "INSAT-3D")
	dateID := graph.NewNodeID("Date", "2013-07-26")
	prodID := graph.NewNodeID("DataProduct", "Sea Surface Temperature")

	sg := graph.NewSubgraph()
	sg.Nodes[satID] = &graph.Node{ID: satID, Type: "Satellite", CanonicalName: "INSAT-3D"}
	sg.Nodes[dateID] = &graph.Node{ID: dateID, Type: "Date", CanonicalName: "2013-07-26"}
	sg.Nodes[prodID] = &graph.Node{ID: prodID, Type: "DataProduct", CanonicalName: "Sea Surface Temperature"}
	sg.Edges = []*graph.Edge{
		{UUID: "e1", SourceID: satID, TargetID: dateID, Relation: "launch_date", Confidence: 0.9},
		{UUID: "e2", SourceID: satID, TargetID: prodID, Relation: "produces", Confidence: 0.3},
		{UUID: "e3", SourceID: satID, TargetID: dateID, Relation: "launch_date", Confidence: 0.9, Stale: true},
	}
	return sg
}

func TestFactsFromSubgraphFiltersConfidenceAndStale(t *testing.T) {
	s := NewSynthesizer(Config{MinConfidence: 0.5}, nil, logger.NewNop())

	facts := s.FactsFromSubgraph(sampleSubgraph())

	require.Len(t, facts, 1, "low-confidence and stale edges never become facts")
	assert.Equal(t, "INSAT-3D", facts[0].Subject)
	assert.Equal(t, "launch_date", facts[0].Relation)
	assert.Equal(t, "2013-07-26", facts[0].Object)
}

func TestPropertyFactsFiltersConfidence(t *testing.T) {
	s := NewSynthesizer(Config{MinConfidence: 0.5}, nil, logger.NewNop())

	node := &graph.Node{
		CanonicalName: "INSAT-3D",
		Properties: map[string]graph.Property{
			"orbit": {Value: "Geostationary", Confidence: 0.9},
			"mass":  {Value: "2060 kg", Confidence: 0.2},
		},
	}

	facts := s.PropertyFacts(node)
	require.Len(t, facts, 1)
	assert.Equal(t, "has_orbit", facts[0].Relation)
	assert.Equal(t, "Geostationary", facts[0].Object)

	assert.Empty(t, s.PropertyFacts(nil))
}

func TestSynthesizeTemplates(t *testing.T) {
	s := NewSynthesizer(Config{MinConfidence: 0.5}, nil, logger.NewNop())

	text := s.Synthesize(context.Background(), "when was INSAT-3D launched", []Fact{
		{Subject: "INSAT-3D", Relation: "launch_date", Object: "2013-07-26", Confidence: 0.9},
	})

	assert.Equal(t, "INSAT-3D was launched on 2013-07-26.", text)
}

func TestSynthesizeGenericRelationPhrasing(t *testing.T) {
	s := NewSynthesizer(Config{}, nil, logger.NewNop())

	text := s.Synthesize(context.Background(), "q", []Fact{
		{Subject: "A", Relation: "some_new_relation", Object: "B", Confidence: 0.9},
	})

	assert.Equal(t, "A some new relation B.", text)
}

func TestSynthesizeNoFactsIsNoInfo(t *testing.T) {
	s := NewSynthesizer(Config{UseGenerative: true}, &mockLLM{response: "made up answer"}, logger.NewNop())

	text := s.Synthesize(context.Background(), "tell me about Zorblax", nil)

	assert.Equal(t, NoInfoMessage, text, "empty retrieval must never reach the model")
}

func TestSynthesizeGenerativeGetsOnlyFilteredFacts(t *testing.T) {
	mock := &mockLLM{response: "INSAT-3D was launched on 26 July 2013."}
	s := NewSynthesizer(Config{MinConfidence: 0.5, UseGenerative: true}, mock, logger.NewNop())

	facts := s.FactsFromSubgraph(sampleSubgraph())
	text := s.Synthesize(context.Background(), "when was INSAT-3D launched", facts)

	assert.Equal(t, "INSAT-3D was launched on 26 July 2013.", text)
	require.Len(t, mock.prompts, 1)
	assert.Contains(t, mock.prompts[0], "launch_date")
	assert.NotContains(t, mock.prompts[0], "Sea Surface Temperature",
		"facts below the confidence threshold must not reach the prompt")
}

func TestSynthesizeFallsBackOnModelError(t *testing.T) {
	mock := &mockLLM{err: errors.New("boom")}
	s := NewSynthesizer(Config{MinConfidence: 0.5, UseGenerative: true}, mock, logger.NewNop())

	text := s.Synthesize(context.Background(), "q", []Fact{
		{Subject: "INSAT-3D", Relation: "launch_date", Object: "2013-07-26", Confidence: 0.9},
	})

	assert.Equal(t, "INSAT-3D was launched on 2013-07-26.", text)
}

func TestListAnswer(t *testing.T) {
	assert.Equal(t, NoInfoMessage, ListAnswer("DataProduct", nil))

	one := ListAnswer("DataProduct", []string{"Sea Surface Temperature"})
	assert.Equal(t, "I know of one data product: Sea Surface Temperature.", one)

	many := ListAnswer("Satellite", []string{"SCATSAT-1", "INSAT-3D"})
	assert.Equal(t, "Here are some satellites I know about: INSAT-3D, SCATSAT-1.", many)
}

func TestFallbackAnswer(t *testing.T) {
	assert.Equal(t, NoInfoMessage, FallbackAnswer(nil))
	assert.Contains(t, FallbackAnswer([]string{"some passage"}), "some passage")
}
