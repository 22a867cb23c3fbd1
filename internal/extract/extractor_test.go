package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyserve/drishti/internal/graph"
	"github.com/skyserve/drishti/internal/logger"
	"github.com/skyserve/drishti/internal/normalize"
)

func TestPassageCandidatesRuleExtraction(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	p := normalize.Passage{
		URL:  "u",
		Text: "SCATSAT-1 was launched on 2016-09-26. It is operational.",
	}
	candidates, err := e.PassageCandidates(ctx, p, graph.Provenance{SourceURL: "u"})
	require.NoError(t, err)

	var edge *EdgeCandidate
	for _, c := range candidates {
		if c.Edge != nil {
			edge = c.Edge
		}
	}
	require.NotNil(t, edge)
	assert.Equal(t, "launch_date", edge.Relation)
	assert.Equal(t, "SCATSAT-1", edge.Subject.Name)
	assert.Equal(t, "2016-09-26", edge.Object.Name)
	assert.Equal(t, graph.MethodRule, edge.Method)
	assert.Equal(t, 0.75, edge.Confidence)
}

func TestPassageCandidatesUnresolvedMentionsBecomeNodes(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	p := normalize.Passage{URL: "u", Text: "OCEANSAT-2 carries an Imager."}
	candidates, err := e.PassageCandidates(ctx, p, graph.Provenance{})
	require.NoError(t, err)

	names := make(map[string]string)
	for _, c := range candidates {
		if c.Node != nil {
			names[c.Node.Name] = c.Node.Type
		}
	}
	assert.Equal(t, "Satellite", names["OCEANSAT-2"])
	assert.Equal(t, "Sensor", names["Imager"])
}

func TestPassageCandidatesObjectTypeConstraint(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	// "launched aboard" triggers launched_by whose object must be a
	// LaunchVehicle; a Date object must not produce that edge.
	p := normalize.Passage{URL: "u", Text: "SCATSAT-1 was launched aboard on 2016-09-26."}
	candidates, err := e.PassageCandidates(ctx, p, graph.Provenance{})
	require.NoError(t, err)

	for _, c := range candidates {
		if c.Edge != nil {
			assert.NotEqual(t, "launched_by", c.Edge.Relation)
		}
	}
}

func TestModelExtractionSupplementsRules(t *testing.T) {
	mock := &MockLLMClient{Response: `{
		"extracted_relations": [
			{"subject": "INSAT-3D", "relation": "produces", "object": "Sea Surface Temperature", "confidence": 0.8}
		]
	}`}
	e := NewExtractor(testOnt(t), graph.NewMemoryStore(0), mock, logger.NewNop(), Config{
		AliasMatchThreshold: 0.82,
		RuleConfidence:      0.75,
		TableConfidence:     0.9,
		UseModelExtraction:  true,
	})

	p := normalize.Passage{URL: "u", Text: "INSAT-3D supplies Sea Surface Temperature to forecasters."}
	candidates, err := e.PassageCandidates(context.Background(), p, graph.Provenance{})
	require.NoError(t, err)

	var edge *EdgeCandidate
	for _, c := range candidates {
		if c.Edge != nil {
			edge = c.Edge
		}
	}
	require.NotNil(t, edge, "model pass must extract what no rule matched")
	assert.Equal(t, "produces", edge.Relation)
	assert.Equal(t, graph.MethodModel, edge.Method)
	assert.Equal(t, 0.8, edge.Confidence)
}

func TestRuleBeatsModelForSameTriple(t *testing.T) {
	// The model reports the same triple with a different confidence; the
	// rule-based candidate must win.
	mock := &MockLLMClient{Response: `{
		"extracted_relations": [
			{"subject": "INSAT-3D", "relation": "produces", "object": "Sea Surface Temperature", "confidence": 0.99}
		]
	}`}
	e := NewExtractor(testOnt(t), graph.NewMemoryStore(0), mock, logger.NewNop(), Config{
		AliasMatchThreshold: 0.82,
		RuleConfidence:      0.75,
		TableConfidence:     0.9,
		UseModelExtraction:  true,
	})

	p := normalize.Passage{URL: "u", Text: "INSAT-3D produces Sea Surface Temperature."}
	candidates, err := e.PassageCandidates(context.Background(), p, graph.Provenance{})
	require.NoError(t, err)

	var edge *EdgeCandidate
	for _, c := range candidates {
		if c.Edge != nil {
			require.Nil(t, edge, "one candidate per triple")
			edge = c.Edge
		}
	}
	require.NotNil(t, edge)
	assert.Equal(t, graph.MethodRule, edge.Method)
	assert.Equal(t, 0.75, edge.Confidence)
}

func TestModelFailureKeepsRuleCandidates(t *testing.T) {
	mock := &MockLLMClient{Response: "not json at all"}
	e := NewExtractor(testOnt(t), graph.NewMemoryStore(0), mock, logger.NewNop(), Config{
		AliasMatchThreshold: 0.82,
		RuleConfidence:      0.75,
		TableConfidence:     0.9,
		UseModelExtraction:  true,
	})

	p := normalize.Passage{URL: "u", Text: "SCATSAT-1 was launched on 2016-09-26."}
	candidates, err := e.PassageCandidates(context.Background(), p, graph.Provenance{})
	require.NoError(t, err, "a failing model pass must not fail the passage")

	var found bool
	for _, c := range candidates {
		if c.Edge != nil && c.Edge.Relation == "launch_date" {
			found = true
		}
	}
	assert.True(t, found)
}
