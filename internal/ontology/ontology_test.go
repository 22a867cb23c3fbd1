package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOntology = `
version = "1"

[[node_type]]
name = "Satellite"
pattern = '\b(?:INSAT|SCATSAT)[A-Z0-9-]*\b'

[[node_type]]
name = "Date"
pattern = '\b\d{4}-\d{2}-\d{2}\b'

[[relation]]
name = "launch_date"
functional = true
object_type = "Date"
triggers = ["launched on", "launch date"]

[[relation]]
name = "has_spatial_resolution"
functional = true
triggers = ["spatial resolution", "resolution"]

[[lexicon]]
surface = "INSAT-3D"
type = "Satellite"

[[intent_trigger]]
phrase = "when was"
intent = "GET_RELATION"
relation = "launch_date"
`

func TestParse(t *testing.T) {
	ont, err := Parse([]byte(sampleOntology))
	require.NoError(t, err)

	assert.Equal(t, "1", ont.Version)
	assert.Len(t, ont.NodeTypes, 2)
	assert.Len(t, ont.Relations, 2)

	rel, ok := ont.Relation("launch_date")
	require.True(t, ok)
	assert.True(t, rel.Functional)
	assert.Equal(t, "Date", rel.ObjectType)

	_, ok = ont.Relation("nonexistent")
	assert.False(t, ok)
}

func TestIsFunctional(t *testing.T) {
	ont, err := Parse([]byte(sampleOntology))
	require.NoError(t, err)

	assert.True(t, ont.IsFunctional("launch_date"))
	assert.False(t, ont.IsFunctional("unknown_relation"))
}

func TestMatchNodeType(t *testing.T) {
	ont, err := Parse([]byte(sampleOntology))
	require.NoError(t, err)

	typ, ok := ont.MatchNodeType("SCATSAT-1")
	require.True(t, ok)
	assert.Equal(t, "Satellite", typ)

	typ, ok = ont.MatchNodeType("2013-07-26")
	require.True(t, ok)
	assert.Equal(t, "Date", typ)

	_, ok = ont.MatchNodeType("something else")
	assert.False(t, ok)
}

func TestRelationForTriggerLongestWins(t *testing.T) {
	ont, err := Parse([]byte(sampleOntology))
	require.NoError(t, err)

	// "spatial resolution" contains the shorter trigger "resolution" too;
	// the longer trigger must win.
	rel, ok := ont.RelationForTrigger("the spatial resolution is 1 km")
	require.True(t, ok)
	assert.Equal(t, "has_spatial_resolution", rel.Name)

	rel, ok = ont.RelationForTrigger("INSAT-3D was launched on 2013-07-26")
	require.True(t, ok)
	assert.Equal(t, "launch_date", rel.Name)

	_, ok = ont.RelationForTrigger("no trigger here")
	assert.False(t, ok)
}

func TestParseRejectsDuplicates(t *testing.T) {
	dup := `
[[relation]]
name = "produces"
[[relation]]
name = "produces"
`
	_, err := Parse([]byte(dup))
	assert.Error(t, err)
}

func TestParseRejectsBadPattern(t *testing.T) {
	bad := `
[[node_type]]
name = "Broken"
pattern = '(['
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}
