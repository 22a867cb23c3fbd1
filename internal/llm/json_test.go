package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONHandlesMarkdownFences(t *testing.T) {
	out, err := ParseJSON[payload]("```json\n{\"name\": \"x\", \"count\": 2}\n```")
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "x", Count: 2}, out)
}

func TestParseJSONHandlesSurroundingText(t *testing.T) {
	out, err := ParseJSON[payload](`Sure, here is the result: {"name": "y", "count": 1} hope that helps`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "y", Count: 1}, out)
}

func TestParseJSONRejectsNonJSON(t *testing.T) {
	_, err := ParseJSON[payload]("no object here")
	assert.Error(t, err)
}
