package llmgateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFencedJSONBlock(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"name\": \"Ada\", \"age\": 36}\n```\nLet me know if you need more."
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"name": "Ada", "age": 36}`, string(raw))
}

func TestExtractJSONAnyFencedBlock(t *testing.T) {
	text := "```\n{\"status\": \"ok\"}\n```"
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"status": "ok"}`, string(raw))
}

func TestExtractJSONTruncatedFenceIsRepaired(t *testing.T) {
	text := "```json\n{\"items\": [1, 2, {\"nested\": true"
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"items": [1, 2, {"nested": true}]}`, string(raw))
}

func TestExtractJSONLargestBalancedObjectInProse(t *testing.T) {
	text := `The answer is {"a": 1} but actually {"a": 1, "b": {"c": 2}} is complete.`
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1, "b": {"c": 2}}`, string(raw))
}

func TestExtractJSONNoJSONReturnsFalse(t *testing.T) {
	_, ok := ExtractJSON("just a plain sentence with no braces at all")
	assert.False(t, ok)
}
