package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  hello  ", want: "hello"},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: "{\"a\":1}"},
		{name: "bare fence", in: "```\ntext\n```\n", want: "text"},
		{name: "fence mid text", in: "see ```go\nx := 1\n``` above", want: "see \nx := 1\n above"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParseStructured_FencedJSON(t *testing.T) {
	raw := "```json\n{\"response\": \"hi\", \"insight\": {\"title\": \"T\", \"description\": \"D\"}}\n```"

	ans := ParseStructured(raw, "response")

	require.True(t, ans.Structured)
	assert.Equal(t, "hi", ans.Fields["response"])
	insight, ok := ans.Fields["insight"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "T", insight["title"])
	assert.Equal(t, raw, ans.Raw)
}

func TestParseStructured_ObjectInsideProse(t *testing.T) {
	ans := ParseStructured("Sure! Here it is: {\"answer\": \"42\"} Hope that helps.", "answer")

	require.True(t, ans.Structured)
	assert.Equal(t, "42", ans.Fields["answer"])
}

func TestParseStructured_FallbackWrapsText(t *testing.T) {
	ans := ParseStructured("```\nJust some words, no JSON.\n```", "answer")

	assert.False(t, ans.Structured)
	assert.Equal(t, map[string]any{"answer": "Just some words, no JSON."}, ans.Fields)
}

func TestParseStructured_NonObjectJSONFallsBack(t *testing.T) {
	for _, raw := range []string{"null", "[1,2,3]", "\"quoted\"", "{broken"} {
		ans := ParseStructured(raw, "answer")
		assert.False(t, ans.Structured, raw)
		assert.Equal(t, raw, ans.Fields["answer"], raw)
	}
}

func TestEcho(t *testing.T) {
	got, err := Echo{}.Complete(context.Background(), Prompt{User: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	got, err = Echo{}.Complete(context.Background(), Prompt{History: []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	_, err = Echo{}.Complete(context.Background(), Prompt{System: "only system"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
