package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestPrepareMapsRoles(t *testing.T) {
	g := &GeminiClient{defaultModel: "gemini-2.0-flash"}

	model, contents, cfg := g.prepare(Request{
		System: "You are helpful.",
		Messages: []Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
		},
		Temperature: 0.7,
		MaxTokens:   512,
	})

	assert.Equal(t, "gemini-2.0-flash", model)
	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, string(contents[0].Role))
	assert.Equal(t, genai.RoleModel, string(contents[1].Role))
	require.NotNil(t, cfg.SystemInstruction)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.7, float64(*cfg.Temperature), 0.0001)
	assert.Equal(t, int32(512), cfg.MaxOutputTokens)
}

func TestPrepareUsesRequestedModel(t *testing.T) {
	g := &GeminiClient{defaultModel: "gemini-2.0-flash"}

	model, contents, cfg := g.prepare(Request{
		Model:    "gemini-2.5-pro",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})

	assert.Equal(t, "gemini-2.5-pro", model)
	require.Len(t, contents, 1)
	assert.Nil(t, cfg.SystemInstruction)
	assert.Nil(t, cfg.Temperature)
}
