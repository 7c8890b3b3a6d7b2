package openrouter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemrev/tandemrev/model"
)

func TestParseModels(t *testing.T) {
	raw := `{
		"data": [
			{
				"id": "vendor/alpha",
				"context_length": 200000,
				"supported_parameters": ["tools", "tool_choice", "max_tokens"],
				"top_provider": {"context_length": 131072, "max_completion_tokens": 8192}
			},
			{
				"id": "vendor/beta",
				"context_length": 32000,
				"supported_parameters": []
			},
			{
				"id": "",
				"context_length": 1000
			},
			{
				"id": "vendor/broken",
				"context_length": 0
			}
		]
	}`

	var payload modelsPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	models := parseModels(payload)
	require.Len(t, models, 2)

	alpha := models[0]
	assert.Equal(t, "vendor/alpha", alpha.ID)
	// The tighter provider limit wins over the advertised context length.
	assert.Equal(t, 131072, alpha.ContextWindowTokens)
	assert.Equal(t, 8192, alpha.MaxCompletionTokens)
	assert.True(t, alpha.SupportsToolCalling)

	beta := models[1]
	assert.Equal(t, 32000, beta.ContextWindowTokens)
	assert.False(t, beta.SupportsToolCalling)
	assert.Zero(t, beta.MaxCompletionTokens)
}

func TestSupportsTools(t *testing.T) {
	assert.True(t, supportsTools([]string{"max_tokens", "tools"}))
	assert.False(t, supportsTools([]string{"max_tokens"}))
	assert.False(t, supportsTools(nil))
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		model.SystemMessage("be thorough"),
		model.UserMessage("review this"),
		model.AssistantMessage("", []model.ToolCall{{ID: "tc1", Name: "read_file", Arguments: `{"path":"main.go"}`}}),
		model.ToolMessage("tc1", "read_file", `{"content":"package main"}`),
		model.AssistantMessage("done", nil),
	})

	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "read_file", msgs[2].OfAssistant.ToolCalls[0].Function.Name)
	assert.NotNil(t, msgs[3].OfTool)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "list_dir",
		Description: "List a directory",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string"}},
			"required":   []string{"path"},
		},
	}})

	require.Len(t, tools, 1)
	assert.Equal(t, "list_dir", tools[0].Function.Name)
}
