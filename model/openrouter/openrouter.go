// Package openrouter provides a model.Completer over any OpenRouter-compatible
// chat completions endpoint using the OpenAI SDK, plus the models-catalog
// fetch backing capability discovery (metadata.Fetcher).
package openrouter

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tandemrev/tandemrev/metadata"
	"github.com/tandemrev/tandemrev/model"
)

// DefaultBaseURL targets the public OpenRouter API.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Options configures the OpenRouter client.
type Options struct {
	BaseURL string
	APIKey  string
	// HTTPReferer and XTitle are optional attribution headers OpenRouter
	// uses for ranking and dashboards.
	HTTPReferer string
	XTitle      string
}

// Client wraps the OpenAI SDK pointed at an OpenRouter-compatible base URL.
// It implements both model.Completer and metadata.Fetcher.
type Client struct {
	client *openai.Client
}

// New creates a Client using the official OpenAI SDK.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{BaseURL: DefaultBaseURL}
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithBaseURL(opts.BaseURL)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.HTTPReferer != "" {
		clientOpts = append(clientOpts, option.WithHeader("HTTP-Referer", opts.HTTPReferer))
	}
	if opts.XTitle != "" {
		clientOpts = append(clientOpts, option.WithHeader("X-Title", opts.XTitle))
	}

	client := openai.NewClient(clientOpts...)
	return &Client{client: &client}
}

// NewFromClient wraps an existing OpenAI SDK client.
func NewFromClient(client *openai.Client) *Client {
	return &Client{client: client}
}

// Complete implements model.Completer via the Chat Completions API.
func (c *Client) Complete(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: buildMessages(req.Messages),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxOutputTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openrouter api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter api error: no choices returned")
	}

	ch0 := resp.Choices[0]
	out := &model.Response{
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	return out, nil
}

// Info implements model.Completer.
func (c *Client) Info() model.Info {
	return model.Info{Provider: "openrouter", SupportsTools: true}
}

// buildMessages converts normalized messages into OpenAI chat messages.
func buildMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Text))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Text))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case "tool":
			out = append(out, openai.ToolMessage(m.Text, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}

// buildTools converts normalized tool definitions to the OpenAI tool format.
func buildTools(tools []model.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// modelsPayload mirrors the OpenRouter models catalog response. Only the
// fields capability discovery needs are decoded.
type modelsPayload struct {
	Data []struct {
		ID                  string   `json:"id"`
		ContextLength       int      `json:"context_length"`
		SupportedParameters []string `json:"supported_parameters"`
		TopProvider         struct {
			ContextLength       int `json:"context_length"`
			MaxCompletionTokens int `json:"max_completion_tokens"`
		} `json:"top_provider"`
	} `json:"data"`
}

// ListModels implements metadata.Fetcher against the models catalog endpoint.
// The provider's context length, when tighter than the advertised one, wins.
func (c *Client) ListModels(ctx context.Context) ([]metadata.Metadata, error) {
	var payload modelsPayload
	if err := c.client.Get(ctx, "models", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch models catalog: %w", err)
	}
	return parseModels(payload), nil
}

func parseModels(payload modelsPayload) []metadata.Metadata {
	out := make([]metadata.Metadata, 0, len(payload.Data))
	for _, item := range payload.Data {
		if item.ID == "" || item.ContextLength <= 0 {
			continue
		}
		contextWindow := item.ContextLength
		if item.TopProvider.ContextLength > 0 && item.TopProvider.ContextLength < contextWindow {
			contextWindow = item.TopProvider.ContextLength
		}
		out = append(out, metadata.Metadata{
			ID:                  item.ID,
			ContextWindowTokens: contextWindow,
			MaxCompletionTokens: item.TopProvider.MaxCompletionTokens,
			SupportsToolCalling: supportsTools(item.SupportedParameters),
			SupportedParameters: item.SupportedParameters,
		})
	}
	return out
}

// supportsTools treats a missing or empty parameter list as "no tool calling".
func supportsTools(params []string) bool {
	for _, p := range params {
		if p == "tools" {
			return true
		}
	}
	return false
}
