package model

import (
	"context"
	"fmt"
	"sync"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one turn of a normalized conversation.
type Message struct {
	Role string `json:"role"` // "system", "user", "assistant", "tool"
	Text string `json:"text"`
	// ToolCalls carries the calls an assistant turn requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID and ToolName identify which call a tool turn answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

// SystemMessage builds a system turn.
func SystemMessage(text string) Message { return Message{Role: "system", Text: text} }

// UserMessage builds a user turn.
func UserMessage(text string) Message { return Message{Role: "user", Text: text} }

// AssistantMessage builds an assistant turn carrying text and any tool calls.
func AssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: "assistant", Text: text, ToolCalls: calls}
}

// ToolMessage builds a tool-result turn answering one tool call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: "tool", Text: content, ToolCallID: callID, ToolName: name}
}

// Request captures the normalized model input produced by the review engine.
type Request struct {
	Model           string           `json:"model"`
	Messages        []Message        `json:"messages"`
	Tools           []ToolDefinition `json:"tools,omitempty"`
	MaxOutputTokens int64            `json:"max_output_tokens,omitempty"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized result of one completion call. A response with
// ToolCalls requires further tool-result turns before the model can finish.
type Response struct {
	Text         string     `json:"text"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        *Usage     `json:"usage,omitempty"`
}

// Info contains metadata about a model client implementation.
type Info struct {
	Provider      string `json:"provider"` // "openrouter", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Completer is the minimal interface required to drive one model exchange.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the client implementation.
	Info() Info
}

// ScriptedCompleter is a lightweight in-memory Completer useful for tests.
// Responses are played back in FIFO order per model; every request is
// recorded for later inspection.
type ScriptedCompleter struct {
	mu       sync.Mutex
	scripts  map[string][]scriptStep
	requests []Request
}

type scriptStep struct {
	resp *Response
	err  error
	wait func(ctx context.Context) error
}

// NewScriptedCompleter constructs an empty ScriptedCompleter.
func NewScriptedCompleter() *ScriptedCompleter {
	return &ScriptedCompleter{scripts: make(map[string][]scriptStep)}
}

// Script queues a canned response for the given model.
func (s *ScriptedCompleter) Script(modelID string, resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[modelID] = append(s.scripts[modelID], scriptStep{resp: resp})
}

// ScriptError queues a failing step for the given model.
func (s *ScriptedCompleter) ScriptError(modelID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[modelID] = append(s.scripts[modelID], scriptStep{err: err})
}

// ScriptBlocking queues a step that blocks until the request context ends,
// simulating a hung upstream call.
func (s *ScriptedCompleter) ScriptBlocking(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[modelID] = append(s.scripts[modelID], scriptStep{wait: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
}

// Complete implements Completer by replaying the scripted steps.
func (s *ScriptedCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	steps := s.scripts[req.Model]
	var step scriptStep
	if len(steps) > 0 {
		step = steps[0]
		s.scripts[req.Model] = steps[1:]
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.wait != nil {
		if err := step.wait(ctx); err != nil {
			return nil, err
		}
	}
	if step.err != nil {
		return nil, step.err
	}
	if step.resp != nil {
		return step.resp, nil
	}
	return &Response{Text: fmt.Sprintf("scripted response for %s", req.Model), FinishReason: "stop"}, nil
}

// Info implements Completer.
func (s *ScriptedCompleter) Info() Info {
	return Info{Provider: "mock", SupportsTools: true}
}

// Requests returns a copy of all recorded requests.
func (s *ScriptedCompleter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the recorded requests addressed to one model.
func (s *ScriptedCompleter) RequestsFor(modelID string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Model == modelID {
			out = append(out, r)
		}
	}
	return out
}
