package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemrev/tandemrev/metadata"
	"github.com/tandemrev/tandemrev/model"
)

func newTestInvoker(completer model.Completer, catalog *metadata.Catalog, optFns ...func(o *InvokerOptions)) *Invoker {
	base := func(o *InvokerOptions) {
		o.ReviewerTimeout = 2 * time.Second
		o.FixedOutputTokens = 8192
		o.ContextOverheadTokens = 2000
		o.Bridge = defaultBridgeLimits()
	}
	return NewInvoker(completer, catalog, NewGate(4), append([]func(o *InvokerOptions){base}, optFns...)...)
}

func designRequest() Request {
	return Request{Kind: DesignReview, InlineText: "Split the monolith into two services."}
}

func TestInvokerDisabledSentinel(t *testing.T) {
	completer := model.NewScriptedCompleter()
	inv := newTestInvoker(completer, newTestCatalog())

	for _, id := range []string{"disabled", ""} {
		outcome := inv.Run(context.Background(), id, designRequest(), nil)
		assert.Equal(t, StatusDisabled, outcome.Status)
	}
	assert.Empty(t, completer.Requests(), "disabled reviewer must not reach the network")
}

func TestInvokerMetadataUnavailable(t *testing.T) {
	completer := model.NewScriptedCompleter()
	catalog := metadata.NewCatalog(&stubFetcher{err: errors.New("models endpoint down")})
	inv := newTestInvoker(completer, catalog)

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), nil)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, ErrorMetadataUnavailable, outcome.ErrorKind)
	assert.Empty(t, completer.Requests())
}

func TestInvokerBudgetExhaustedFailsFast(t *testing.T) {
	completer := model.NewScriptedCompleter()
	tiny := metadata.Metadata{ID: "tiny/model", ContextWindowTokens: 4000, FetchedAt: time.Now()}
	inv := newTestInvoker(completer, newTestCatalog(tiny))

	outcome := inv.Run(context.Background(), "tiny/model", designRequest(), nil)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, ErrorBudgetExhausted, outcome.ErrorKind)
	assert.Empty(t, completer.Requests(), "budget exhaustion must fail before any network call")
}

func TestInvokerSimpleSuccess(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("openai/gpt-5", textResponse("## Summary\nLooks fine.\n"))
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")))

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), nil)

	require.Equal(t, StatusSucceeded, outcome.Status)
	assert.Equal(t, "## Summary\nLooks fine.\n", outcome.FinalText)
	assert.Empty(t, outcome.ToolCalls)
	assert.NotEmpty(t, outcome.InvocationID)
	assert.Equal(t, "No project index detected", outcome.IndexDisabledReason)

	reqs := completer.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Tools, "no toolset, no tool surface")
	assert.Equal(t, "system", reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[1].Text, "Split the monolith")
}

func TestInvokerToolLoop(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("openai/gpt-5", toolCallResponse(
		model.ToolCall{ID: "1", Name: "activate_project", Arguments: `{"project":"."}`},
	))
	completer.Script("openai/gpt-5", toolCallResponse(
		model.ToolCall{ID: "2", Name: "read_file", Arguments: `{"path":"main.go"}`},
	))
	completer.Script("openai/gpt-5", textResponse("## Summary\nReviewed with context.\n"))

	toolset := newFakeToolset()
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")))

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), toolset)

	require.Equal(t, StatusSucceeded, outcome.Status)
	assert.Equal(t, "## Summary\nReviewed with context.\n", outcome.FinalText)

	require.Len(t, outcome.ToolCalls, 2)
	assert.Equal(t, "activate_project", outcome.ToolCalls[0].Name)
	assert.Equal(t, "read_file", outcome.ToolCalls[1].Name)
	assert.True(t, outcome.IndexUsed)

	reqs := completer.Requests()
	require.Len(t, reqs, 3)
	assert.NotEmpty(t, reqs[0].Tools, "tool surface advertised")
	// The final request carries the tool results from both turns.
	last := reqs[2].Messages
	assert.Equal(t, "tool", last[len(last)-1].Role)
}

func TestInvokerForceFinalizeAfterCeiling(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("openai/gpt-5", toolCallResponse(
		model.ToolCall{ID: "1", Name: "activate_project", Arguments: `{"project":"."}`},
	))
	completer.Script("openai/gpt-5", toolCallResponse(
		model.ToolCall{ID: "2", Name: "read_file", Arguments: `{"path":"a.go"}`},
	))
	completer.Script("openai/gpt-5", textResponse("## Summary\nDone from retrieved context.\n"))

	toolset := newFakeToolset()
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")), func(o *InvokerOptions) {
		o.Bridge.MaxCalls = 1
	})

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), toolset)

	require.Equal(t, StatusSucceeded, outcome.Status)
	// Only the activation call was dispatched before the ceiling.
	require.Len(t, outcome.ToolCalls, 1)
	assert.Equal(t, "activate_project", outcome.ToolCalls[0].Name)

	reqs := completer.Requests()
	require.Len(t, reqs, 3)
	final := reqs[2]
	assert.Empty(t, final.Tools, "tool surface withdrawn after the ceiling")

	var sawFinalize bool
	for _, m := range final.Messages {
		if m.Role == "system" && m.Text == forceFinalizeMessage {
			sawFinalize = true
		}
	}
	assert.True(t, sawFinalize, "model must be told to produce a final answer")
}

func TestInvokerDeadlinePreservesTranscript(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("openai/gpt-5", toolCallResponse(
		model.ToolCall{ID: "1", Name: "activate_project", Arguments: `{"project":"."}`},
	))
	completer.ScriptBlocking("openai/gpt-5")

	toolset := newFakeToolset()
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")), func(o *InvokerOptions) {
		o.ReviewerTimeout = 100 * time.Millisecond
	})

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), toolset)

	assert.Equal(t, StatusTimedOut, outcome.Status)
	assert.Equal(t, ErrorTimedOut, outcome.ErrorKind)
	require.Len(t, outcome.ToolCalls, 1, "partial transcript preserved")
	assert.Equal(t, "activate_project", outcome.ToolCalls[0].Name)
}

func TestInvokerTransportError(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.ScriptError("openai/gpt-5", errors.New("429 rate limited"))
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")))

	outcome := inv.Run(context.Background(), "openai/gpt-5", designRequest(), nil)

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, ErrorTransport, outcome.ErrorKind)
	assert.Contains(t, outcome.ErrorMessage, "429")
	// Zero retries: exactly one request went out.
	assert.Len(t, completer.Requests(), 1)
}

func TestInvokerTextOnlyModelGetsNoTools(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("meta/basic", textResponse("## Summary\nok\n"))
	toolset := newFakeToolset()
	inv := newTestInvoker(completer, newTestCatalog(textOnlyModel("meta/basic")))

	outcome := inv.Run(context.Background(), "meta/basic", designRequest(), toolset)

	require.Equal(t, StatusSucceeded, outcome.Status)
	assert.Equal(t, "Model does not support tool calling", outcome.IndexDisabledReason)

	reqs := completer.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Tools)
	assert.Contains(t, reqs[0].Messages[0].Text, "do NOT have access to any tools")
}

func TestInvokerRedactsPromptInputs(t *testing.T) {
	completer := model.NewScriptedCompleter()
	completer.Script("openai/gpt-5", textResponse("ok"))
	inv := newTestInvoker(completer, newTestCatalog(toolCapableModel("openai/gpt-5")))

	req := Request{
		Kind:       CodeReview,
		InlineText: `apiKey := "sk-or-v1-0123456789abcdef0123456789abcdef0123456789abcdef"`,
		Language:   "go",
	}
	inv.Run(context.Background(), "openai/gpt-5", req, nil)

	reqs := completer.Requests()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0].Messages[1].Text, "sk-or-v1")
	assert.Contains(t, reqs[0].Messages[1].Text, "[REDACTED]")
}
