package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tandemrev/tandemrev/index"
	"github.com/tandemrev/tandemrev/logging"
	"github.com/tandemrev/tandemrev/model"
	"github.com/tandemrev/tandemrev/redact"
)

// Toolset is the read-only tool surface a reviewer invocation may drive.
// *index.Bridge satisfies it.
type Toolset interface {
	Definitions() []model.ToolDefinition
	PreflightTool() string
	Dispatch(ctx context.Context, name, argumentsJSON string) (string, error)
	Usage() index.Usage
}

// truncationMarker is appended to tool results cut at the per-call ceiling.
const truncationMarker = "\n[truncated]"

// budgetExhaustedMarker replaces tool results once the cumulative character
// ceiling has been spent.
const budgetExhaustedMarker = `{"error":"tool result budget exhausted; produce your final review from what you have already retrieved"}`

// BridgeLimits bounds one invocation's tool-call exchange.
type BridgeLimits struct {
	MaxCalls       int
	CallTimeout    time.Duration
	MaxResultChars int
	MaxTotalChars  int
}

type bridgeState int

const (
	stateAwaitingPreflight bridgeState = iota
	stateActive
	stateExhausted
)

// Bridge mediates the bounded tool-call loop of one reviewer invocation.
// It enforces the mandatory preflight activation, the call-count ceiling,
// per-call timeouts, and per-call plus cumulative result-size ceilings.
// A Bridge belongs to exactly one invocation and is not safe for concurrent
// use; calls within an invocation are handled one at a time.
type Bridge struct {
	toolset Toolset
	limits  BridgeLimits
	logger  logging.Logger

	state      bridgeState
	calls      int
	totalChars int
	transcript []ToolCall
}

// NewBridge returns a bridge in the AwaitingPreflight state.
func NewBridge(toolset Toolset, limits BridgeLimits, logger logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Bridge{
		toolset: toolset,
		limits:  limits,
		logger:  logger,
	}
}

// Exhausted reports whether the call-count ceiling has been hit.
func (b *Bridge) Exhausted() bool { return b.state == stateExhausted }

// Transcript returns the ordered record of dispatched tool calls.
func (b *Bridge) Transcript() []ToolCall { return b.transcript }

// HandleCalls processes one batch of model-requested tool calls and returns
// the tool messages to feed back, plus whether the model must now be forced
// to produce a final answer. Every requested call receives a reply so the
// conversation stays well-formed; only dispatched calls enter the transcript
// and count against the ceiling.
func (b *Bridge) HandleCalls(ctx context.Context, calls []model.ToolCall) ([]model.Message, bool) {
	var messages []model.Message
	forceFinalize := false

	for _, call := range calls {
		if b.state == stateExhausted {
			messages = append(messages, model.ToolMessage(call.ID, call.Name,
				`{"error":"tool call budget exhausted"}`))
			forceFinalize = true
			continue
		}

		// Mandatory preflight: reject anything else without dispatching.
		if b.state == stateAwaitingPreflight && call.Name != b.toolset.PreflightTool() {
			b.logger.Debug("tool call rejected before preflight", "tool", call.Name)
			messages = append(messages, model.ToolMessage(call.ID, call.Name,
				fmt.Sprintf(`{"error":%q}`, preflightInstruction)))
			continue
		}

		if b.calls >= b.limits.MaxCalls {
			b.state = stateExhausted
			messages = append(messages, model.ToolMessage(call.ID, call.Name,
				`{"error":"tool call budget exhausted"}`))
			forceFinalize = true
			continue
		}
		b.calls++

		result, truncated, elapsed := b.execute(ctx, call)
		b.transcript = append(b.transcript, ToolCall{
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    result,
			Truncated: truncated,
			Elapsed:   elapsed,
		})
		messages = append(messages, model.ToolMessage(call.ID, call.Name, result))

		if b.state == stateAwaitingPreflight && call.Name == b.toolset.PreflightTool() && b.toolsetActivated() {
			b.state = stateActive
		}
	}

	return messages, forceFinalize
}

func (b *Bridge) toolsetActivated() bool {
	type activatable interface{ Activated() bool }
	if a, ok := b.toolset.(activatable); ok {
		return a.Activated()
	}
	return true
}

// execute dispatches one call under the per-call timeout and applies the
// result-size ceilings. Dispatch failures and timeouts become synthetic
// error results, never engine faults.
func (b *Bridge) execute(ctx context.Context, call model.ToolCall) (result string, truncated bool, elapsed time.Duration) {
	if b.totalChars >= b.limits.MaxTotalChars {
		return budgetExhaustedMarker, false, 0
	}

	start := time.Now()
	raw, err := b.dispatchWithTimeout(ctx, call)
	elapsed = time.Since(start)
	logging.LogToolCall(b.logger, call.Name, elapsed, err)
	if err != nil {
		payload, merr := json.Marshal(map[string]string{"error": err.Error()})
		if merr != nil {
			payload = []byte(`{"error":"tool call failed"}`)
		}
		return string(payload), false, elapsed
	}

	out := redact.Text(raw)
	ceiling := b.limits.MaxResultChars
	if remaining := b.limits.MaxTotalChars - b.totalChars; remaining < ceiling {
		ceiling = remaining
	}
	if ceiling > 0 && len(out) > ceiling {
		out = out[:ceiling] + truncationMarker
		truncated = true
	}
	b.totalChars += len(out)
	return out, truncated, elapsed
}

// dispatchWithTimeout runs the dispatch in its own goroutine so a hung tool
// cannot stall the invocation past the per-call timeout. The goroutine is
// left to finish on its own; the bridge only abandons the result.
func (b *Bridge) dispatchWithTimeout(ctx context.Context, call model.ToolCall) (string, error) {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if b.limits.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.limits.CallTimeout)
	}
	defer cancel()

	type dispatchResult struct {
		out string
		err error
	}
	done := make(chan dispatchResult, 1)
	go func() {
		out, err := b.toolset.Dispatch(callCtx, call.Name, call.Arguments)
		done <- dispatchResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", fmt.Errorf("tool call cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("tool call timed out after %s", b.limits.CallTimeout)
	}
}
