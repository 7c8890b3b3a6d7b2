package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tandemrev/tandemrev/budget"
	"github.com/tandemrev/tandemrev/config"
	"github.com/tandemrev/tandemrev/logging"
	"github.com/tandemrev/tandemrev/metadata"
	"github.com/tandemrev/tandemrev/model"
)

// InvokerOptions tune one reviewer invocation path.
type InvokerOptions struct {
	ReviewerTimeout       time.Duration
	FixedOutputTokens     int
	ContextOverheadTokens int
	MaxInputChars         int
	Bridge                BridgeLimits
	Estimator             *budget.Estimator
	Logger                logging.Logger
}

// Invoker runs single reviewer invocations: one model exchange, optionally
// driving the tool-call bridge, under one wall-clock deadline.
type Invoker struct {
	completer model.Completer
	catalog   *metadata.Catalog
	gate      *Gate
	opts      InvokerOptions
}

// NewInvoker builds an Invoker. The gate is shared process-wide; every
// completion the invoker issues acquires a slot from it.
func NewInvoker(completer model.Completer, catalog *metadata.Catalog, gate *Gate, optFns ...func(o *InvokerOptions)) *Invoker {
	def := config.Default()
	opts := InvokerOptions{
		ReviewerTimeout:       def.ReviewerTimeout,
		FixedOutputTokens:     def.FixedOutputTokens,
		ContextOverheadTokens: def.ContextOverheadTokens,
		MaxInputChars:         def.MaxInputChars,
		Bridge: BridgeLimits{
			MaxCalls:       def.MaxToolCalls,
			CallTimeout:    def.ToolCallTimeout,
			MaxResultChars: def.MaxToolResultChars,
			MaxTotalChars:  def.MaxTotalToolChars,
		},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Invoker{
		completer: completer,
		catalog:   catalog,
		gate:      gate,
		opts:      opts,
	}
}

// Run executes one reviewer invocation to a terminal state. It never returns
// an error: every failure mode is reported inside the Outcome so the
// coordinator can aggregate partial results.
func (inv *Invoker) Run(ctx context.Context, modelID string, req Request, toolset Toolset) *Outcome {
	outcome := &Outcome{
		InvocationID: uuid.NewString(),
		ModelID:      modelID,
	}

	if config.IsDisabled(modelID) {
		outcome.Status = StatusDisabled
		return outcome
	}

	meta, err := inv.catalog.Resolve(ctx, modelID)
	if err != nil {
		inv.opts.Logger.Warn("model metadata unavailable", "model", modelID, "error", err)
		outcome.Status = StatusFailed
		outcome.ErrorKind = ErrorMetadataUnavailable
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	bud := budget.Compute(meta, inv.opts.FixedOutputTokens, inv.opts.ContextOverheadTokens,
		func(o *budget.Options) { o.AbsoluteMaxInputChars = inv.opts.MaxInputChars })
	if bud.Exhausted() {
		outcome.Status = StatusFailed
		outcome.ErrorKind = ErrorBudgetExhausted
		outcome.ErrorMessage = ErrBudgetExhausted.Error()
		return outcome
	}

	toolsEnabled := meta.SupportsToolCalling && toolset != nil
	switch {
	case !meta.SupportsToolCalling:
		outcome.IndexDisabledReason = "Model does not support tool calling"
	case toolset == nil:
		outcome.IndexDisabledReason = "No project index detected"
	}

	system := systemPrompt(req.Kind, toolsEnabled)
	user := userPrompt(req, bud.MaxInputChars)
	if inv.opts.Estimator != nil {
		inv.opts.Logger.Debug("prompt sized",
			"model", modelID,
			"prompt_tokens_estimate", inv.opts.Estimator.Tokens(modelID, user),
			"budget_tokens", bud.AvailableInputTokens)
	}

	runCtx := ctx
	if inv.opts.ReviewerTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.opts.ReviewerTimeout)
		defer cancel()
	}

	var bridge *Bridge
	var tools []model.ToolDefinition
	if toolsEnabled {
		bridge = NewBridge(toolset, inv.opts.Bridge, inv.opts.Logger)
		tools = toolset.Definitions()
	}

	messages := []model.Message{
		model.SystemMessage(system),
		model.UserMessage(user),
	}

	for {
		resp, err := inv.complete(runCtx, model.Request{
			Model:           modelID,
			Messages:        messages,
			Tools:           tools,
			MaxOutputTokens: int64(bud.ReservedOutputTokens),
		})
		if err != nil {
			inv.finishWithError(outcome, bridge, toolset, runCtx, err)
			return outcome
		}

		if len(resp.ToolCalls) == 0 {
			outcome.Status = StatusSucceeded
			outcome.FinalText = resp.Text
			inv.attachToolUsage(outcome, bridge, toolset)
			return outcome
		}

		if bridge == nil {
			// Tool calls without an advertised tool surface; treat the text
			// we have as final rather than failing the invocation.
			outcome.Status = StatusSucceeded
			outcome.FinalText = resp.Text + "\n\n*(Tool calls were requested, but no tools were available.)*\n"
			return outcome
		}

		messages = append(messages, model.AssistantMessage(resp.Text, resp.ToolCalls))
		toolMessages, forceFinalize := bridge.HandleCalls(runCtx, resp.ToolCalls)
		messages = append(messages, toolMessages...)
		if forceFinalize {
			messages = append(messages, model.SystemMessage(forceFinalizeMessage))
			tools = nil
		}
	}
}

// complete issues one model call behind the admission gate.
func (inv *Invoker) complete(ctx context.Context, req model.Request) (*model.Response, error) {
	if err := inv.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer inv.gate.Release()

	start := time.Now()
	resp, err := inv.completer.Complete(ctx, req)
	logging.LogModelCall(inv.opts.Logger, req.Model, time.Since(start), err)
	return resp, err
}

// finishWithError maps a completion failure to the outcome's terminal state,
// preserving whatever tool-call history accumulated before the failure.
func (inv *Invoker) finishWithError(outcome *Outcome, bridge *Bridge, toolset Toolset, ctx context.Context, err error) {
	inv.attachToolUsage(outcome, bridge, toolset)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome.Status = StatusTimedOut
		outcome.ErrorKind = ErrorTimedOut
		outcome.ErrorMessage = "reviewer timed out after " + inv.opts.ReviewerTimeout.String()
		return
	}
	outcome.Status = StatusFailed
	outcome.ErrorKind = ErrorTransport
	outcome.ErrorMessage = err.Error()
}

func (inv *Invoker) attachToolUsage(outcome *Outcome, bridge *Bridge, toolset Toolset) {
	if bridge == nil || toolset == nil {
		return
	}
	outcome.ToolCalls = bridge.Transcript()
	usage := toolset.Usage()
	outcome.IndexUsage = usage
	outcome.IndexUsed = len(usage.Tools) > 0 || len(usage.Memories) > 0 || len(usage.Paths) > 0
}
