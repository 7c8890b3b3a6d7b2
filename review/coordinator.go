package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tandemrev/tandemrev/config"
	"github.com/tandemrev/tandemrev/logging"
)

// CoordinatorOptions configure the dual-reviewer run.
type CoordinatorOptions struct {
	// NewToolset builds a fresh tool surface per reviewer invocation, so
	// bridge and usage state never leak across invocations. A nil factory or
	// a (nil, nil) return runs the reviewer without tools.
	NewToolset func() (Toolset, error)
	Logger     logging.Logger
}

// Coordinator runs the primary and optional secondary reviewer concurrently
// and aggregates their outcomes with the synthesized summary. One reviewer's
// failure or timeout never cancels the other; synthesis starts only after
// both invocations are terminal.
type Coordinator struct {
	settings config.Settings
	invoker  *Invoker
	synth    *Synthesizer
	opts     CoordinatorOptions
}

// NewCoordinator wires the coordinator from its injected components.
func NewCoordinator(settings config.Settings, invoker *Invoker, synth *Synthesizer, optFns ...func(o *CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coordinator{
		settings: settings,
		invoker:  invoker,
		synth:    synth,
		opts:     opts,
	}
}

// Review executes one dual-review request end to end. The returned Result
// always carries whatever each reviewer produced; Review fails outright only
// when the request itself is unusable or the tool surface cannot be built.
func (c *Coordinator) Review(ctx context.Context, req Request) (*Result, error) {
	if req.InlineText == "" && len(req.EmbeddedFiles) == 0 {
		return nil, fmt.Errorf("either inline text or embedded files must be provided")
	}

	secondaryEnabled := c.settings.SecondaryEnabled()

	primaryToolset, err := c.newToolset()
	if err != nil {
		return nil, fmt.Errorf("project index for primary reviewer: %w", err)
	}
	var secondaryToolset Toolset
	if secondaryEnabled {
		secondaryToolset, err = c.newToolset()
		if err != nil {
			return nil, fmt.Errorf("project index for secondary reviewer: %w", err)
		}
	}

	var (
		wg        sync.WaitGroup
		primary   *Outcome
		secondary *Outcome
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		primary = c.invoker.Run(ctx, c.settings.PrimaryModel, req, primaryToolset)
	}()

	if secondaryEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secondary = c.invoker.Run(ctx, c.settings.SecondaryModel, req, secondaryToolset)
		}()
	}

	wg.Wait()

	result := &Result{Primary: primary, Secondary: secondary}

	var primaryText, secondaryText string
	if primary.Succeeded() {
		primaryText = primary.FinalText
	}
	if secondary.Succeeded() {
		secondaryText = secondary.FinalText
	}

	summary, err := c.synth.Summarize(ctx, primaryText, secondaryText)
	switch {
	case err == nil:
		result.Summary = summary
	case errors.Is(err, ErrNoInputForSynthesis):
		result.SummaryError = ErrorNoInputForSynthesis
	default:
		c.opts.Logger.Warn("synthesis failed", "error", err)
		result.SummaryError = ErrorTransport
	}

	result.Markdown = FormatAggregate(primary, secondary, result.Summary)

	c.opts.Logger.Info("review completed",
		"primary_status", primary.Status,
		"secondary_status", secondaryStatus(secondary),
		"summary_error", result.SummaryError)
	return result, nil
}

func (c *Coordinator) newToolset() (Toolset, error) {
	if c.opts.NewToolset == nil {
		return nil, nil
	}
	return c.opts.NewToolset()
}

func secondaryStatus(o *Outcome) Status {
	if o == nil {
		return StatusDisabled
	}
	return o.Status
}
