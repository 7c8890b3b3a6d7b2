package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tandemrev/tandemrev/logging"
	"github.com/tandemrev/tandemrev/model"
)

const synthesisSystemPrompt = "You are a senior engineering lead. Combine the two reviews below into one " +
	"concise summary: agreements first, then conflicts with your resolution, then the " +
	"highest-priority actions. Do not invent findings that appear in neither review."

// SynthesizerOptions configure the combining model call.
type SynthesizerOptions struct {
	ModelID         string
	Timeout         time.Duration
	MaxOutputTokens int
	Logger          logging.Logger
}

// Synthesizer combines the two reviewer texts into one summary. With both
// texts present it issues one further model call under its own timeout; with
// a single text it degrades deterministically to that text.
type Synthesizer struct {
	completer model.Completer
	gate      *Gate
	opts      SynthesizerOptions
}

// NewSynthesizer builds a Synthesizer sharing the process-wide gate.
func NewSynthesizer(completer model.Completer, gate *Gate, optFns ...func(o *SynthesizerOptions)) *Synthesizer {
	opts := SynthesizerOptions{
		Timeout:         60 * time.Second,
		MaxOutputTokens: 2048,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Synthesizer{completer: completer, gate: gate, opts: opts}
}

// Summarize produces the combined summary. The degradation to a single
// available review is deliberate and documented in the returned text rather
// than hidden. With no input at all it returns ErrNoInputForSynthesis.
func (s *Synthesizer) Summarize(ctx context.Context, primaryText, secondaryText string) (string, error) {
	primaryText = strings.TrimSpace(primaryText)
	secondaryText = strings.TrimSpace(secondaryText)

	switch {
	case primaryText == "" && secondaryText == "":
		return "", ErrNoInputForSynthesis
	case secondaryText == "":
		return "Only the primary review is available.\n\n" + primaryText, nil
	case primaryText == "":
		return "Only the secondary review is available.\n\n" + secondaryText, nil
	}

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	if err := s.gate.Acquire(runCtx); err != nil {
		return "", fmt.Errorf("synthesis admission: %w", err)
	}
	defer s.gate.Release()

	user := fmt.Sprintf("## Primary Review\n\n%s\n\n## Secondary Review\n\n%s\n", primaryText, secondaryText)

	start := time.Now()
	resp, err := s.completer.Complete(runCtx, model.Request{
		Model: s.opts.ModelID,
		Messages: []model.Message{
			model.SystemMessage(synthesisSystemPrompt),
			model.UserMessage(user),
		},
		MaxOutputTokens: int64(s.opts.MaxOutputTokens),
	})
	logging.LogModelCall(s.opts.Logger, s.opts.ModelID, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("synthesis model call: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "Primary and Secondary reviews are provided below.", nil
	}
	return resp.Text, nil
}
