// Package budget computes the prompt input ceiling for a model from its
// context window and the configured output/overhead reservations. Compute is a
// pure function; the token Estimator is the only stateful piece and exists so
// prompt sizing can report real token counts where an encoding is known.
package budget

import "github.com/tandemrev/tandemrev/metadata"

// DefaultCharsPerToken is the conservative character-per-token estimate used
// to turn a token budget into a character ceiling.
const DefaultCharsPerToken = 4

// Budget is the derived per-request, per-model input ceiling. Never persisted.
type Budget struct {
	AvailableInputTokens   int
	MaxInputChars          int
	ReservedOutputTokens   int
	ReservedOverheadTokens int
}

// Exhausted reports that the model context cannot fit any input after
// reservations. Callers must fail fast before issuing any network request.
func (b Budget) Exhausted() bool { return b.AvailableInputTokens <= 0 }

// Options tune the token-to-character conversion.
type Options struct {
	// CharsPerToken converts tokens to characters. Default DefaultCharsPerToken.
	CharsPerToken int
	// AbsoluteMaxInputChars caps MaxInputChars regardless of the model's
	// context window. 0 means uncapped.
	AbsoluteMaxInputChars int
}

// Compute derives the Budget for one model. Deterministic and free of I/O:
// identical inputs always produce identical budgets, and the available token
// count is floored at zero.
func Compute(meta metadata.Metadata, fixedOutputTokens, overheadTokens int, optFns ...func(o *Options)) Budget {
	opts := Options{CharsPerToken: DefaultCharsPerToken}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CharsPerToken <= 0 {
		opts.CharsPerToken = DefaultCharsPerToken
	}

	output := meta.EffectiveOutputTokens(fixedOutputTokens)
	available := meta.ContextWindowTokens - output - overheadTokens
	if available < 0 {
		available = 0
	}

	maxChars := available * opts.CharsPerToken
	if opts.AbsoluteMaxInputChars > 0 && maxChars > opts.AbsoluteMaxInputChars {
		maxChars = opts.AbsoluteMaxInputChars
	}

	return Budget{
		AvailableInputTokens:   available,
		MaxInputChars:          maxChars,
		ReservedOutputTokens:   output,
		ReservedOverheadTokens: overheadTokens,
	}
}
