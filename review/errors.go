package review

import "errors"

var (
	// ErrBudgetExhausted means the computed input budget left no room for a
	// prompt; the invocation fails before any network call.
	ErrBudgetExhausted = errors.New("input budget exhausted")

	// ErrNoInputForSynthesis means neither reviewer produced a final text.
	ErrNoInputForSynthesis = errors.New("no reviewer output available for synthesis")
)
