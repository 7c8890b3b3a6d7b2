package budget

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts prompt tokens using the model's tokenizer when tiktoken
// knows it, falling back first to cl100k_base and then to a chars-per-token
// heuristic. Safe for concurrent use; encoders are cached per model.
type Estimator struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

// NewEstimator creates an empty Estimator.
func NewEstimator() *Estimator {
	return &Estimator{encoders: make(map[string]*tiktoken.Tiktoken)}
}

// Tokens returns the estimated token count of text for the given model.
func (e *Estimator) Tokens(modelID, text string) int {
	if text == "" {
		return 0
	}
	if enc := e.encoderFor(modelID); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return heuristicTokens(text)
}

func (e *Estimator) encoderFor(modelID string) *tiktoken.Tiktoken {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encoders[modelID]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	e.encoders[modelID] = enc
	return enc
}

func heuristicTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return (runes + DefaultCharsPerToken - 1) / DefaultCharsPerToken
}
