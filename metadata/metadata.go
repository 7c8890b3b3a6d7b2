// Package metadata implements model capability discovery: per-model context
// window size and tool-calling support, fetched from the model-serving API and
// cached with a TTL. Concurrent resolutions share one in-flight fetch.
package metadata

import (
	"errors"
	"time"
)

// ErrUnavailable marks a failed resolution: the fetch failed and no cached
// entry was usable, or the model is unknown to the serving API.
var ErrUnavailable = errors.New("model metadata unavailable")

// Metadata describes one model's capabilities as reported by the serving API.
// Immutable once fetched; a re-fetch after TTL expiry supersedes the entry.
type Metadata struct {
	ID                  string
	ContextWindowTokens int
	// MaxCompletionTokens is the provider's output ceiling; 0 when unknown.
	MaxCompletionTokens int
	SupportsToolCalling bool
	SupportedParameters []string
	FetchedAt           time.Time
}

// EffectiveOutputTokens clamps the requested fixed output reservation to the
// provider's completion ceiling when one is known.
func (m Metadata) EffectiveOutputTokens(fixedOutputTokens int) int {
	if m.MaxCompletionTokens > 0 && m.MaxCompletionTokens < fixedOutputTokens {
		return m.MaxCompletionTokens
	}
	return fixedOutputTokens
}

// SupportsParameter reports whether the serving API lists the given request
// parameter for this model.
func (m Metadata) SupportsParameter(name string) bool {
	for _, p := range m.SupportedParameters {
		if p == name {
			return true
		}
	}
	return false
}
