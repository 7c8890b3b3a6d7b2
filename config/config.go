// Package config loads the engine configuration from environment variables.
// Every knob has a default suitable for local use; validation errors always
// name the offending variable so misconfiguration is diagnosable from logs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DisabledModel is the sentinel model identifier that administratively
// disables a reviewer. An empty identifier is treated the same way.
const DisabledModel = "disabled"

// Settings holds the full configuration surface consumed by the engine.
type Settings struct {
	// APIKey authenticates against the model-serving API.
	APIKey string
	// BaseURL overrides the model-serving endpoint (OpenRouter-compatible).
	BaseURL string
	// HTTPReferer and XTitle are optional attribution headers.
	HTTPReferer string
	XTitle      string

	// PrimaryModel and SecondaryModel identify the two reviewers.
	// SecondaryModel set to DisabledModel (or empty) disables the secondary.
	PrimaryModel   string
	SecondaryModel string
	// SynthesisModel runs the summary call. Defaults to PrimaryModel.
	SynthesisModel string

	// ReviewerTimeout caps one reviewer invocation wall-clock, all turns included.
	ReviewerTimeout time.Duration
	// SynthesisTimeout caps the synthesis call, independent of reviewer deadlines.
	SynthesisTimeout time.Duration
	// ToolCallTimeout caps a single project-index tool dispatch.
	ToolCallTimeout time.Duration

	// MaxConcurrentRequests is the process-wide ceiling on in-flight model calls.
	MaxConcurrentRequests int

	// FixedOutputTokens is reserved in every model context for the response.
	FixedOutputTokens int
	// ContextOverheadTokens is reserved for message framing and tool schemas.
	ContextOverheadTokens int
	// MaxInputChars is the absolute ceiling on prompt size regardless of model.
	MaxInputChars int

	// MetadataTTL bounds how long fetched model capability metadata stays fresh.
	MetadataTTL time.Duration

	// MaxToolCalls is the per-invocation tool-call count ceiling.
	MaxToolCalls int
	// MaxToolResultChars caps a single tool result; MaxTotalToolChars caps the
	// cumulative tool output of one invocation.
	MaxToolResultChars int
	MaxTotalToolChars  int

	// MaxDirEntries and MaxSearchResults bound project-index listings.
	MaxDirEntries    int
	MaxSearchResults int
}

// Default returns the baseline settings without consulting the environment.
func Default() Settings {
	return Settings{
		BaseURL:               "https://openrouter.ai/api/v1",
		PrimaryModel:          "moonshotai/kimi-k2.5",
		SecondaryModel:        "z-ai/glm-5",
		ReviewerTimeout:       300 * time.Second,
		SynthesisTimeout:      120 * time.Second,
		ToolCallTimeout:       30 * time.Second,
		MaxConcurrentRequests: 4,
		FixedOutputTokens:     8192,
		ContextOverheadTokens: 2000,
		MaxInputChars:         100000,
		MetadataTTL:           time.Hour,
		MaxToolCalls:          32,
		MaxToolResultChars:    12000,
		MaxTotalToolChars:     50000,
		MaxDirEntries:         100,
		MaxSearchResults:      20,
	}
}

// FromEnv loads Settings from TANDEMREV_* environment variables, applying
// defaults for unset values and validating ranges.
func FromEnv() (Settings, error) {
	s := Default()

	s.APIKey = getStr("TANDEMREV_API_KEY", s.APIKey)
	if s.APIKey == "" {
		return Settings{}, fmt.Errorf("TANDEMREV_API_KEY is required")
	}

	s.BaseURL = getStr("TANDEMREV_BASE_URL", s.BaseURL)
	s.HTTPReferer = getStr("TANDEMREV_HTTP_REFERER", "")
	s.XTitle = getStr("TANDEMREV_X_TITLE", "")

	s.PrimaryModel = getStr("TANDEMREV_PRIMARY_MODEL", s.PrimaryModel)
	s.SecondaryModel = getStr("TANDEMREV_SECONDARY_MODEL", s.SecondaryModel)
	s.SynthesisModel = getStr("TANDEMREV_SYNTHESIS_MODEL", "")
	if s.SynthesisModel == "" {
		s.SynthesisModel = s.PrimaryModel
	}

	var err error
	if s.ReviewerTimeout, err = getSeconds("TANDEMREV_REVIEWER_TIMEOUT_SECONDS", s.ReviewerTimeout); err != nil {
		return Settings{}, err
	}
	if s.SynthesisTimeout, err = getSeconds("TANDEMREV_SYNTHESIS_TIMEOUT_SECONDS", s.SynthesisTimeout); err != nil {
		return Settings{}, err
	}
	if s.ToolCallTimeout, err = getSeconds("TANDEMREV_TOOL_TIMEOUT_SECONDS", s.ToolCallTimeout); err != nil {
		return Settings{}, err
	}
	if s.MetadataTTL, err = getSeconds("TANDEMREV_MODEL_METADATA_TTL_SECONDS", s.MetadataTTL); err != nil {
		return Settings{}, err
	}

	intFields := []struct {
		name    string
		dst     *int
		minimum int
	}{
		{"TANDEMREV_MAX_CONCURRENT_REQUESTS", &s.MaxConcurrentRequests, 1},
		{"TANDEMREV_FIXED_OUTPUT_TOKENS", &s.FixedOutputTokens, 1},
		{"TANDEMREV_CONTEXT_OVERHEAD_TOKENS", &s.ContextOverheadTokens, 0},
		{"TANDEMREV_MAX_INPUT_CHARS", &s.MaxInputChars, 1},
		{"TANDEMREV_MAX_TOOL_CALLS", &s.MaxToolCalls, 1},
		{"TANDEMREV_MAX_TOOL_RESULT_CHARS", &s.MaxToolResultChars, 1},
		{"TANDEMREV_MAX_TOTAL_TOOL_CHARS", &s.MaxTotalToolChars, 1},
		{"TANDEMREV_MAX_DIR_ENTRIES", &s.MaxDirEntries, 1},
		{"TANDEMREV_MAX_SEARCH_RESULTS", &s.MaxSearchResults, 1},
	}
	for _, f := range intFields {
		v, err := getInt(f.name, *f.dst)
		if err != nil {
			return Settings{}, err
		}
		if v < f.minimum {
			return Settings{}, fmt.Errorf("%s must be >= %d", f.name, f.minimum)
		}
		*f.dst = v
	}

	if s.ReviewerTimeout <= 0 {
		return Settings{}, fmt.Errorf("TANDEMREV_REVIEWER_TIMEOUT_SECONDS must be > 0")
	}
	if s.ToolCallTimeout <= 0 {
		return Settings{}, fmt.Errorf("TANDEMREV_TOOL_TIMEOUT_SECONDS must be > 0")
	}

	return s, nil
}

// SecondaryEnabled reports whether a secondary reviewer is configured.
func (s Settings) SecondaryEnabled() bool {
	return !IsDisabled(s.SecondaryModel)
}

// IsDisabled reports whether the given model identifier is the disable sentinel.
func IsDisabled(modelID string) bool {
	return modelID == "" || modelID == DisabledModel
}

func getStr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return v, nil
}

func getSeconds(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer number of seconds: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return time.Duration(v) * time.Second, nil
}
