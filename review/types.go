package review

import (
	"time"

	"github.com/tandemrev/tandemrev/index"
)

// Kind selects the review flavor and the prompt shape that goes with it.
type Kind string

const (
	DesignReview Kind = "design_review"
	CodeReview   Kind = "code_review"
)

// EmbeddedFile is one already-resolved file supplied with a request. Path
// resolution happens upstream; the engine only moves the content.
type EmbeddedFile struct {
	Path    string
	Content string
}

// Request is one immutable review request. InlineText carries the proposal
// (design review) or code snippet (code review); either it or EmbeddedFiles
// must be non-empty.
type Request struct {
	Kind          Kind
	InlineText    string
	Language      string
	Focus         string
	EmbeddedFiles []EmbeddedFile
	Constraints   string
	Context       string
}

// Status is the terminal state of one reviewer invocation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusTimedOut  Status = "timed_out"
	StatusFailed    Status = "failed"
	StatusDisabled  Status = "disabled"
)

// ErrorKind classifies why a reviewer invocation or the synthesis step did
// not produce output.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorMetadataUnavailable ErrorKind = "metadata_unavailable"
	ErrorBudgetExhausted     ErrorKind = "budget_exhausted"
	ErrorTransport           ErrorKind = "transport_error"
	ErrorTimedOut            ErrorKind = "timed_out"
	ErrorNoInputForSynthesis ErrorKind = "no_input_for_synthesis"
)

// ToolCall records one turn of the tool-call bridge. The transcript within
// an invocation is ordered and append-only.
type ToolCall struct {
	Name      string
	Arguments string
	Result    string
	Truncated bool
	Elapsed   time.Duration
}

// Outcome is the result of exactly one reviewer invocation, immutable after
// completion. When tool calls happened, the first transcript entry is always
// the preflight activation call.
type Outcome struct {
	InvocationID string
	ModelID      string
	Status       Status
	FinalText    string
	ToolCalls    []ToolCall
	ErrorKind    ErrorKind
	ErrorMessage string

	// Disclosure of project-index usage, surfaced in the rendered output.
	IndexUsed           bool
	IndexDisabledReason string
	IndexUsage          index.Usage
}

// Succeeded reports whether the invocation produced a final review text.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.Status == StatusSucceeded
}

// Result is the terminal artifact of one review request. Secondary is nil
// exactly when the secondary reviewer is administratively disabled.
type Result struct {
	Primary      *Outcome
	Secondary    *Outcome
	Summary      string
	SummaryError ErrorKind
	Markdown     string
}
