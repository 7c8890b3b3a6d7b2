package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPrompt(t *testing.T) {
	t.Run("design review with tools", func(t *testing.T) {
		out := systemPrompt(DesignReview, true)
		assert.Contains(t, out, "software architect")
		assert.Contains(t, out, "PRE-FLIGHT (mandatory)")
		assert.Contains(t, out, "activate_project")
		assert.Contains(t, out, "## Questions / Unknowns")
	})

	t.Run("code review without tools", func(t *testing.T) {
		out := systemPrompt(CodeReview, false)
		assert.Contains(t, out, "code reviewer")
		assert.Contains(t, out, "do NOT have access to any tools")
		assert.NotContains(t, out, "PRE-FLIGHT")
	})
}

func TestUserPromptDesignReview(t *testing.T) {
	req := Request{
		Kind:        DesignReview,
		InlineText:  "Proposal body",
		Constraints: "Latency under 200ms",
		Context:     "Greenfield service",
	}
	out := userPrompt(req, 0)

	assert.Contains(t, out, "# System Design Review Request")
	assert.Contains(t, out, "## Proposal\nProposal body")
	assert.Contains(t, out, "## Constraints\nLatency under 200ms")
	assert.Contains(t, out, "## Context\nGreenfield service")
}

func TestUserPromptCodeReviewDefaults(t *testing.T) {
	req := Request{Kind: CodeReview, InlineText: "func main() {}"}
	out := userPrompt(req, 0)

	assert.Contains(t, out, "## Language\ntext")
	assert.Contains(t, out, "## Focus\ngeneral")
	assert.Contains(t, out, "func main() {}")
}

func TestUserPromptEmbeddedFiles(t *testing.T) {
	req := Request{
		Kind: DesignReview,
		EmbeddedFiles: []EmbeddedFile{
			{Path: "a.go", Content: "package a"},
			{Path: "b.go", Content: "package b"},
		},
	}
	out := userPrompt(req, 0)

	assert.Contains(t, out, "(No proposal text provided.")
	assert.Contains(t, out, "- `a.go`")
	assert.Contains(t, out, "--- BEGIN FILE: a.go ---")
	assert.Contains(t, out, "--- END FILE: b.go ---")
	// Embedding order is the request order.
	assert.Less(t, strings.Index(out, "BEGIN FILE: a.go"), strings.Index(out, "BEGIN FILE: b.go"))
}

func TestTruncateToChars(t *testing.T) {
	long := strings.Repeat("z", 500)

	out := truncateToChars(long, 200)
	require.LessOrEqual(t, len(out), 200)
	assert.Contains(t, out, "[NOTE: Input truncated")

	assert.Equal(t, long, truncateToChars(long, 0), "zero means uncapped")
	assert.Equal(t, "short", truncateToChars("short", 200))
}
