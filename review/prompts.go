package review

import (
	"fmt"
	"strings"

	"github.com/tandemrev/tandemrev/redact"
)

const truncationNote = "\n\n[NOTE: Input truncated to fit model context window.]\n"

// forceFinalizeMessage is injected as a system turn once the tool budget
// is gone.
const forceFinalizeMessage = "You have reached the maximum tool call budget. Provide your final review now without further tool calls."

// preflightInstruction corrects a model that tries to use tools before the
// mandatory activation call.
const preflightInstruction = "Tool rejected: you must call `activate_project` with `project=\".\"` before any other tool."

const requiredSectionsBlock = "Return Markdown with sections:\n" +
	"## Summary\n" +
	"## Key Findings\n" +
	"## Recommendations\n" +
	"## Questions / Unknowns\n"

// systemPrompt builds the reviewer system prompt for a review kind. The tool
// note and mandatory preflight instructions are included only when a project
// index is live for the invocation.
func systemPrompt(kind Kind, toolsEnabled bool) string {
	var sb strings.Builder
	switch kind {
	case CodeReview:
		sb.WriteString("You are an expert code reviewer focused on correctness, security, and maintainability.\n")
	default:
		sb.WriteString("You are an expert software architect and reviewer.\n")
		sb.WriteString("Provide a thorough but concise critique.\n")
	}
	if toolsEnabled {
		sb.WriteString("You MAY call tools to inspect repo context and project memories when needed.\n")
		sb.WriteString("PRE-FLIGHT (mandatory): Immediately call `activate_project` with `project=\".\"` before any other tool. ")
		sb.WriteString("Then call `read_project_overview` to load baseline project context.\n")
	} else {
		sb.WriteString("You do NOT have access to any tools or repository context beyond the user-provided text.\n")
	}
	sb.WriteString("\n")
	sb.WriteString(requiredSectionsBlock)
	return sb.String()
}

// userPrompt assembles the redacted user prompt from the request's inline
// text, constraints/context, and embedded files, then truncates it to
// maxChars with an explicit note.
func userPrompt(req Request, maxChars int) string {
	var sb strings.Builder
	switch req.Kind {
	case CodeReview:
		code := redact.Text(req.InlineText)
		if strings.TrimSpace(code) == "" {
			code = "(No code snippet provided. Use the embedded files below.)"
		}
		language := req.Language
		if language == "" {
			language = "text"
		}
		focus := req.Focus
		if focus == "" {
			focus = "general"
		}
		sb.WriteString("# Code Review Request\n")
		fmt.Fprintf(&sb, "\n## Language\n%s\n", language)
		fmt.Fprintf(&sb, "\n## Focus\n%s\n", focus)
		fmt.Fprintf(&sb, "\n## Code\n```%s\n%s\n```\n", language, code)
	default:
		proposal := redact.Text(req.InlineText)
		if strings.TrimSpace(proposal) == "" {
			proposal = "(No proposal text provided. Use the embedded files below as the system design context.)"
		}
		sb.WriteString("# System Design Review Request\n")
		sb.WriteString("\n## Proposal\n")
		sb.WriteString(proposal)
	}
	if req.Constraints != "" {
		sb.WriteString("\n\n## Constraints\n")
		sb.WriteString(redact.Text(req.Constraints))
	}
	if req.Context != "" {
		sb.WriteString("\n\n## Context\n")
		sb.WriteString(redact.Text(req.Context))
	}
	if len(req.EmbeddedFiles) > 0 {
		sb.WriteString(embeddedFilesSection(req.EmbeddedFiles))
	}
	return truncateToChars(sb.String(), maxChars)
}

// embeddedFilesSection renders the already-resolved file contents supplied
// with the request. Contents pass through redaction like every other input.
func embeddedFilesSection(files []EmbeddedFile) string {
	var sb strings.Builder
	sb.WriteString("\n\n## Files (from disk)\n### Embedded\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- `%s`\n", f.Path)
	}
	sb.WriteString("\n### Embedded Content\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "--- BEGIN FILE: %s ---\n", f.Path)
		sb.WriteString(redact.Text(f.Content))
		fmt.Fprintf(&sb, "\n--- END FILE: %s ---\n", f.Path)
	}
	return sb.String()
}

// truncateToChars caps text at maxChars, appending a truncation note that
// itself fits inside the cap. maxChars <= 0 means no cap.
func truncateToChars(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars - len(truncationNote)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + truncationNote
}
