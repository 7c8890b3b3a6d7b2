package review

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tandemrev/tandemrev/redact"
)

// requiredSections are the headings every reviewer response must carry.
var requiredSections = []string{
	"Summary",
	"Key Findings",
	"Recommendations",
	"Questions / Unknowns",
}

// NormalizeReviewMarkdown ensures the required headings exist in a reviewer
// response without making any model call.
func NormalizeReviewMarkdown(markdown string) string {
	normalized := strings.TrimSpace(markdown)
	if normalized == "" {
		normalized = "## Summary\n*(No content provided by reviewer)*\n"
	}
	for _, section := range requiredSections {
		pattern := regexp.MustCompile(`(?m)^#{2,3}\s+` + regexp.QuoteMeta(section) + `\s*$`)
		if !pattern.MatchString(normalized) {
			normalized += fmt.Sprintf("\n\n## %s\n*(No %s provided by reviewer)*\n", section, section)
		}
	}
	return strings.TrimSpace(normalized)
}

// reviewerErrorMarkdown renders a failed invocation as a well-formed review
// so downstream consumers always see the required sections.
func reviewerErrorMarkdown(modelID, errMsg string) string {
	return "## Summary\n" +
		fmt.Sprintf("**Reviewer Error** for model `%s`.\n\n", modelID) +
		"## Key Findings\n" +
		fmt.Sprintf("- **High**: %s\n\n", errMsg) +
		"## Recommendations\n" +
		"- Ensure the API key is set and model names are valid.\n" +
		"- Verify the model catalog endpoint is reachable.\n\n" +
		"## Questions / Unknowns\n" +
		"- Did the model support tool calling and was a project index available?\n"
}

// outcomeMarkdown returns the renderable body for one reviewer outcome.
func outcomeMarkdown(o *Outcome) string {
	if o.Succeeded() {
		return o.FinalText
	}
	msg := o.ErrorMessage
	if msg == "" {
		msg = string(o.ErrorKind)
	}
	return reviewerErrorMarkdown(o.ModelID, msg)
}

// appendDisclosure adds the resource-usage footer to a reviewer's markdown.
func appendDisclosure(o *Outcome) string {
	lines := []string{"---", fmt.Sprintf("*Model: `%s`*", o.ModelID)}
	if o.IndexUsed {
		lines = append(lines, "*Project index used: yes*")
		if o.IndexUsage.ActivatedProject != "" {
			lines = append(lines, fmt.Sprintf("*Project activated: `%s`*", o.IndexUsage.ActivatedProject))
		}
		if len(o.IndexUsage.Tools) > 0 {
			lines = append(lines, fmt.Sprintf("*Tools invoked: %s*", backtickedList(o.IndexUsage.Tools)))
		}
		if len(o.IndexUsage.Memories) > 0 {
			lines = append(lines, fmt.Sprintf("*Memories used: %s*", backtickedList(o.IndexUsage.Memories)))
		}
		if len(o.IndexUsage.Paths) > 0 {
			lines = append(lines, fmt.Sprintf("*Repo paths used: %s*", backtickedList(o.IndexUsage.Paths)))
		}
	} else {
		lines = append(lines, "*Project index used: no*")
	}
	if o.IndexDisabledReason != "" {
		lines = append(lines, fmt.Sprintf("*Index note: %s*", o.IndexDisabledReason))
	}
	return strings.TrimRight(outcomeMarkdown(o), "\n") + "\n\n" + strings.Join(lines, "\n") + "\n"
}

func backtickedList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "`" + item + "`"
	}
	return strings.Join(quoted, ", ")
}

// FormatAggregate renders the final markdown: normalized reviewer sections
// with disclosure footers, the synthesized summary, and a last redaction
// pass over everything leaving the engine.
func FormatAggregate(primary, secondary *Outcome, summary string) string {
	summaryBody := strings.TrimSpace(summary)
	if summaryBody == "" {
		summaryBody = "Primary and Secondary reviews are provided below."
	}

	var sb strings.Builder
	sb.WriteString("## Primary Reviewer\n\n")
	sb.WriteString(NormalizeReviewMarkdown(appendDisclosure(primary)))
	if secondary != nil {
		sb.WriteString("\n\n## Secondary Reviewer\n\n")
		sb.WriteString(NormalizeReviewMarkdown(appendDisclosure(secondary)))
	}
	sb.WriteString("\n\n## Synthesized Summary\n\n")
	sb.WriteString(summaryBody)
	sb.WriteString("\n")

	return redact.Text(strings.TrimSpace(sb.String()))
}
