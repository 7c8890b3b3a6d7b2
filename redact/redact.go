// Package redact masks common secret patterns (API keys, tokens, private key
// blocks) in text that flows through the engine: direct review inputs, tool
// results and the final aggregated output. Matching is best-effort and
// intentionally conservative; it may over-redact.
package redact

import "regexp"

// Rule pairs a named pattern with its replacement.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

const placeholder = "[REDACTED]"

// DefaultRules covers the token shapes most likely to leak through review
// inputs or repository files.
var DefaultRules = []Rule{
	{Name: "openrouter_api_key", Pattern: regexp.MustCompile(`\bsk-or-v1-[A-Za-z0-9]{16,}\b`), Replacement: placeholder},
	{Name: "openai_like_api_key", Pattern: regexp.MustCompile(`\bsk-[A-Za-z0-9]{16,}\b`), Replacement: placeholder},
	{Name: "github_pat", Pattern: regexp.MustCompile(`\bghp_[A-Za-z0-9]{20,}\b`), Replacement: placeholder},
	{Name: "github_fine_grained_pat", Pattern: regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,}\b`), Replacement: placeholder},
	{Name: "aws_access_key_id", Pattern: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), Replacement: placeholder},
	{Name: "jwt", Pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`), Replacement: placeholder},
	{Name: "pem_private_key", Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`), Replacement: placeholder},
}

// Text applies DefaultRules to the input.
func Text(s string) string {
	return WithRules(s, DefaultRules)
}

// WithRules applies the given rules in order.
func WithRules(s string, rules []Rule) string {
	out := s
	for _, r := range rules {
		out = r.Pattern.ReplaceAllString(out, r.Replacement)
	}
	return out
}

// ContainsSecret reports whether any default rule still matches the input.
func ContainsSecret(s string) bool {
	for _, r := range DefaultRules {
		if r.Pattern.MatchString(s) {
			return true
		}
	}
	return false
}
