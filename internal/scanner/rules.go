// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package scanner

import (
	"regexp"
	"slices"
)

// Rule is one detection pattern bound to a stage.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Stage    Stage
	Severity Severity
}

// DefaultRules returns InputRules followed by UpstreamRules.
func DefaultRules() []Rule {
	return slices.Concat(InputRules(), UpstreamRules())
}

// InputRules catch text aimed at the summary model rather than the
// approver.
func InputRules() []Rule {
	return []Rule{
		{
			Name:     "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)(ignore|disregard|override|forget|do\s+not\s+follow)\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
			Stage:    StageInput,
			Severity: SeverityHigh,
		},
		{
			Name:     "role_confusion",
			Pattern:  regexp.MustCompile(`(?i)you\s+are\s+now\s+\w+[,.]?\s*(do|ignore|forget|disregard)`),
			Stage:    StageInput,
			Severity: SeverityHigh,
		},
		{
			Name:     "system_block_injection",
			Pattern:  regexp.MustCompile(`(?i)(?:<\|?system\|?>|\[system\]|<<SYS>>|` + "```" + `system\b)`),
			Stage:    StageInput,
			Severity: SeverityHigh,
		},
		{
			Name:     "decision_steering",
			Pattern:  regexp.MustCompile(`(?i)(recommend|mark|classify|rate)\s+(this\s+claim\s+)?(as\s+)?(approved|low[\s-]risk)\b`),
			Stage:    StageInput,
			Severity: SeverityMedium,
		},
		{
			Name:     "new_task_injection",
			Pattern:  regexp.MustCompile(`(?i)(new\s+task:|from\s+now\s+on,?\s+you)`),
			Stage:    StageInput,
			Severity: SeverityMedium,
		},
	}
}

// UpstreamRules catch credentials claimants paste into descriptions.
func UpstreamRules() []Rule {
	specs := []struct {
		name     string
		pattern  string
		severity Severity
	}{
		{"aws_access_key", `AKIA[0-9A-Z]{16}`, SeverityHigh},
		{"anthropic_api_key", `sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`, SeverityHigh},
		{"openai_api_key", `sk-proj-[A-Za-z0-9_-]{20,}`, SeverityHigh},
		{"openai_legacy_key", `sk-[A-Za-z0-9]{40,}`, SeverityMedium},
		{"google_api_key", `AIza[0-9A-Za-z_-]{35}`, SeverityHigh},
		{"github_pat", `ghp_[A-Za-z0-9]{36}`, SeverityHigh},
		{"github_fine_grained_pat", `github_pat_[A-Za-z0-9_]{22,}`, SeverityHigh},
		{"slack_token", `xox[bpas]-[A-Za-z0-9-]+`, SeverityHigh},
		{"bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`, SeverityHigh},
		{"pem_private_key", `-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`, SeverityHigh},
		{"database_connection_string", `(?i)(postgres(?:ql)?|mysql|mongodb|redis)://[^\s:@]+:[^\s@]+@[^\s]+`, SeverityHigh},
		{"keyring_uri", `keyring://[^\s]+`, SeverityMedium},
		{"payment_card", `\b(?:4\d{3}|5[1-5]\d{2}|3[47]\d{2})(?:[ -]?\d{4}){2}[ -]?\d{3,4}\b`, SeverityHigh},
	}
	rules := make([]Rule, len(specs))
	for i, s := range specs {
		rules[i] = Rule{Name: s.name, Pattern: regexp.MustCompile(s.pattern), Stage: StageUpstream, Severity: s.severity}
	}
	return rules
}
