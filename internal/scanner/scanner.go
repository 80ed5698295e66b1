// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package scanner screens free text written by claimants, such as claim
// descriptions and conversation messages. Input rules catch attempts to
// steer the model that writes approver summaries; upstream rules catch
// credentials that must not leave the gateway.
package scanner

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	cgerr "github.com/sigil-dev/claimsgate/pkg/errors"
)

// Stage selects which rules apply.
type Stage string

const (
	// StageInput is claimant text entering the store.
	StageInput Stage = "input"
	// StageUpstream is claim text about to be sent to a summary provider.
	StageUpstream Stage = "upstream"
)

func (s Stage) Valid() bool {
	return s == StageInput || s == StageUpstream
}

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Match is one rule hit. Start and End are byte offsets into
// Result.Content.
type Match struct {
	Rule     string
	Start    int
	End      int
	Severity Severity
}

// Result is the outcome of Scan. Content is the normalized text the match
// offsets refer to.
type Result struct {
	Content string
	Matches []Match
}

func (r Result) Threat() bool { return len(r.Matches) > 0 }

// Rules lists the distinct rule names that matched, in match order.
func (r Result) Rules() []string {
	var names []string
	for _, m := range r.Matches {
		if !slices.Contains(names, m.Rule) {
			names = append(names, m.Rule)
		}
	}
	return names
}

// DefaultMaxContentLength bounds the text Scan accepts. Longer text is
// reported as a single content_too_large match.
const DefaultMaxContentLength = 1 << 20

type Scanner struct {
	rules  []Rule
	maxLen int
}

// New validates rules and builds a scanner over them.
func New(rules ...Rule) (*Scanner, error) {
	for i, r := range rules {
		switch {
		case r.Name == "":
			return nil, cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "rule %d has no name", i)
		case r.Pattern == nil:
			return nil, cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "rule %s has no pattern", r.Name)
		case !r.Stage.Valid():
			return nil, cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "rule %s has unknown stage %q", r.Name, r.Stage)
		case !r.Severity.Valid():
			return nil, cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "rule %s has unknown severity %q", r.Name, r.Severity)
		}
	}
	return &Scanner{rules: rules, maxLen: DefaultMaxContentLength}, nil
}

// Default returns a scanner over DefaultRules.
func Default() *Scanner {
	s, err := New(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return s
}

// invisible strips zero-width and other invisible code points that would
// otherwise split a keyword past the rules.
var invisible = strings.NewReplacer(
	"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
	"\u00ad", "", "\u034f", "", "\u061c", "", "\u180e", "",
	"\u2060", "", "\u2061", "", "\u2062", "", "\u2063", "",
	"\u2064", "", "\u206a", "", "\u206b", "", "\u206c", "",
	"\u206d", "", "\u206e", "", "\u206f", "", "\ufff9", "",
	"\ufffa", "", "\ufffb", "",
)

// Normalize strips invisible characters and applies NFKC so homoglyph
// variants collapse onto the ASCII forms the rules expect.
func Normalize(s string) string {
	return norm.NFKC.String(invisible.Replace(s))
}

// Scan runs the rules for stage over the normalized content.
func (s *Scanner) Scan(stage Stage, content string) (Result, error) {
	if !stage.Valid() {
		return Result{}, cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "unknown scan stage %q", stage)
	}

	content = Normalize(content)
	res := Result{Content: content}
	if len(content) > s.maxLen {
		res.Matches = []Match{{Rule: "content_too_large", End: len(content), Severity: SeverityHigh}}
		return res, nil
	}

	for _, r := range s.rules {
		if r.Stage != stage {
			continue
		}
		for _, loc := range r.Pattern.FindAllStringIndex(content, -1) {
			res.Matches = append(res.Matches, Match{Rule: r.Name, Start: loc[0], End: loc[1], Severity: r.Severity})
		}
	}
	return res, nil
}

// Mode decides what happens to text with matches.
type Mode string

const (
	ModeBlock  Mode = "block"
	ModeFlag   Mode = "flag"
	ModeRedact Mode = "redact"
)

func (m Mode) Valid() bool {
	return m == ModeBlock || m == ModeFlag || m == ModeRedact
}

// ParseMode is case-insensitive.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", cgerr.Errorf(cgerr.CodeConfigValidateInvalidValue, "unknown scanner mode %q (want block, flag or redact)", s)
	}
	return m, nil
}

// Apply returns the text to keep for content under mode. Flag keeps the
// caller's original text; redact works on the normalized text because the
// match offsets refer to it; block fails with scanner.content.invalid.
func Apply(mode Mode, content string, res Result) (string, error) {
	if !res.Threat() {
		return content, nil
	}
	switch mode {
	case ModeFlag:
		return content, nil
	case ModeRedact:
		return Redact(res), nil
	case ModeBlock:
		return "", cgerr.New(cgerr.CodeScannerContentInvalid, "content rejected by scanner",
			cgerr.Field("rules", strings.Join(res.Rules(), ",")))
	default:
		return "", cgerr.Errorf(cgerr.CodeScannerRuleInvalid, "unknown scanner mode %q", mode)
	}
}

// Redact replaces every matched span of res.Content with [REDACTED].
// Overlapping spans are merged first.
func Redact(res Result) string {
	ms := slices.DeleteFunc(slices.Clone(res.Matches), func(m Match) bool {
		return m.Start < 0 || m.End < m.Start
	})
	if len(ms) == 0 {
		return res.Content
	}
	slices.SortFunc(ms, func(a, b Match) int { return a.Start - b.Start })

	type span struct{ start, end int }
	spans := []span{{ms[0].Start, ms[0].End}}
	for _, m := range ms[1:] {
		last := &spans[len(spans)-1]
		if m.Start <= last.end {
			last.end = max(last.end, m.End)
			continue
		}
		spans = append(spans, span{m.Start, m.End})
	}

	var b strings.Builder
	b.Grow(len(res.Content))
	pos := 0
	for _, sp := range spans {
		end := min(sp.end, len(res.Content))
		b.WriteString(res.Content[pos:sp.start])
		b.WriteString("[REDACTED]")
		pos = end
	}
	b.WriteString(res.Content[pos:])
	return b.String()
}
