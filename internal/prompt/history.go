package prompt

import (
	"fmt"
	"strings"

	"chatbi/internal/report"
)

// CompactHistory reduces prior turns to a bounded digest for prompt
// inclusion. Only the last turnLimit user/assistant pairs are kept;
// report turns are collapsed to their intent, findings and insight.
func CompactHistory(turns []report.Turn, turnLimit int) string {
	if len(turns) == 0 {
		return "No prior conversation."
	}
	start := len(turns) - turnLimit*2
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, len(turns)-start)
	for _, t := range turns[start:] {
		role := "AI"
		if t.Role == report.RoleUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, digestTurn(t)))
	}
	return strings.Join(lines, "\n")
}

func digestTurn(t report.Turn) string {
	if t.Kind == report.KindText || t.Report == nil {
		return t.Text
	}
	r := t.Report
	if r.Mode == report.ModeSimple {
		s := r.Summary
		if s == nil {
			s = &report.Summary{}
		}
		return fmt.Sprintf("[prior extract] intent: %s, logic: %s", s.Intent, s.Logic)
	}
	findings := make([]string, 0, len(r.Angles))
	for _, a := range r.Angles {
		findings = append(findings, fmt.Sprintf("<%s: %s>", a.Title, a.Explanation))
	}
	return fmt.Sprintf("[prior analysis] intent: %s | findings: %s | insight: %s",
		r.Intent, strings.Join(findings, "; "), r.Insight)
}
