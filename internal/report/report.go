// Package report holds the turn and report payload types shared by the
// session engine, the analysis orchestrator and the HTTP surface.
package report

import "chatbi/internal/table"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind distinguishes plain-text turns from report-carrying turns.
type Kind string

const (
	KindText   Kind = "text"
	KindReport Kind = "report"
)

// Mode distinguishes the two report payload shapes.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeAnalysis Mode = "analysis"
)

// Turn is one append-only conversation entry. Exactly one of Text or
// Report is populated, according to Kind.
type Turn struct {
	Role   Role    `json:"role"`
	Kind   Kind    `json:"kind"`
	Text   string  `json:"text,omitempty"`
	Report *Report `json:"report,omitempty"`
}

// Summary describes a simple-mode extraction in the model's own words.
type Summary struct {
	Intent  string `json:"intent"`
	Scope   string `json:"scope"`
	Metrics string `json:"metrics"`
	Logic   string `json:"logic"`
}

// NamedTable pairs a produced table with its display name, preserving
// the order the generating program emitted them in.
type NamedTable struct {
	Name  string
	Table *table.Table
}

// AngleRecord is one completed analysis angle: immutable once appended.
type AngleRecord struct {
	Title       string
	Description string
	Table       *table.Table
	Explanation string
}

// Report is a turn payload: either a simple extraction (Summary+Tables)
// or an analysis (Intent+Angles+Insight), per Mode.
type Report struct {
	ID   string
	Mode Mode

	// Simple mode.
	Summary *Summary
	Tables  []NamedTable

	// Analysis mode.
	Intent  string
	Angles  []AngleRecord
	Insight string
}

// TextTurn builds a plain-text turn.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Kind: KindText, Text: text}
}

// ReportTurn builds an assistant turn carrying a report payload.
func ReportTurn(r *Report) Turn {
	return Turn{Role: RoleAssistant, Kind: KindReport, Report: r}
}
