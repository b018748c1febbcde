// Package synth turns user questions into executable plans by prompting
// the model and parsing its JSON replies. Parsing is forgiving about
// markdown fences and prose around the payload; it is strict about the
// payload itself carrying runnable code.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chatbi/internal/gateway"
	"chatbi/internal/logging"
	"chatbi/internal/prompt"
	"chatbi/internal/report"
	"chatbi/internal/temporal"
)

// ErrNoUsablePlan marks a model reply that parsed but carried nothing
// executable (no code, or no angles).
var ErrNoUsablePlan = errors.New("model returned no usable plan")

// SimplePlan is a direct-extraction plan: a structured summary of the
// request plus one program.
type SimplePlan struct {
	Summary report.Summary `json:"summary"`
	Code    string         `json:"code"`
}

// AnglePlan is one angle of an analysis decomposition.
type AnglePlan struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// AnalysisPlan is a multi-angle decomposition of an open question.
type AnalysisPlan struct {
	IntentAnalysis string      `json:"intent_analysis"`
	Angles         []AnglePlan `json:"angles"`
}

// Planner builds plans through the model gateway.
type Planner struct {
	gw gateway.Client
}

// NewPlanner creates a planner over the given gateway client.
func NewPlanner(gw gateway.Client) *Planner {
	return &Planner{gw: gw}
}

// PlanSimple asks the strong model for an extraction plan.
func (p *Planner) PlanSimple(ctx context.Context, query, metadata, history string, win *temporal.Windows) (*SimplePlan, error) {
	raw, err := p.gw.Generate(ctx, prompt.SimplePrompt(query, metadata, history, win), true)
	if err != nil {
		return nil, err
	}
	var plan SimplePlan
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &plan); err != nil {
		logging.SynthError("simple plan parse failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrNoUsablePlan, err)
	}
	if strings.TrimSpace(plan.Code) == "" {
		return nil, ErrNoUsablePlan
	}
	logging.Synth("simple plan: intent=%q code_len=%d", plan.Summary.Intent, len(plan.Code))
	return &plan, nil
}

// PlanAnalysis asks the strong model for an angle decomposition. The
// reply is free text with a JSON object embedded, so the payload is
// located by brace extraction before parsing.
func (p *Planner) PlanAnalysis(ctx context.Context, query, metadata, history string, win *temporal.Windows) (*AnalysisPlan, error) {
	raw, err := p.gw.Generate(ctx, prompt.AnalysisPlanPrompt(query, metadata, history, win), false)
	if err != nil {
		return nil, err
	}
	payload := ExtractJSON(CleanJSON(raw))
	var plan AnalysisPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		logging.SynthError("analysis plan parse failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrNoUsablePlan, err)
	}
	angles := plan.Angles[:0]
	for _, a := range plan.Angles {
		if strings.TrimSpace(a.Code) != "" {
			angles = append(angles, a)
		}
	}
	plan.Angles = angles
	if len(plan.Angles) == 0 {
		return nil, ErrNoUsablePlan
	}
	logging.Synth("analysis plan: %d angles", len(plan.Angles))
	return &plan, nil
}

// CleanJSON strips markdown code fences around a JSON payload.
func CleanJSON(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
// Input without braces comes back unchanged.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
