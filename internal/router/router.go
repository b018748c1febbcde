// Package router classifies each incoming question into one of three
// intents before any expensive planning happens.
package router

import (
	"context"
	"encoding/json"
	"strings"

	"chatbi/internal/gateway"
	"chatbi/internal/logging"
	"chatbi/internal/prompt"
	"chatbi/internal/synth"
)

// Intent is the routing decision for a question.
type Intent string

const (
	IntentSimple     Intent = "simple"
	IntentAnalysis   Intent = "analysis"
	IntentIrrelevant Intent = "irrelevant"
)

// Router asks the fast model for an intent label.
type Router struct {
	gw gateway.Client
}

// New creates a router over the given gateway client.
func New(gw gateway.Client) *Router {
	return &Router{gw: gw}
}

// Route classifies the question. Gateway failures propagate so retry
// exhaustion surfaces to the caller; a reply that parses to nothing
// recognizable falls back to analysis, which handles any data question.
func (r *Router) Route(ctx context.Context, query, history string) (Intent, error) {
	raw, err := r.gw.Classify(ctx, prompt.RouterPrompt(query, history))
	if err != nil {
		return "", err
	}

	var decision struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(synth.CleanJSON(raw)), &decision); err != nil {
		logging.RouterWarn("unparseable routing reply, defaulting to analysis: %v", err)
		return IntentAnalysis, nil
	}

	switch Intent(strings.ToLower(strings.TrimSpace(decision.Type))) {
	case IntentSimple:
		logging.Router("intent=simple")
		return IntentSimple, nil
	case IntentIrrelevant:
		logging.Router("intent=irrelevant")
		return IntentIrrelevant, nil
	default:
		logging.Router("intent=analysis (label %q)", decision.Type)
		return IntentAnalysis, nil
	}
}
