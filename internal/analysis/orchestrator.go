// Package analysis runs the multi-angle pipeline for open questions:
// plan the angles, execute and narrate each one, then synthesize a
// final insight across everything that survived.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatbi/internal/gateway"
	"chatbi/internal/logging"
	"chatbi/internal/prompt"
	"chatbi/internal/report"
	"chatbi/internal/sandbox"
	"chatbi/internal/synth"
	"chatbi/internal/table"
	"chatbi/internal/temporal"
)

// ErrNoFindings marks a run where every angle failed or produced no
// data, leaving nothing to synthesize.
var ErrNoFindings = errors.New("no analysis angle produced findings")

// Request is one analysis run. NewFrame must return a fresh frame per
// call; angles never share state. Interrupt, when non-nil, is polled
// before each angle and aborts the run cleanly.
type Request struct {
	Query     string
	Metadata  string
	History   string
	Windows   *temporal.Windows
	NewFrame  func() *sandbox.Frame
	Interrupt func() bool
}

// ErrInterrupted marks a run the user aborted mid-flight.
var ErrInterrupted = errors.New("analysis interrupted")

// Orchestrator drives analysis runs.
type Orchestrator struct {
	gw      gateway.Client
	planner *synth.Planner
	exec    *sandbox.Executor
	pacing  time.Duration

	sleep func(time.Duration) // injectable for tests
}

// NewOrchestrator creates an orchestrator. Pacing is the delay inserted
// between consecutive angles to stay under the model's rate ceiling.
func NewOrchestrator(gw gateway.Client, planner *synth.Planner, exec *sandbox.Executor, pacing time.Duration) *Orchestrator {
	return &Orchestrator{gw: gw, planner: planner, exec: exec, pacing: pacing, sleep: time.Sleep}
}

// Run executes the full analysis pipeline. Individual angle failures
// (bad code, empty output, failed narration) drop that angle and the
// run continues; only planning failure, interruption, or a fully empty
// run abort it.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*report.Report, error) {
	plan, err := o.planner.PlanAnalysis(ctx, req.Query, req.Metadata, req.History, req.Windows)
	if err != nil {
		return nil, err
	}
	logging.Analysis("run start: %d angles", len(plan.Angles))

	records := make([]report.AngleRecord, 0, len(plan.Angles))
	for n, angle := range plan.Angles {
		if req.Interrupt != nil && req.Interrupt() {
			logging.Analysis("interrupted before angle %d", n+1)
			return nil, ErrInterrupted
		}
		if n > 0 && o.pacing > 0 {
			o.sleep(o.pacing)
		}

		rec, ok := o.runAngle(ctx, req, angle)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoFindings
	}

	insight, err := o.gw.Generate(ctx, prompt.FinalInsightPrompt(req.Query, findingsDigest(records)), false)
	if err != nil {
		return nil, fmt.Errorf("final insight failed: %w", err)
	}

	logging.Analysis("run done: %d/%d angles kept", len(records), len(plan.Angles))
	return &report.Report{
		ID:      uuid.NewString(),
		Mode:    report.ModeAnalysis,
		Intent:  plan.IntentAnalysis,
		Angles:  records,
		Insight: insight,
	}, nil
}

// runAngle executes and narrates one angle. Any failure drops the angle.
func (o *Orchestrator) runAngle(ctx context.Context, req Request, angle synth.AnglePlan) (report.AngleRecord, bool) {
	frame := req.NewFrame()
	outcome, err := o.exec.Execute(ctx, angle.Code, frame)
	if err != nil {
		logging.AnalysisWarn("angle %q dropped: %v", angle.Title, err)
		return report.AngleRecord{}, false
	}
	if outcome.Empty() {
		logging.AnalysisWarn("angle %q produced no data", angle.Title)
		return report.AngleRecord{}, false
	}

	tbl := outcome.Tables[0].Table
	explanation, err := o.gw.Summarize(ctx, prompt.ExplainPrompt(table.Render(tbl, 20)))
	if err != nil {
		logging.AnalysisWarn("angle %q narration failed: %v", angle.Title, err)
		return report.AngleRecord{}, false
	}

	return report.AngleRecord{
		Title:       angle.Title,
		Description: angle.Description,
		Table:       tbl,
		Explanation: explanation,
	}, true
}

func findingsDigest(records []report.AngleRecord) string {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.Title, r.Explanation)
	}
	return b.String()
}
