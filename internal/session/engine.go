package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatbi/internal/analysis"
	"chatbi/internal/config"
	"chatbi/internal/dataset"
	"chatbi/internal/gateway"
	"chatbi/internal/logging"
	"chatbi/internal/prompt"
	"chatbi/internal/report"
	"chatbi/internal/router"
	"chatbi/internal/sandbox"
	"chatbi/internal/synth"
	"chatbi/internal/temporal"
)

// Engine wires the pipeline stages together and drives one turn at a
// time. It is safe to share one engine across sessions; all per-turn
// state lives in frames and sessions.
type Engine struct {
	cfg *config.Config
	gw  gateway.Client
	ds  *dataset.Dataset

	win  *temporal.Windows // nil when no period column was found
	meta string

	router  *router.Router
	planner *synth.Planner
	exec    *sandbox.Executor
	orch    *analysis.Orchestrator
}

// NewEngine builds an engine over a loaded dataset. A dataset without a
// recognizable period column still works; temporal slices just stay
// empty and the prompts say so.
func NewEngine(cfg *config.Config, gw gateway.Client, ds *dataset.Dataset) (*Engine, error) {
	win, err := temporal.Resolve(ds.Table)
	if err != nil {
		if !errors.Is(err, temporal.ErrNoPeriodColumn) {
			return nil, fmt.Errorf("temporal resolution failed: %w", err)
		}
		logging.Session("no period column in %s, temporal windows disabled", ds.Name)
		win = nil
	}

	planner := synth.NewPlanner(gw)
	exec := sandbox.NewExecutor(cfg.GetSandboxTimeout())
	return &Engine{
		cfg:     cfg,
		gw:      gw,
		ds:      ds,
		win:     win,
		meta:    prompt.BuildMetadata(ds.Table, win),
		router:  router.New(gw),
		planner: planner,
		exec:    exec,
		orch:    analysis.NewOrchestrator(gw, planner, exec, cfg.GetAnglePacing()),
	}, nil
}

// Windows exposes the resolved temporal windows (nil when absent).
func (e *Engine) Windows() *temporal.Windows { return e.win }

// Dataset exposes the engine's dataset.
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// HandleTurn processes one user question end to end and appends both
// the user turn and the assistant turn to the session. The returned
// turn is always the assistant's; pipeline failures that have a
// sensible conversational rendering become text turns instead of
// errors.
func (e *Engine) HandleTurn(ctx context.Context, s *Session, query string) (report.Turn, error) {
	// The digest must not include the turn being handled.
	history := prompt.CompactHistory(s.History(), e.cfg.Limits.HistoryTurns)
	s.Append(report.TextTurn(report.RoleUser, query))
	logging.Session("turn start session=%s query_len=%d", s.ID, len(query))

	intent, err := e.router.Route(ctx, query, history)
	if err != nil {
		return e.failTurn(s, fmt.Errorf("routing failed: %w", err))
	}
	if s.Interrupted() {
		return e.textTurn(s, "Stopped. Ask away."), nil
	}

	switch intent {
	case router.IntentIrrelevant:
		return e.textTurn(s, "That question is outside this dataset. Ask about the data and I can dig in."), nil
	case router.IntentSimple:
		return e.handleSimple(ctx, s, query, history)
	default:
		return e.handleAnalysis(ctx, s, query, history)
	}
}

func (e *Engine) handleSimple(ctx context.Context, s *Session, query, history string) (report.Turn, error) {
	plan, err := e.planner.PlanSimple(ctx, query, e.meta, history, e.win)
	if err != nil {
		if errors.Is(err, synth.ErrNoUsablePlan) {
			return e.textTurn(s, "I could not build a plan for that. Try rephrasing with the metric and scope spelled out."), nil
		}
		return e.failTurn(s, fmt.Errorf("planning failed: %w", err))
	}
	if s.Interrupted() {
		return e.textTurn(s, "Stopped. Ask away."), nil
	}

	outcome, err := e.exec.Execute(ctx, plan.Code, e.NewFrame())
	if err != nil {
		logging.SessionError("simple execution failed: %v", err)
		return e.textTurn(s, fmt.Sprintf("The extraction step failed: %v", err)), nil
	}
	if outcome.Empty() {
		return e.textTurn(s, "The query ran but matched no data. Check the spelling of names and periods."), nil
	}

	summary := plan.Summary
	r := &report.Report{
		ID:      uuid.NewString(),
		Mode:    report.ModeSimple,
		Summary: &summary,
		Tables:  outcome.Tables,
	}
	turn := report.ReportTurn(r)
	s.Append(turn)
	logging.Session("turn done: simple, %d tables", len(r.Tables))
	return turn, nil
}

func (e *Engine) handleAnalysis(ctx context.Context, s *Session, query, history string) (report.Turn, error) {
	r, err := e.orch.Run(ctx, analysis.Request{
		Query:     query,
		Metadata:  e.meta,
		History:   history,
		Windows:   e.win,
		NewFrame:  e.NewFrame,
		Interrupt: s.Interrupted,
	})
	if err != nil {
		switch {
		case errors.Is(err, synth.ErrNoUsablePlan):
			return e.textTurn(s, "I could not decompose that question into analysis angles. Try narrowing it."), nil
		case errors.Is(err, analysis.ErrNoFindings):
			return e.textTurn(s, "Every analysis angle came back empty. The data may not cover what you asked."), nil
		case errors.Is(err, analysis.ErrInterrupted):
			return e.textTurn(s, "Stopped. Ask away."), nil
		default:
			return e.failTurn(s, fmt.Errorf("analysis failed: %w", err))
		}
	}
	turn := report.ReportTurn(r)
	s.Append(turn)
	logging.Session("turn done: analysis, %d angles", len(r.Angles))
	return turn, nil
}

// NewFrame builds a fresh execution frame over the dataset with the
// session's temporal slices bound.
func (e *Engine) NewFrame() *sandbox.Frame {
	f := sandbox.NewFrame(e.ds.Table)
	if e.win != nil {
		f.MAT = e.win.MAT
		f.MATPrior = e.win.MATPrior
		f.YTD = e.win.YTD
		f.YTDPrior = e.win.YTDPrior
		f.MATComplete = e.win.MATComplete
	}
	return f
}

func (e *Engine) textTurn(s *Session, text string) report.Turn {
	turn := report.TextTurn(report.RoleAssistant, text)
	s.Append(turn)
	return turn
}

func (e *Engine) failTurn(s *Session, err error) (report.Turn, error) {
	logging.SessionError("turn failed: %v", err)
	turn := report.TextTurn(report.RoleAssistant, fmt.Sprintf("Something went wrong: %v", err))
	s.Append(turn)
	return turn, err
}
