package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatbi/internal/config"
	"chatbi/internal/dataset"
	"chatbi/internal/report"
)

// fakeClient routes by call kind and prompt shape so one fake can drive
// the whole pipeline.
type fakeClient struct {
	intent       string
	simplePlan   string
	analysisPlan string
	insight      string

	classifyPrompts []string
}

func (f *fakeClient) Classify(ctx context.Context, prompt string) (string, error) {
	f.classifyPrompts = append(f.classifyPrompts, prompt)
	return `{"type":"` + f.intent + `"}`, nil
}

func (f *fakeClient) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	if strings.Contains(prompt, "Findings per angle") {
		return f.insight, nil
	}
	if jsonOutput {
		return f.simplePlan, nil
	}
	return f.analysisPlan, nil
}

func (f *fakeClient) Summarize(ctx context.Context, text string) (string, error) {
	return "narrated", nil
}

const simplePlanJSON = `{
	"summary": {"intent": "ranking", "scope": "provinces", "metrics": "Sales", "logic": "group and sort"},
	"code": "package main\n\nimport \"bi\"\n\nfunc Run(f *bi.Frame) { f.SetResult(\"Ranking\", f.DF.GroupBySum(\"Province\", \"Sales\").SortBy(\"Sales\", true)) }"
}`

const analysisPlanJSON = `{
	"intent_analysis": "growth drivers",
	"angles": [
		{"title": "Trend", "description": "d", "code": "package main\n\nimport \"bi\"\n\nfunc Run(f *bi.Frame) { f.Result = f.DF.FilterIn(\"年季\", f.MAT).Sum(\"Sales\") }"}
	]
}`

func newTestEngine(t *testing.T, gw *fakeClient) *Engine {
	t.Helper()
	dataset.ResetCache()
	path := filepath.Join(t.TempDir(), "sales.csv")
	csv := "Province,年季,Sales\n" +
		"Hainan,2024Q3,90\nHainan,2024Q4,100\nHainan,2025Q1,120\n" +
		"Yunnan,2024Q3,70\nYunnan,2024Q4,80\nYunnan,2025Q1,90\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Execution.AnglePacing = "0s"
	engine, err := NewEngine(cfg, gw, ds)
	if err != nil {
		t.Fatal(err)
	}
	return engine
}

func TestHandleTurnSimple(t *testing.T) {
	gw := &fakeClient{intent: "simple", simplePlan: simplePlanJSON}
	engine := newTestEngine(t, gw)
	s := NewSession()

	turn, err := engine.HandleTurn(context.Background(), s, "rank provinces by sales")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if turn.Kind != report.KindReport || turn.Report.Mode != report.ModeSimple {
		t.Fatalf("turn = %+v", turn)
	}
	if turn.Report.Summary.Intent != "ranking" {
		t.Errorf("summary = %+v", turn.Report.Summary)
	}
	if len(turn.Report.Tables) != 1 || turn.Report.Tables[0].Name != "Ranking" {
		t.Fatalf("tables = %+v", turn.Report.Tables)
	}
	if got := turn.Report.Tables[0].Table.Rows[0][0]; got != "Hainan" {
		t.Errorf("top row = %v", got)
	}
	if len(s.History()) != 2 {
		t.Errorf("history = %d turns, want user+assistant", len(s.History()))
	}
}

func TestHandleTurnAnalysis(t *testing.T) {
	gw := &fakeClient{intent: "analysis", analysisPlan: analysisPlanJSON, insight: "premium led"}
	engine := newTestEngine(t, gw)
	s := NewSession()

	turn, err := engine.HandleTurn(context.Background(), s, "why is the market growing?")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if turn.Report == nil || turn.Report.Mode != report.ModeAnalysis {
		t.Fatalf("turn = %+v", turn)
	}
	if len(turn.Report.Angles) != 1 || turn.Report.Angles[0].Explanation != "narrated" {
		t.Errorf("angles = %+v", turn.Report.Angles)
	}
	if turn.Report.Insight != "premium led" {
		t.Errorf("insight = %q", turn.Report.Insight)
	}
}

func TestHandleTurnIrrelevant(t *testing.T) {
	gw := &fakeClient{intent: "irrelevant"}
	engine := newTestEngine(t, gw)
	turn, err := engine.HandleTurn(context.Background(), NewSession(), "tell me a joke")
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if turn.Kind != report.KindText {
		t.Errorf("turn = %+v", turn)
	}
}

func TestHandleTurnUnusablePlanBecomesText(t *testing.T) {
	gw := &fakeClient{intent: "simple", simplePlan: "I refuse to answer in JSON"}
	engine := newTestEngine(t, gw)
	turn, err := engine.HandleTurn(context.Background(), NewSession(), "rank provinces")
	if err != nil {
		t.Fatalf("an unusable plan should not surface as an error: %v", err)
	}
	if turn.Kind != report.KindText || !strings.Contains(turn.Text, "could not build a plan") {
		t.Errorf("turn = %+v", turn)
	}
}

func TestHandleTurnHistoryExcludesCurrentQuestion(t *testing.T) {
	gw := &fakeClient{intent: "irrelevant"}
	engine := newTestEngine(t, gw)
	s := NewSession()

	if _, err := engine.HandleTurn(context.Background(), s, "first question"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gw.classifyPrompts[0], "No prior conversation.") {
		t.Errorf("first turn should see empty history:\n%s", gw.classifyPrompts[0])
	}

	if _, err := engine.HandleTurn(context.Background(), s, "second question"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gw.classifyPrompts[1], "first question") {
		t.Errorf("second turn should see the first in history")
	}
	if strings.Contains(strings.SplitN(gw.classifyPrompts[1], "[History]", 2)[1], "second question") {
		t.Errorf("the question being handled must not appear in its own history digest")
	}
}

func TestSessionAbortAndDraft(t *testing.T) {
	s := NewSession()
	s.Abort("follow-up question")
	if !s.Interrupted() {
		t.Fatalf("abort should set the interrupt flag")
	}
	if draft := s.TakeDraft(); draft != "follow-up question" {
		t.Errorf("draft = %q", draft)
	}
	if s.Interrupted() {
		t.Errorf("TakeDraft should clear the interrupt flag")
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession()
	s.Append(report.TextTurn(report.RoleUser, "hi"))
	s.Abort("draft")
	s.Reset()
	if len(s.History()) != 0 || s.Interrupted() {
		t.Errorf("reset should clear turns and interrupt state")
	}
}

func TestNewEngineWithoutPeriodColumn(t *testing.T) {
	dataset.ResetCache()
	path := filepath.Join(t.TempDir(), "plain.csv")
	if err := os.WriteFile(path, []byte("Name,Sales\nx,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(config.DefaultConfig(), &fakeClient{intent: "irrelevant"}, ds)
	if err != nil {
		t.Fatalf("a dataset without periods should still work: %v", err)
	}
	if engine.Windows() != nil {
		t.Errorf("windows should be nil")
	}
	frame := engine.NewFrame()
	if len(frame.MAT) != 0 {
		t.Errorf("frame should carry empty windows")
	}
	if _, err := engine.HandleTurn(context.Background(), NewSession(), "hello"); err != nil {
		t.Errorf("HandleTurn: %v", err)
	}
}

var errQuota = errors.New("quota exhausted")

type failingClient struct{ fakeClient }

func (f *failingClient) Classify(ctx context.Context, prompt string) (string, error) {
	return "", errQuota
}

func TestHandleTurnRoutingFailure(t *testing.T) {
	dataset.ResetCache()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte("Province,Sales\nx,1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	engine, err := NewEngine(config.DefaultConfig(), &failingClient{}, ds)
	if err != nil {
		t.Fatal(err)
	}
	turn, err := engine.HandleTurn(context.Background(), NewSession(), "q")
	if !errors.Is(err, errQuota) {
		t.Errorf("err = %v, want the gateway error", err)
	}
	if turn.Kind != report.KindText {
		t.Errorf("a failed turn still yields a conversational error turn: %+v", turn)
	}
}
