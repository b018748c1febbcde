package prompt

import (
	"fmt"

	"chatbi/internal/temporal"
)

// codeContract spells out the sandbox capability surface for generated
// programs. Every synthesis prompt embeds it verbatim so the model never
// has to guess which identifiers exist.
const codeContract = `CODE CONTRACT (these rules must be followed):
0. The program is Go source. It must start with 'package main', import only "bi",
   and define exactly: func Run(f *bi.Frame)
1. The ONLY data source is f.DF (a *bi.Table). Never assume any other variable
   or dataset exists. If a slice of the data is needed (one province, one year),
   filter it explicitly first, e.g. sub := f.DF.FilterEq("Province", "Hainan").
2. Available Table methods: FilterEq(col, value), FilterIn(col, values),
   Filter(func(r bi.Row) bool), Select(cols...), Head(n), Sum(col),
   GroupBySum(keyCol, valueCols...), SortBy(col, descending), WithColumn(name, fn).
   Row accessors: r.Str(col), r.Num(col).
3. Temporal windows are pre-bound string slices: f.MAT, f.MATPrior, f.YTD,
   f.YTDPrior (period labels for the period column). f.MATComplete reports
   whether a full prior MAT exists.
4. NO plotting, NO file or network access, NO identifiers beyond this surface.`

// RouterPrompt asks for a three-way intent classification as JSON.
func RouterPrompt(query, history string) string {
	return fmt.Sprintf(`Classify the user's intent from the current question and the history.
Current question: %q
[History]:
%s
Classify it as exactly one of:
1. "simple": direct extraction, sorting, ranking, or a basic metric computation.
2. "analysis": an open-ended question seeking insight, causes, or market structure.
3. "irrelevant": chit-chat entirely unrelated to the data.
Output ONLY JSON: {"type": "simple" | "analysis" | "irrelevant"}`, query, history)
}

// SimplePrompt asks for a simple-mode extraction plan: a structured
// summary plus a program that records named result tables.
func SimplePrompt(query, metadata, history string, win *temporal.Windows) string {
	return fmt.Sprintf(`You are a data transformation expert. User request: %q
[Metadata]
%s
[History]
%s
[Temporal context] MAT: %v, YTD: %v

%s
5. Record every final table with f.SetResult("Title", value). Use one call per table.

Output ONLY JSON:
{
  "summary": {"intent": "...", "scope": "...", "metrics": "...", "logic": "..."},
  "code": "package main\n\nimport \"bi\"\n\nfunc Run(f *bi.Frame) {\n  ...\n}"
}`, query, metadata, history, windowList(win, false), windowList(win, true), codeContract)
}

// AnalysisPlanPrompt asks for a 2-5 angle decomposition of an open
// question, each angle carrying its own program.
func AnalysisPlanPrompt(query, metadata, history string, win *temporal.Windows) string {
	return fmt.Sprintf(`You are a business intelligence expert. Decompose the question %q
into 2-5 analysis angles, combining temporal dynamics (MAT/YTD) with a competitive view.

[Metadata]
%s
[History]
%s
[Temporal context] MAT: %v, YTD: %v

%s
5. Each angle's program assigns its final value to f.Result.

Output ONLY JSON:
{
  "intent_analysis": "a deep reading of what the user wants (markdown)",
  "angles": [
    {"title": "...", "description": "...", "code": "package main\n\nimport \"bi\"\n\nfunc Run(f *bi.Frame) {\n  f.Result = ...\n}"}
  ]
}`, query, metadata, history, windowList(win, false), windowList(win, true), codeContract)
}

// ExplainPrompt asks for a short narrative reading of one result table.
func ExplainPrompt(preview string) string {
	return fmt.Sprintf(`Interpret this data in depth (at most ~200 words).
Data preview:
%s
Distill the trends and anomalies, tie them to their business meaning, keep the tone professional.`, preview)
}

// FinalInsightPrompt asks for the cross-angle synthesis, facts only.
func FinalInsightPrompt(query, findings string) string {
	return fmt.Sprintf(`Question: %q
Findings per angle:
%s
Produce the final insight (markdown). State facts only. No recommendations.`, query, findings)
}

func windowList(win *temporal.Windows, ytd bool) []string {
	if win == nil {
		return nil
	}
	if ytd {
		return win.YTD
	}
	return win.MAT
}
