package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatbi/internal/config"
	"chatbi/internal/dataset"
	"chatbi/internal/session"
)

type fakeClient struct {
	intent string
	plan   string
}

func (f *fakeClient) Classify(ctx context.Context, prompt string) (string, error) {
	return `{"type":"` + f.intent + `"}`, nil
}
func (f *fakeClient) Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error) {
	return f.plan, nil
}
func (f *fakeClient) Summarize(ctx context.Context, text string) (string, error) {
	return "narrated", nil
}

const rankingPlan = `{
	"summary": {"intent": "ranking", "scope": "provinces", "metrics": "Sales", "logic": "group and sort"},
	"code": "package main\n\nimport \"bi\"\n\nfunc Run(f *bi.Frame) { f.SetResult(\"Ranking\", f.DF.GroupBySum(\"Province\", \"Sales\")) }"
}`

func newTestServer(t *testing.T, gw *fakeClient) (*httptest.Server, *config.Config) {
	t.Helper()
	dataset.ResetCache()
	path := filepath.Join(t.TempDir(), "sales.csv")
	csv := "Province,年季,Sales\nHainan,2024Q4,100\nHainan,2025Q1,120\nYunnan,2025Q1,90\n"
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	engine, err := session.NewEngine(cfg, gw, ds)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewRouter(engine, cfg))
	t.Cleanup(srv.Close)
	return srv, cfg
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "irrelevant"})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestGetDataset(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "irrelevant"})
	var got map[string]interface{}
	getJSON(t, srv.URL+"/api/dataset", &got)

	if got["name"] != "sales" {
		t.Errorf("name = %v", got["name"])
	}
	if got["rows"] != float64(3) {
		t.Errorf("rows = %v", got["rows"])
	}
	if got["period_column"] != "年季" {
		t.Errorf("period_column = %v", got["period_column"])
	}
	if _, ok := got["starter_questions"].([]interface{}); !ok {
		t.Errorf("starter_questions missing: %v", got)
	}
}

func TestQueryAndExport(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "simple", plan: rankingPlan})

	resp, err := http.Post(srv.URL+"/api/query", "application/json",
		strings.NewReader(`{"question":"rank provinces"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Turn struct {
			Kind   string `json:"kind"`
			Report struct {
				Mode   string `json:"mode"`
				Tables []struct {
					Name      string     `json:"name"`
					Rows      [][]string `json:"rows"`
					TotalRows int        `json:"total_rows"`
				} `json:"tables"`
			} `json:"report"`
		} `json:"turn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Turn.Kind != "report" || got.Turn.Report.Mode != "simple" {
		t.Fatalf("turn = %+v", got.Turn)
	}
	if len(got.Turn.Report.Tables) != 1 || got.Turn.Report.Tables[0].Name != "Ranking" {
		t.Fatalf("tables = %+v", got.Turn.Report.Tables)
	}

	// The table from the latest report is exportable as CSV.
	exp, err := http.Get(srv.URL + "/api/export/Ranking")
	if err != nil {
		t.Fatal(err)
	}
	defer exp.Body.Close()
	if exp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", exp.StatusCode)
	}
	if ct := exp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
}

func TestExportUnknownTable(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "irrelevant"})
	resp, err := http.Get(srv.URL + "/api/export/Nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestQueryRequiresQuestion(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "irrelevant"})
	resp, err := http.Post(srv.URL+"/api/query", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAbortAndReset(t *testing.T) {
	srv, _ := newTestServer(t, &fakeClient{intent: "irrelevant"})
	resp, err := http.Post(srv.URL+"/api/abort", "application/json", strings.NewReader(`{"draft":"next q"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("abort status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/reset", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("reset status = %d", resp.StatusCode)
	}
}
