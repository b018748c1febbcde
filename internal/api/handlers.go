// Package api exposes the session engine over HTTP for a chat frontend.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"chatbi/internal/config"
	"chatbi/internal/logging"
	"chatbi/internal/report"
	"chatbi/internal/session"
	"chatbi/internal/table"
)

// Handler serves one engine and one conversation. The frontend is a
// single-user chat surface, matching the session model underneath.
type Handler struct {
	Engine  *session.Engine
	Session *session.Session
	Limits  config.LimitsConfig

	mu         sync.Mutex
	lastTables map[string]*table.Table // stashed from the latest report for export
}

// NewHandler creates a handler over a fresh session.
func NewHandler(engine *session.Engine, limits config.LimitsConfig) *Handler {
	return &Handler{
		Engine:     engine,
		Session:    session.NewSession(),
		Limits:     limits,
		lastTables: make(map[string]*table.Table),
	}
}

// RegisterRoutes mounts all endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/api/dataset", h.GetDataset)
	r.Post("/api/query", h.Query)
	r.Post("/api/abort", h.Abort)
	r.Post("/api/reset", h.Reset)
	r.Get("/api/export/{table}", h.Export)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// GetDataset describes the loaded dataset: shape, columns, the temporal
// span, and a few starter questions the frontend can offer.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds := h.Engine.Dataset()
	resp := map[string]interface{}{
		"name":    ds.Name,
		"rows":    ds.Table.NumRows(),
		"columns": ds.Table.Columns,
	}
	if win := h.Engine.Windows(); win != nil {
		resp["period_column"] = win.Column
		resp["span"] = map[string]string{"earliest": win.Earliest, "latest": win.Latest}
		resp["mat"] = win.MAT
		resp["ytd"] = win.YTD
	}
	resp["starter_questions"] = h.starterQuestions()
	writeJSON(w, http.StatusOK, resp)
}

// Query handles one chat turn synchronously.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		http.Error(w, "Invalid JSON: question required", http.StatusBadRequest)
		return
	}

	turn, err := h.Engine.HandleTurn(r.Context(), h.Session, req.Question)
	if err != nil {
		logging.APIError("query failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"turn":  h.turnJSON(turn),
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"turn": h.turnJSON(turn)})
}

// Abort flags the in-flight turn for interruption, optionally storing a
// draft question to ask next.
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Draft string `json:"draft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	h.Session.Abort(req.Draft)
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborting"})
}

// Reset clears the conversation.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Session.Reset()
	h.mu.Lock()
	h.lastTables = make(map[string]*table.Table)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Export streams one table of the latest report as CSV, capped at the
// export row limit.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "table"))
	if err != nil {
		http.Error(w, "Invalid table name", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	tbl, ok := h.lastTables[name]
	h.mu.Unlock()
	if !ok {
		http.Error(w, "No such table in the latest result", http.StatusNotFound)
		return
	}

	csvText, err := table.CSV(tbl, h.Limits.ExportRows)
	if err != nil {
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	w.Write([]byte(csvText))
}

// turnJSON renders a turn for the frontend and stashes its tables for
// export.
func (h *Handler) turnJSON(t report.Turn) map[string]interface{} {
	out := map[string]interface{}{
		"role": t.Role,
		"kind": t.Kind,
	}
	if t.Kind == report.KindText || t.Report == nil {
		out["text"] = t.Text
		return out
	}

	r := t.Report
	stash := make(map[string]*table.Table)
	rj := map[string]interface{}{
		"id":   r.ID,
		"mode": r.Mode,
	}
	if r.Mode == report.ModeSimple {
		rj["summary"] = r.Summary
		tables := make([]map[string]interface{}, 0, len(r.Tables))
		for _, nt := range r.Tables {
			tables = append(tables, h.tableJSON(nt.Name, nt.Table))
			stash[nt.Name] = nt.Table
		}
		rj["tables"] = tables
	} else {
		rj["intent"] = r.Intent
		rj["insight"] = r.Insight
		angles := make([]map[string]interface{}, 0, len(r.Angles))
		for _, a := range r.Angles {
			angles = append(angles, map[string]interface{}{
				"title":       a.Title,
				"description": a.Description,
				"explanation": a.Explanation,
				"table":       h.tableJSON(a.Title, a.Table),
			})
			stash[a.Title] = a.Table
		}
		rj["angles"] = angles
	}
	out["report"] = rj

	h.mu.Lock()
	h.lastTables = stash
	h.mu.Unlock()
	return out
}

// tableJSON renders a display-formatted preview of a table, capped at
// the preview row limit.
func (h *Handler) tableJSON(name string, t *table.Table) map[string]interface{} {
	display := table.FormatForDisplay(t).Head(h.Limits.PreviewRows)
	rows := make([][]string, len(display.Rows))
	for i, row := range display.Rows {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = table.CellString(cell)
		}
	}
	return map[string]interface{}{
		"name":       name,
		"columns":    display.Columns,
		"rows":       rows,
		"total_rows": t.NumRows(),
		"truncated":  t.NumRows() > len(rows),
	}
}

// starterQuestions offers a few openers shaped to the dataset.
func (h *Handler) starterQuestions() []string {
	qs := []string{
		"Which segments contributed most to recent growth?",
		"How is the competitive landscape shifting?",
	}
	if win := h.Engine.Windows(); win != nil && len(win.MAT) > 0 {
		qs = append([]string{
			fmt.Sprintf("What drove the overall trend through %s?", win.Latest),
			"How does MAT growth compare to YTD growth?",
		}, qs...)
	}
	return qs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIError("response encoding failed: %v", err)
	}
}
