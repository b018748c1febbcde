// Package temporal derives the rolling and year-to-date period windows
// that parameterize every prompt and every sandbox execution.
package temporal

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"chatbi/internal/table"
)

// ErrNoPeriodColumn reports that no column looked like a standard
// year-quarter column. Callers degrade to "temporal context unavailable"
// rather than failing the pipeline.
var ErrNoPeriodColumn = errors.New("no standard period column detected")

// Windows is the bundle of temporal windows for the detected period
// column. All labels are drawn from the dataset's distinct period values,
// sorted lexicographically ascending (chronological for YYYYQn labels).
type Windows struct {
	Column   string
	Periods  []string
	Earliest string
	Latest   string

	// MAT is the trailing four periods; MATPrior the four before them.
	// MATComplete is false when fewer than eight distinct periods exist,
	// in which case MATPrior holds whatever earlier periods remain.
	MAT         []string
	MATPrior    []string
	MATComplete bool

	// YTD holds all periods of the latest observed year; YTDPrior the
	// prior-year counterparts that actually exist in the data. An
	// under-count in YTDPrior is expected, never corrected.
	YTD      []string
	YTDPrior []string
}

var yearPattern = regexp.MustCompile(`(\d{4})`)

// Resolve scans the dataset for a period column and computes the window
// bundle. When several columns match the heuristic, the first in column
// order wins. Returns ErrNoPeriodColumn when nothing matches.
func Resolve(t *table.Table) (*Windows, error) {
	col := detectPeriodColumn(t)
	if col == "" {
		return nil, ErrNoPeriodColumn
	}

	periods := distinctSorted(t.Column(col))
	if len(periods) == 0 {
		return nil, ErrNoPeriodColumn
	}

	w := &Windows{
		Column:   col,
		Periods:  periods,
		Earliest: periods[0],
		Latest:   periods[len(periods)-1],
	}

	if len(periods) >= 4 {
		w.MAT = periods[len(periods)-4:]
	} else {
		w.MAT = periods
	}
	switch {
	case len(periods) >= 8:
		w.MATPrior = periods[len(periods)-8 : len(periods)-4]
		w.MATComplete = true
	case len(periods) >= 4:
		w.MATPrior = periods[:len(periods)-4]
		w.MATComplete = false
	default:
		w.MATComplete = false
	}

	if m := yearPattern.FindString(w.Latest); m != "" {
		prior := strconv.Itoa(mustAtoi(m) - 1)
		expected := make(map[string]bool)
		for _, p := range periods {
			if strings.Contains(p, m) {
				w.YTD = append(w.YTD, p)
				expected[strings.ReplaceAll(p, m, prior)] = true
			}
		}
		for _, p := range periods {
			if expected[p] {
				w.YTDPrior = append(w.YTDPrior, p)
			}
		}
	}

	return w, nil
}

// detectPeriodColumn applies the period heuristic: the column name must
// carry a year-quarter/quarter/date token and the first value must look
// like a short quarter label ("2024Q1").
func detectPeriodColumn(t *table.Table) string {
	if t.NumRows() == 0 {
		return ""
	}
	for _, col := range t.Columns {
		lower := strings.ToLower(col)
		if !strings.Contains(col, "年季") && !strings.Contains(lower, "quarter") && !strings.Contains(lower, "date") {
			continue
		}
		sample := table.CellString(t.Rows[0][t.ColumnIndex(col)])
		if strings.Contains(sample, "Q") && len(sample) <= 6 {
			return col
		}
	}
	return ""
}

func distinctSorted(cells []interface{}) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, c := range cells {
		s := table.CellString(c)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
