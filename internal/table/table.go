// Package table implements the in-memory tabular value that flows through
// the whole pipeline: the loaded dataset, every sandbox execution result,
// and every rendered report all carry a *Table. The helper methods double
// as the capability surface exposed to model-generated programs, so the
// set is kept deliberately small and read-only with respect to receivers.
package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Table is a column-ordered, row-major table of mixed-type cells.
// Cells are either string or float64; nil marks a missing value.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	return &Table{
		Columns: columns,
		Rows:    make([][]interface{}, 0),
	}
}

// AppendRow adds a row. Short rows are padded with nil, long rows truncated.
func (t *Table) AppendRow(cells ...interface{}) {
	row := make([]interface{}, len(t.Columns))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	t.Rows = append(t.Rows, row)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all cells of the named column, or nil if absent.
func (t *Table) Column(name string) []interface{} {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]interface{}, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Row is a positional view over one table row, used by predicate callbacks.
type Row struct {
	table *Table
	cells []interface{}
}

// Get returns the cell under the named column, or nil.
func (r Row) Get(column string) interface{} {
	idx := r.table.ColumnIndex(column)
	if idx < 0 || idx >= len(r.cells) {
		return nil
	}
	return r.cells[idx]
}

// Str returns the cell under the named column rendered as a string.
func (r Row) Str(column string) string {
	return CellString(r.Get(column))
}

// Num returns the cell under the named column as a float64 (0 if not numeric).
func (r Row) Num(column string) float64 {
	f, _ := CellFloat(r.Get(column))
	return f
}

// Filter returns the rows for which pred is true.
func (t *Table) Filter(pred func(Row) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if pred(Row{table: t, cells: row}) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// FilterEq keeps rows whose cell under column equals value (string compare).
func (t *Table) FilterEq(column string, value string) *Table {
	return t.Filter(func(r Row) bool { return r.Str(column) == value })
}

// FilterIn keeps rows whose cell under column matches one of values.
// This is the primary temporal selector: FilterIn(periodCol, f.MAT).
func (t *Table) FilterIn(column string, values []string) *Table {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return t.Filter(func(r Row) bool { return set[r.Str(column)] })
}

// Select returns a table with only the named columns, in the given order.
// Unknown names are skipped.
func (t *Table) Select(columns ...string) *Table {
	idx := make([]int, 0, len(columns))
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		if i := t.ColumnIndex(c); i >= 0 {
			idx = append(idx, i)
			names = append(names, c)
		}
	}
	out := New(names...)
	for _, row := range t.Rows {
		cells := make([]interface{}, len(idx))
		for j, i := range idx {
			cells[j] = row[i]
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// Head returns the first n rows (the whole table when n exceeds it).
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := New(t.Columns...)
	out.Rows = append(out.Rows, t.Rows[:n]...)
	return out
}

// Sum totals the named column, treating non-numeric cells as zero.
func (t *Table) Sum(column string) float64 {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return 0
	}
	var total float64
	for _, row := range t.Rows {
		if f, ok := CellFloat(row[idx]); ok {
			total += f
		}
	}
	return total
}

// GroupBySum aggregates valueCols by summation per distinct keyCol value.
// Output rows are ordered by first appearance of each key.
func (t *Table) GroupBySum(keyCol string, valueCols ...string) *Table {
	keyIdx := t.ColumnIndex(keyCol)
	valIdx := make([]int, 0, len(valueCols))
	valNames := make([]string, 0, len(valueCols))
	for _, c := range valueCols {
		if i := t.ColumnIndex(c); i >= 0 {
			valIdx = append(valIdx, i)
			valNames = append(valNames, c)
		}
	}
	out := New(append([]string{keyCol}, valNames...)...)
	if keyIdx < 0 {
		return out
	}
	order := make([]string, 0)
	sums := make(map[string][]float64)
	for _, row := range t.Rows {
		key := CellString(row[keyIdx])
		acc, seen := sums[key]
		if !seen {
			acc = make([]float64, len(valIdx))
			sums[key] = acc
			order = append(order, key)
		}
		for j, i := range valIdx {
			if f, ok := CellFloat(row[i]); ok {
				acc[j] += f
			}
		}
	}
	for _, key := range order {
		cells := make([]interface{}, 0, 1+len(valIdx))
		cells = append(cells, key)
		for _, v := range sums[key] {
			cells = append(cells, v)
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// SortBy returns a copy sorted by the named column. Numeric cells compare
// numerically, everything else lexicographically. The sort is stable.
func (t *Table) SortBy(column string, descending bool) *Table {
	idx := t.ColumnIndex(column)
	out := New(t.Columns...)
	out.Rows = append(out.Rows, t.Rows...)
	if idx < 0 {
		return out
	}
	less := func(a, b []interface{}) bool {
		af, aok := CellFloat(a[idx])
		bf, bok := CellFloat(b[idx])
		if aok && bok {
			return af < bf
		}
		return CellString(a[idx]) < CellString(b[idx])
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if descending {
			return less(out.Rows[j], out.Rows[i])
		}
		return less(out.Rows[i], out.Rows[j])
	})
	return out
}

// WithColumn appends a computed column to a copy of the table.
func (t *Table) WithColumn(name string, compute func(Row) interface{}) *Table {
	out := New(append(append([]string{}, t.Columns...), name)...)
	for _, row := range t.Rows {
		cells := make([]interface{}, 0, len(row)+1)
		cells = append(cells, row...)
		cells = append(cells, compute(Row{table: t, cells: row}))
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// CellFloat converts a cell to float64. Strings are parsed after stripping
// thousands separators; nil and unparsable values report ok=false.
func CellFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders a short preview, mainly for debugging and test failures.
func (t *Table) String() string { return Render(t, 10) }

// CellString renders a cell as a plain string. Floats with no fractional
// part drop the decimal point.
func CellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
