package table

import (
	"encoding/csv"
	"strings"
)

// Render produces a plain-text preview of at most maxRows rows with
// whitespace-aligned columns. Used for narration prompts and the CLI.
func Render(t *Table, maxRows int) string {
	if t == nil || len(t.Columns) == 0 {
		return "(empty)"
	}
	head := t.Head(maxRows)
	widths := make([]int, len(head.Columns))
	for i, c := range head.Columns {
		widths[i] = len(c)
	}
	cells := make([][]string, len(head.Rows))
	for r, row := range head.Rows {
		cells[r] = make([]string, len(row))
		for i, cell := range row {
			s := CellString(cell)
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	var b strings.Builder
	writeRow := func(row []string) {
		for i, s := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(s)
			b.WriteString(strings.Repeat(" ", widths[i]-len(s)))
		}
		b.WriteString("\n")
	}
	writeRow(head.Columns)
	for _, row := range cells {
		writeRow(row)
	}
	if len(t.Rows) > len(head.Rows) {
		b.WriteString("...\n")
	}
	return b.String()
}

// CSV serializes at most limit rows as comma-delimited text with a
// header row. limit <= 0 means no cap.
func CSV(t *Table, limit int) (string, error) {
	rows := t.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(t.Columns); err != nil {
		return "", err
	}
	record := make([]string, len(t.Columns))
	for _, row := range rows {
		for i, cell := range row {
			record[i] = CellString(cell)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	return b.String(), w.Error()
}
