package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Column-name tokens steering display formatting. A numeric column whose
// name carries a percent token (and no exclude token) renders as a
// percentage; everything else renders thousands-separated.
var (
	percentTokens = []string{"Rate", "Ratio", "Share", "Percent", "Pct", "YoY", "CAGR", "率", "比", "占比", "份额"}
	excludeTokens = []string{"Value", "Amount", "Qty", "Volume", "Contribution", "Abs", "额", "量"}
)

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// FormatForDisplay returns a copy of the table with every numeric column
// rendered as strings: percent columns as "12.3%", integral columns with
// thousands separators and no decimals, other numerics with two decimals.
// Missing values render as "-". Non-numeric columns pass through.
func FormatForDisplay(t *Table) *Table {
	out := New(t.Columns...)
	numeric := make([]bool, len(t.Columns))
	integral := make([]bool, len(t.Columns))
	for i := range t.Columns {
		numeric[i], integral[i] = columnShape(t, i)
	}
	for _, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			if !numeric[i] {
				cells[i] = cell
				continue
			}
			f, ok := CellFloat(cell)
			if !ok {
				cells[i] = "-"
				continue
			}
			name := t.Columns[i]
			if containsAny(name, percentTokens) && !containsAny(name, excludeTokens) {
				cells[i] = fmt.Sprintf("%.1f%%", f*100)
			} else if integral[i] {
				cells[i] = addThousands(strconv.FormatFloat(f, 'f', 0, 64))
			} else {
				cells[i] = addThousands(strconv.FormatFloat(f, 'f', 2, 64))
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// columnShape reports whether column i holds numeric data, and whether
// every present value is integral. A column with at least one numeric
// cell and no non-numeric non-nil cell counts as numeric.
func columnShape(t *Table, i int) (numeric, integral bool) {
	sawNumber := false
	integral = true
	for _, row := range t.Rows {
		cell := row[i]
		if cell == nil {
			continue
		}
		switch cell.(type) {
		case float64, float32, int, int64:
			f, _ := CellFloat(cell)
			sawNumber = true
			if f != float64(int64(f)) {
				integral = false
			}
		default:
			return false, false
		}
	}
	return sawNumber, integral
}

// addThousands inserts comma separators into the integer part of a
// formatted decimal number. A leading minus sign is preserved.
func addThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
