// Package prompt builds every piece of text sent to the model: the
// dataset metadata digest, the compacted conversation history, and the
// classification, synthesis, explanation and insight prompts.
package prompt

import (
	"fmt"
	"strings"

	"chatbi/internal/table"
	"chatbi/internal/temporal"
)

// sampleCap bounds sample values listed for high-cardinality columns.
const sampleCap = 5

// BuildMetadata renders a compact schema description of the dataset plus
// the temporal windows. A nil Windows degrades to an explicit
// "unavailable" line rather than being omitted silently.
func BuildMetadata(t *table.Table, win *temporal.Windows) string {
	var b strings.Builder
	if win != nil {
		fmt.Fprintf(&b, "[Period column]: %s\n", win.Column)
		fmt.Fprintf(&b, "[Current MAT]: %v\n", win.MAT)
		fmt.Fprintf(&b, "[Prior MAT complete]: %v\n", win.MATComplete)
		fmt.Fprintf(&b, "[Current YTD]: %v\n", win.YTD)
	} else {
		b.WriteString("[Temporal context]: unavailable (no standard period column)\n")
	}
	for i, col := range t.Columns {
		uniques, numeric := columnProfile(t, i)
		dtype := "text"
		if numeric {
			dtype = "numeric"
		}
		fmt.Fprintf(&b, "- `%s` (%s)", col, dtype)
		if len(uniques) > 0 {
			samples := uniques
			if len(samples) > 100 {
				samples = samples[:sampleCap]
			}
			fmt.Fprintf(&b, " | samples: %v", samples)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// columnProfile returns the distinct values of column i in first-seen
// order and whether the column is numeric.
func columnProfile(t *table.Table, i int) ([]string, bool) {
	seen := make(map[string]bool)
	uniques := make([]string, 0)
	numeric := true
	for _, row := range t.Rows {
		cell := row[i]
		if cell == nil {
			continue
		}
		if _, ok := cell.(float64); !ok {
			numeric = false
		}
		s := table.CellString(cell)
		if !seen[s] {
			seen[s] = true
			uniques = append(uniques, s)
		}
	}
	if len(uniques) == 0 {
		numeric = false
	}
	return uniques, numeric
}
