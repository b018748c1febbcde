package table

import (
	"fmt"
	"sort"
)

// Normalize coerces any value produced by a sandbox execution into a
// well-formed table. It is total: every input yields a table with at
// least one column, and a nil input yields an empty single-column table.
// Already-normalized tables pass through unchanged, so the function is
// idempotent on its own output.
func Normalize(v interface{}) *Table {
	switch x := v.(type) {
	case *Table:
		if x == nil {
			return New("Result")
		}
		return x
	case Table:
		return &x
	case []interface{}:
		out := New("Value")
		for _, item := range x {
			out.AppendRow(item)
		}
		return out
	case []float64:
		out := New("Value")
		for _, item := range x {
			out.AppendRow(item)
		}
		return out
	case []string:
		out := New("Value")
		for _, item := range x {
			out.AppendRow(item)
		}
		return out
	case map[string]interface{}:
		return mappingTable(x)
	case map[string]float64:
		m := make(map[string]interface{}, len(x))
		for k, val := range x {
			m[k] = val
		}
		return mappingTable(m)
	case nil:
		return New("Result")
	default:
		out := New("Result")
		out.AppendRow(fmt.Sprintf("%v", x))
		return out
	}
}

// mappingTable turns a key-value mapping into a two-column table.
// Keys are sorted so the output is deterministic.
func mappingTable(m map[string]interface{}) *Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := New("Metric", "Value")
	for _, k := range keys {
		out.AppendRow(k, m[k])
	}
	return out
}
