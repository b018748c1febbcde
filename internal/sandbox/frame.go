// Package sandbox executes model-generated Go programs inside a Yaegi
// interpreter with a closed capability surface. A program sees exactly
// one package, "bi", whose contents are the Frame it runs against and
// the table types the Frame exposes. No stdlib, no filesystem, no
// network.
package sandbox

import (
	"reflect"

	"chatbi/internal/table"
)

// Frame is the execution context handed to a generated program. DF is
// the full dataset; the temporal slices are pre-resolved period labels.
// Programs report output either through SetResult (named tables, simple
// mode) or by assigning Result (analysis angles).
type Frame struct {
	DF          *table.Table
	MAT         []string
	MATPrior    []string
	YTD         []string
	YTDPrior    []string
	MATComplete bool

	Result interface{}

	resultNames  []string
	resultValues map[string]interface{}
}

// NewFrame creates a frame over the dataset with the given windows.
func NewFrame(df *table.Table) *Frame {
	return &Frame{DF: df, resultValues: make(map[string]interface{})}
}

// SetResult records a named result. Insertion order is preserved and a
// repeated name overwrites in place.
func (f *Frame) SetResult(name string, v interface{}) {
	if f.resultValues == nil {
		f.resultValues = make(map[string]interface{})
	}
	if _, seen := f.resultValues[name]; !seen {
		f.resultNames = append(f.resultNames, name)
	}
	f.resultValues[name] = v
}

// Results returns the recorded results in insertion order.
func (f *Frame) Results() []NamedValue {
	out := make([]NamedValue, 0, len(f.resultNames))
	for _, name := range f.resultNames {
		out = append(out, NamedValue{Name: name, Value: f.resultValues[name]})
	}
	return out
}

// NamedValue pairs a result title with its raw value.
type NamedValue struct {
	Name  string
	Value interface{}
}

// Symbols is the export map for the "bi" package visible to generated
// programs. Types go in via nil pointers so the interpreter picks up
// the full method sets.
var Symbols = map[string]map[string]reflect.Value{
	"bi/bi": {
		"Frame": reflect.ValueOf((*Frame)(nil)),
		"Table": reflect.ValueOf((*table.Table)(nil)),
		"Row":   reflect.ValueOf((*table.Row)(nil)),
	},
}
