// Package dataset loads the session's tabular source file and caches it
// for the process lifetime. Column names are whitespace-trimmed on load,
// and columns whose name carries a sales/quantity/amount-like token are
// coerced to numeric with thousands separators stripped and non-numeric
// values defaulted to zero.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"chatbi/internal/table"
)

// DefaultNumericTokens mark columns that get numeric coercion on load.
var DefaultNumericTokens = []string{"额", "量", "Sales", "Qty", "Amount", "金额", "Value"}

// Dataset is the immutable in-memory source table for a session.
type Dataset struct {
	Path  string
	Name  string
	Table *table.Table
}

var (
	loadGroup singleflight.Group
	cacheMu   sync.RWMutex
	cache     = make(map[string]*Dataset)
)

// Load reads and caches the dataset at path. Repeated and concurrent
// calls for the same path share one load and one cached instance.
func Load(path string, numericTokens []string) (*Dataset, error) {
	cacheMu.RLock()
	if ds, ok := cache[path]; ok {
		cacheMu.RUnlock()
		return ds, nil
	}
	cacheMu.RUnlock()

	v, err, _ := loadGroup.Do(path, func() (interface{}, error) {
		ds, err := read(path, numericTokens)
		if err != nil {
			return nil, err
		}
		cacheMu.Lock()
		cache[path] = ds
		cacheMu.Unlock()
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

// read parses a delimited file into a Dataset. Tab-separated files are
// detected by extension, everything else is treated as comma-separated.
func read(path string, numericTokens []string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	header := records[0]
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	if len(numericTokens) == 0 {
		numericTokens = DefaultNumericTokens
	}
	numeric := make([]bool, len(columns))
	for i, c := range columns {
		for _, tok := range numericTokens {
			if strings.Contains(c, tok) {
				numeric[i] = true
				break
			}
		}
	}

	t := table.New(columns...)
	for _, rec := range records[1:] {
		cells := make([]interface{}, len(columns))
		for i := range columns {
			raw := ""
			if i < len(rec) {
				raw = strings.TrimSpace(rec[i])
			}
			if numeric[i] {
				cells[i] = coerceNumeric(raw)
			} else {
				cells[i] = raw
			}
		}
		t.Rows = append(t.Rows, cells)
	}

	return &Dataset{
		Path:  path,
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Table: t,
	}, nil
}

// coerceNumeric parses a numeric cell, stripping thousands separators.
// Unparsable values default to zero rather than failing the load.
func coerceNumeric(raw string) float64 {
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

// ResetCache drops all cached datasets. Intended for tests.
func ResetCache() {
	cacheMu.Lock()
	cache = make(map[string]*Dataset)
	cacheMu.Unlock()
}
