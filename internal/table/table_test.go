package table

import (
	"testing"
)

func sampleTable() *Table {
	t := New("Province", "Quarter", "Sales")
	t.AppendRow("Hainan", "2024Q1", 100.0)
	t.AppendRow("Hainan", "2024Q2", 150.0)
	t.AppendRow("Yunnan", "2024Q1", 80.0)
	t.AppendRow("Yunnan", "2024Q2", 120.0)
	t.AppendRow("Hainan", "2023Q4", 90.0)
	return t
}

func TestFilterEq(t *testing.T) {
	got := sampleTable().FilterEq("Province", "Hainan")
	if got.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", got.NumRows())
	}
	for _, row := range got.Rows {
		if row[0] != "Hainan" {
			t.Errorf("unexpected row: %v", row)
		}
	}
}

func TestFilterIn(t *testing.T) {
	got := sampleTable().FilterIn("Quarter", []string{"2024Q1", "2024Q2"})
	if got.NumRows() != 4 {
		t.Fatalf("expected 4 rows, got %d", got.NumRows())
	}
	empty := sampleTable().FilterIn("Quarter", nil)
	if empty.NumRows() != 0 {
		t.Errorf("empty value set should match nothing, got %d rows", empty.NumRows())
	}
}

func TestSelectSkipsUnknownColumns(t *testing.T) {
	got := sampleTable().Select("Sales", "Nope", "Province")
	if len(got.Columns) != 2 || got.Columns[0] != "Sales" || got.Columns[1] != "Province" {
		t.Fatalf("unexpected columns: %v", got.Columns)
	}
	if got.Rows[0][0] != 100.0 || got.Rows[0][1] != "Hainan" {
		t.Errorf("unexpected first row: %v", got.Rows[0])
	}
}

func TestGroupBySumPreservesFirstAppearanceOrder(t *testing.T) {
	got := sampleTable().GroupBySum("Province", "Sales")
	if got.NumRows() != 2 {
		t.Fatalf("expected 2 groups, got %d", got.NumRows())
	}
	if got.Rows[0][0] != "Hainan" || got.Rows[1][0] != "Yunnan" {
		t.Errorf("group order should follow first appearance: %v", got.Rows)
	}
	if got.Rows[0][1] != 340.0 {
		t.Errorf("Hainan sum = %v, want 340", got.Rows[0][1])
	}
	if got.Rows[1][1] != 200.0 {
		t.Errorf("Yunnan sum = %v, want 200", got.Rows[1][1])
	}
}

func TestSortByNumericDescending(t *testing.T) {
	got := sampleTable().SortBy("Sales", true)
	if got.Rows[0][2] != 150.0 || got.Rows[len(got.Rows)-1][2] != 80.0 {
		t.Errorf("descending numeric sort failed: %v", got.Rows)
	}
	// Receiver must stay untouched.
	orig := sampleTable()
	orig.SortBy("Sales", true)
	if orig.Rows[0][2] != 100.0 {
		t.Errorf("SortBy mutated its receiver")
	}
}

func TestWithColumn(t *testing.T) {
	got := sampleTable().WithColumn("Double", func(r Row) interface{} {
		return r.Num("Sales") * 2
	})
	if got.Columns[len(got.Columns)-1] != "Double" {
		t.Fatalf("unexpected columns: %v", got.Columns)
	}
	if got.Rows[0][3] != 200.0 {
		t.Errorf("computed cell = %v, want 200", got.Rows[0][3])
	}
}

func TestSumIgnoresNonNumeric(t *testing.T) {
	tbl := New("V")
	tbl.AppendRow("12")
	tbl.AppendRow("oops")
	tbl.AppendRow(nil)
	tbl.AppendRow(8.0)
	if got := tbl.Sum("V"); got != 20 {
		t.Errorf("Sum = %v, want 20", got)
	}
}

func TestCellFloatStripsThousandsSeparators(t *testing.T) {
	f, ok := CellFloat("1,234,567.5")
	if !ok || f != 1234567.5 {
		t.Errorf("CellFloat = %v/%v", f, ok)
	}
	if _, ok := CellFloat("n/a"); ok {
		t.Errorf("non-numeric string should not parse")
	}
}

func TestCellStringDropsIntegralDecimals(t *testing.T) {
	if got := CellString(42.0); got != "42" {
		t.Errorf("CellString(42.0) = %q", got)
	}
	if got := CellString(42.5); got != "42.5" {
		t.Errorf("CellString(42.5) = %q", got)
	}
	if got := CellString(nil); got != "" {
		t.Errorf("CellString(nil) = %q", got)
	}
}
