// Package table holds the in-memory, column-ordered representation of a
// MetaKaggle table as it moves from CSV (or cache) to the destination.
package table

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column.
type Kind uint8

const (
	// KindNull is a column whose every value is null.
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindTime
)

var kindNames = [...]string{"null", "int", "float", "bool", "string", "time"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Column is a named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Table is a named set of rows aligned to Columns. Cell values are one of
// nil, int64, float64, bool, string or time.Time (UTC); nil is the null
// marker.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any

	// Lines holds the source line of each row when the table was parsed from
	// CSV (1-based, header on line 1). It is nil for tables read from cache.
	Lines []int
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Line returns the source line of row i, or 0 when unknown.
func (t *Table) Line(i int) int {
	if i < 0 || i >= len(t.Lines) {
		return 0
	}
	return t.Lines[i]
}

// Filter keeps the rows for which keep returns true, compacting Rows and Lines
// in place. It returns the number of rows removed.
func (t *Table) Filter(keep func(row []any) bool) int {
	n := 0
	hasLines := len(t.Lines) == len(t.Rows)
	for i, row := range t.Rows {
		if !keep(row) {
			continue
		}
		t.Rows[n] = row
		if hasLines {
			t.Lines[n] = t.Lines[i]
		}
		n++
	}
	removed := len(t.Rows) - n
	for i := n; i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = t.Rows[:n]
	if hasLines {
		t.Lines = t.Lines[:n]
	}
	return removed
}

// Normalize converts a cell value to the canonical representation used for
// comparisons: integral floats become int64 and times are moved to UTC.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
