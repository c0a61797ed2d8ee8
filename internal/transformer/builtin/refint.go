package builtin

import (
	"context"
	"fmt"
	"log"
	"sort"

	"kgtorrent/internal/bitmap"
	"kgtorrent/internal/catalog"
	"kgtorrent/internal/table"
)

// ParentReader yields a parent table and whether it has already been
// preprocessed (dates coerced, its own references filtered).
type ParentReader interface {
	Read(ctx context.Context, name string) (*table.Table, bool, error)
}

// UnpreprocessedDependencyError is returned when a child is filtered against
// a parent that has not been preprocessed yet, which means the load order is
// wrong.
type UnpreprocessedDependencyError struct {
	Parent string
	Child  string
}

func (e *UnpreprocessedDependencyError) Error() string {
	return fmt.Sprintf("refint: %s references %s, which has not been preprocessed; load %s before %s",
		e.Child, e.Parent, e.Parent, e.Child)
}

// MissingColumnError reports a declared key column absent from a table.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("refint: table %s has no column %q", e.Table, e.Column)
}

// FilterStep describes one single-column filter pass.
type FilterStep struct {
	Child  string
	Parent string
	Column string
	Before int
	After  int
}

// ReferentialFilter drops the rows of a child table whose foreign key does
// not match the Id of a row in the parent. Filters are applied one column at
// a time and are conjunctive; a null foreign key never matches.
type ReferentialFilter struct {
	Parents ParentReader
	// References maps parent table name to the child columns referencing it.
	References map[string][]string
	// Report, when set, observes every filter pass.
	Report func(FilterStep)
}

// Apply implements transformer.Transformer.
func (f ReferentialFilter) Apply(ctx context.Context, t *table.Table) error {
	parents := make([]string, 0, len(f.References))
	for p := range f.References {
		parents = append(parents, p)
	}
	sort.Strings(parents)

	for _, parent := range parents {
		cols := f.References[parent]
		for _, col := range cols {
			if t.Index(col) < 0 {
				return &MissingColumnError{Table: t.Name, Column: col}
			}
		}

		pt, preprocessed, err := f.Parents.Read(ctx, parent)
		if err != nil {
			return fmt.Errorf("refint: read parent %s of %s: %w", parent, t.Name, err)
		}
		if !preprocessed {
			return &UnpreprocessedDependencyError{Parent: parent, Child: t.Name}
		}
		keys, err := NewKeySet(pt, catalog.PrimaryKey)
		if err != nil {
			return err
		}

		for _, col := range cols {
			if err := ctx.Err(); err != nil {
				return err
			}
			ci := t.Index(col)
			before := t.Len()
			log.Printf("refint: table=%s join=%s.%s->%s.%s rows_before=%d", t.Name, t.Name, col, parent, catalog.PrimaryKey, before)
			t.Filter(func(row []any) bool { return keys.Has(row[ci]) })
			step := FilterStep{Child: t.Name, Parent: parent, Column: col, Before: before, After: t.Len()}
			log.Printf("refint: table=%s join=%s rows_after=%d dropped=%d", t.Name, parent, step.After, step.Before-step.After)
			if f.Report != nil {
				f.Report(step)
			}
		}
	}
	return nil
}

// KeySet is a membership test over a table's key column.
type KeySet interface {
	Has(v any) bool
	Len() int
}

// NewKeySet indexes column col of t. Non-negative integer keys with a
// bounded maximum go into a dense bitmap; anything else into a hash set.
// Null keys are never members.
func NewKeySet(t *table.Table, col string) (KeySet, error) {
	ci := t.Index(col)
	if ci < 0 {
		return nil, &MissingColumnError{Table: t.Name, Column: col}
	}

	dense, max := true, int64(-1)
	for _, row := range t.Rows {
		k, ok := table.Normalize(row[ci]).(int64)
		if !ok || k < 0 {
			if row[ci] == nil {
				continue
			}
			dense = false
			break
		}
		if k > max {
			max = k
		}
	}
	// One 64-bit word per key on average is the break-even point with a map.
	if dense && max/64 <= int64(len(t.Rows))+1024 {
		bm := bitmap.New(max)
		for _, row := range t.Rows {
			if k, ok := table.Normalize(row[ci]).(int64); ok {
				bm.Add(k)
			}
		}
		return denseKeys{bm}, nil
	}

	m := make(hashKeys, len(t.Rows))
	for _, row := range t.Rows {
		if row[ci] != nil {
			m[table.Normalize(row[ci])] = struct{}{}
		}
	}
	return m, nil
}

type denseKeys struct{ bm *bitmap.Bitmap }

func (d denseKeys) Has(v any) bool {
	k, ok := table.Normalize(v).(int64)
	return ok && d.bm.Has(k)
}

func (d denseKeys) Len() int { return d.bm.Len() }

type hashKeys map[any]struct{}

func (h hashKeys) Has(v any) bool {
	if v == nil {
		return false
	}
	_, ok := h[table.Normalize(v)]
	return ok
}

func (h hashKeys) Len() int { return len(h) }
