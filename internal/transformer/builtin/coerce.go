// Package builtin holds the transformations the loader applies to a raw
// MetaKaggle table: temporal column coercion and referential filtering.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kgtorrent/internal/table"
)

// DefaultDateLayouts are tried in order for every temporal value. MetaKaggle
// has shipped both US-style and ISO-style timestamps over the years. The
// unpadded US forms come after the padded ones; they accept both.
var DefaultDateLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// DateParseError reports a temporal value that matched none of the layouts.
// Row is the 0-based row index (-1 when the column itself is missing) and
// Line the CSV line when known.
type DateParseError struct {
	Table  string
	Column string
	Row    int
	Line   int
	Value  string
}

func (e *DateParseError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("parse dates: %s: temporal column %q not found", e.Table, e.Column)
	}
	where := fmt.Sprintf("row %d", e.Row)
	if e.Line > 0 {
		where = fmt.Sprintf("line %d", e.Line)
	}
	return fmt.Sprintf("parse dates: %s.%s %s: cannot parse %q as a date", e.Table, e.Column, where, e.Value)
}

// ParseDates coerces the named columns to time.Time in UTC. Nulls stay null;
// values that already are time.Time are normalized to UTC. Other columns are
// left alone.
type ParseDates struct {
	Columns []string
	Layouts []string
}

// Apply implements transformer.Transformer.
func (p ParseDates) Apply(ctx context.Context, t *table.Table) error {
	layouts := p.Layouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, col := range p.Columns {
		if err := ctx.Err(); err != nil {
			return err
		}
		ci := t.Index(col)
		if ci < 0 {
			return &DateParseError{Table: t.Name, Column: col, Row: -1}
		}
		// The last successful layout is tried first; columns are uniform.
		hint := 0
		for ri, row := range t.Rows {
			switch v := row[ci].(type) {
			case nil:
			case time.Time:
				row[ci] = v.UTC()
			case string:
				s := strings.TrimSpace(v)
				if s == "" {
					row[ci] = nil
					continue
				}
				ts, ok := parseDate(s, layouts, &hint)
				if !ok {
					return &DateParseError{Table: t.Name, Column: col, Row: ri, Line: t.Line(ri), Value: v}
				}
				row[ci] = ts
			default:
				return &DateParseError{Table: t.Name, Column: col, Row: ri, Line: t.Line(ri), Value: fmt.Sprint(v)}
			}
		}
		t.Columns[ci].Kind = table.KindTime
	}
	return nil
}

func parseDate(s string, layouts []string, hint *int) (time.Time, bool) {
	if ts, err := time.Parse(layouts[*hint], s); err == nil {
		return ts.UTC(), true
	}
	for i, l := range layouts {
		if i == *hint {
			continue
		}
		if ts, err := time.Parse(l, s); err == nil {
			*hint = i
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
