// Package csv parses a MetaKaggle CSV export into a typed table.Table.
//
// The whole file is held in memory: column kinds are inferred over every
// value of a column before any cell is converted, the same way pandas'
// read_csv decides numeric dtypes.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"

	"kgtorrent/internal/table"
)

// Options configures ReadTable. The zero value parses comma-separated input.
type Options struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// LazyQuotes is passed through to encoding/csv.
	LazyQuotes bool

	// Text lists columns that are kept as strings regardless of what their
	// values look like (temporal columns awaiting the date preprocessor).
	Text []string

	// Verbose enables periodic progress lines.
	Verbose bool
}

// ErrEmpty is returned for input without a header row.
var ErrEmpty = errors.New("csv: empty input")

const logEveryN = 500_000

// ReadTable parses r into a table named name. The first row is the header.
// Empty cells become nil. Rows shorter than the header are padded with nil;
// rows longer than the header are an error.
func ReadTable(ctx context.Context, name string, r io.Reader, opt Options) (*table.Table, error) {
	cr := csv.NewReader(newDecodingReader(r))
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("csv: %s: read header: %w", name, err)
	}
	headers := cleanHeaders(hdr)
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if h == "" {
			return nil, fmt.Errorf("csv: %s: empty header name at position %d", name, i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("csv: %s: duplicate header %q", name, h)
		}
		seen[h] = true
	}

	var (
		raw   [][]string
		lines []int
	)
	for {
		if len(raw)%logEveryN == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if opt.Verbose && len(raw) > 0 {
				log.Printf("reader: table=%s rows=%d", name, len(raw))
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(headers) {
			return nil, fmt.Errorf("csv: %s: line %d: %d fields, header has %d", name, line, len(rec), len(headers))
		}
		raw = append(raw, rec)
		lines = append(lines, line)
	}

	text := make(map[string]bool, len(opt.Text))
	for _, c := range opt.Text {
		text[c] = true
	}

	t := &table.Table{
		Name:    name,
		Columns: make([]table.Column, len(headers)),
		Rows:    make([][]any, len(raw)),
		Lines:   lines,
	}
	values := make([]string, len(raw))
	for ci, h := range headers {
		for ri, rec := range raw {
			if ci < len(rec) {
				values[ri] = rec[ci]
			} else {
				values[ri] = ""
			}
		}
		kind := table.KindString
		if !text[h] {
			kind = table.InferKind(values)
		}
		t.Columns[ci] = table.Column{Name: h, Kind: kind}
	}

	for ri, rec := range raw {
		row := make([]any, len(headers))
		for ci, col := range t.Columns {
			if ci >= len(rec) || rec[ci] == "" {
				continue
			}
			switch col.Kind {
			case table.KindString:
				row[ci] = rec[ci]
			default:
				row[ci] = table.Convert(col.Kind, rec[ci])
			}
		}
		t.Rows[ri] = row
		raw[ri] = nil
	}
	return t, nil
}
