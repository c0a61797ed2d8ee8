// Package probe samples the head of every dataset CSV and reports how well it
// matches the catalog: missing key, date and reference columns, the kind
// inferred for every other column and the date layout that fits each
// temporal column best. It reads at most MaxBytes per file, so it is cheap to
// run against a freshly downloaded MetaKaggle snapshot before loading it.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"kgtorrent/internal/catalog"
	csvparse "kgtorrent/internal/parser/csv"
	"kgtorrent/internal/table"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is not set.
const DefaultMaxBytes = 256 << 10

// Options control the sampling.
type Options struct {
	// MaxBytes to sample from the start of each file.
	MaxBytes int
	// Layouts are the date layouts tried, in preference order. Empty means
	// CandidateLayouts.
	Layouts []string
}

// Column is the probe result of one CSV column.
type Column struct {
	Name string
	Kind table.Kind
	// Date is set for catalog date columns.
	Date bool
	// Layout is the best matching date layout ("" when none matched).
	Layout string
	// Matched of Samples non-empty values parse with Layout.
	Matched int
	Samples int
}

// Table is the probe result of one dataset file.
type Table struct {
	Name string
	Path string
	// Rows is the number of data rows in the sample.
	Rows int
	// Truncated is set when the file is larger than the sample.
	Truncated bool
	Columns   []Column
	// Problems lists mismatches with the catalog; a table with problems
	// will not load.
	Problems []string
}

// Dataset probes the CSV file of every catalog table in dir, in catalog
// order. A missing file is reported as a problem, not an error; only
// cancellation is returned as an error.
func Dataset(ctx context.Context, dir string, cat *catalog.Catalog, opt Options) ([]Table, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = DefaultMaxBytes
	}
	if len(opt.Layouts) == 0 {
		opt.Layouts = CandidateLayouts()
	}

	var out []Table
	for _, decl := range cat.Tables() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, probeTable(ctx, filepath.Join(dir, decl.Name+".csv"), decl, opt))
	}
	return out, nil
}

func probeTable(ctx context.Context, path string, decl catalog.Table, opt Options) Table {
	res := Table{Name: decl.Name, Path: path}
	problem := func(format string, args ...any) {
		res.Problems = append(res.Problems, fmt.Sprintf(format, args...))
	}

	data, truncated, err := readHead(path, opt.MaxBytes)
	if err != nil {
		problem("%v", err)
		return res
	}
	res.Truncated = truncated

	t, err := csvparse.ReadTable(ctx, decl.Name, bytes.NewReader(data), csvparse.Options{Text: decl.DateColumns, LazyQuotes: true})
	if err != nil {
		problem("sample does not parse: %v", err)
		return res
	}
	res.Rows = t.Len()

	isDate := make(map[string]bool, len(decl.DateColumns))
	for _, c := range decl.DateColumns {
		isDate[c] = true
	}
	for i, c := range t.Columns {
		col := Column{Name: c.Name, Kind: c.Kind, Date: isDate[c.Name]}
		if col.Date {
			samples := columnStrings(t, i)
			col.Samples = len(samples)
			col.Layout, col.Matched = selectBestLayout(samples, opt.Layouts, preference(opt.Layouts))
			if col.Samples > 0 && col.Matched < col.Samples {
				problem("%s: %d of %d sampled values match no single layout", c.Name, col.Samples-col.Matched, col.Samples)
			}
		}
		res.Columns = append(res.Columns, col)
	}

	required := []string{catalog.PrimaryKey}
	required = append(required, decl.DateColumns...)
	for _, r := range decl.References {
		required = append(required, r.Column)
	}
	for _, name := range required {
		if t.Index(name) < 0 {
			problem("missing column %s", name)
		}
	}
	if i := t.Index(catalog.PrimaryKey); i >= 0 && t.Columns[i].Kind != table.KindInt && t.Columns[i].Kind != table.KindNull {
		problem("%s inferred as %s, want int", catalog.PrimaryKey, t.Columns[i].Kind)
	}
	return res
}

// readHead returns at most n bytes of path, cut at the last complete line
// when the file is longer.
func readHead(path string, n int) ([]byte, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	// One byte past n tells whether the file was cut.
	buf, err := io.ReadAll(io.LimitReader(f, int64(n)+1))
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(buf) <= n {
		return buf, false, nil
	}
	buf = buf[:n]
	if i := bytes.LastIndexByte(buf, '\n'); i > 0 {
		buf = buf[:i+1]
	}
	return buf, true, nil
}

func columnStrings(t *table.Table, col int) []string {
	var out []string
	for _, row := range t.Rows {
		if s, ok := row[col].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// SuggestLayouts returns the distinct layouts detected across tables, in
// first-seen order; suitable for --date-layouts.
func SuggestLayouts(tables []Table) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tables {
		for _, c := range t.Columns {
			if c.Layout != "" && !seen[c.Layout] {
				seen[c.Layout] = true
				out = append(out, c.Layout)
			}
		}
	}
	return out
}
