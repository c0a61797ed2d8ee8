// Package loader populates the destination database from the MetaKaggle
// tables, one table at a time in dependency order.
//
// For every table the loader checks whether the destination already holds
// rows (then the table is skipped), reads the table through the Reader,
// preprocesses raw tables (date coercion and referential filtering against
// the parents loaded before it), caches the result and appends all rows in
// batches.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"kgtorrent/internal/cache"
	"kgtorrent/internal/catalog"
	"kgtorrent/internal/metrics"
	"kgtorrent/internal/schema"
	"kgtorrent/internal/storage"
	"kgtorrent/internal/table"
	"kgtorrent/internal/transformer"
	"kgtorrent/internal/transformer/builtin"
)

// State is the lifecycle position of one table in a run.
type State int

const (
	Unloaded State = iota
	RawLoaded
	Preprocessed
	Cached
	Written
	Failed
	Skipped
)

var stateNames = [...]string{"unloaded", "raw_loaded", "preprocessed", "cached", "written", "failed", "skipped"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DestinationWriteError wraps a failure to append a table's rows.
type DestinationWriteError struct {
	Table string
	Err   error
}

func (e *DestinationWriteError) Error() string {
	return fmt.Sprintf("loader: write %s: %v", e.Table, e.Err)
}

func (e *DestinationWriteError) Unwrap() error { return e.Err }

// TableReport is the outcome of one table.
type TableReport struct {
	Table        string
	State        State
	FromCache    bool
	RowsRead     int
	RowsFiltered int
	RowsWritten  int64
	Batches      int64
	Steps        []builtin.FilterStep
	CacheErr     error
	Elapsed      time.Duration
}

// Report is the outcome of a run, one entry per table in load order.
type Report struct {
	Tables      []TableReport
	CacheErrors int
}

// Written returns the total number of rows appended during the run.
func (r Report) Written() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.RowsWritten
	}
	return n
}

// Table returns the entry of the named table.
func (r Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// WriteSummary prints one aligned line per table.
func (r Report) WriteSummary(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSTATE\tSOURCE\tREAD\tFILTERED\tWRITTEN\tELAPSED")
	for _, t := range r.Tables {
		src := "csv"
		if t.FromCache {
			src = "cache"
		}
		if t.State == Skipped || t.State == Unloaded {
			src = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Table, t.State, src,
			humanize.Comma(int64(t.RowsRead)),
			humanize.Comma(int64(t.RowsFiltered)),
			humanize.Comma(t.RowsWritten),
			t.Elapsed.Truncate(time.Millisecond))
	}
	fmt.Fprintf(tw, "total written: %s, cache errors: %d\n", humanize.Comma(r.Written()), r.CacheErrors)
	return tw.Flush()
}

// Options tunes a run.
type Options struct {
	// BatchSize is the number of rows per CopyFrom call.
	BatchSize int
	// DateLayouts overrides builtin.DefaultDateLayouts.
	DateLayouts []string
	// Job labels metrics (usually the run ID).
	Job string
	// Verbose enables per-batch progress lines.
	Verbose bool
}

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 10_000

// Loader runs the population of every catalog table.
type Loader struct {
	catalog *catalog.Catalog
	reader  *Reader
	store   *cache.Store
	repo    storage.Repository
	opt     Options

	// parents names the tables some other table references.
	parents map[string]bool
}

// New returns a Loader writing to repo.
func New(cat *catalog.Catalog, reader *Reader, store *cache.Store, repo storage.Repository, opt Options) *Loader {
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultBatchSize
	}
	parents := map[string]bool{}
	for _, decl := range cat.Tables() {
		for _, r := range decl.References {
			parents[r.Parent] = true
		}
	}
	return &Loader{catalog: cat, reader: reader, store: store, repo: repo, opt: opt, parents: parents}
}

// Run loads every table in dependency order and stops at the first fatal
// error; tables after it stay Unloaded. A failed cache write is not fatal.
// Running again after a failure resumes at the first table whose
// destination is still empty.
func (l *Loader) Run(ctx context.Context) (Report, error) {
	order, err := l.catalog.Order()
	if err != nil {
		return Report{}, err
	}

	rep := Report{Tables: make([]TableReport, len(order))}
	for i, name := range order {
		rep.Tables[i] = TableReport{Table: name, State: Unloaded}
	}
	log.Printf("loader: order=%v", order)

	for i, name := range order {
		decl, _ := l.catalog.Lookup(name)
		tr := &rep.Tables[i]

		start := time.Now()
		err := l.loadTable(ctx, decl, tr)
		tr.Elapsed = time.Since(start)
		metrics.RecordStep(l.opt.Job, "load", name, err, tr.Elapsed)
		if tr.CacheErr != nil {
			rep.CacheErrors++
		}
		if err != nil {
			tr.State = Failed
			log.Printf("loader: table=%s state=%s err=%v", name, tr.State, err)
			return rep, fmt.Errorf("loader: table %s: %w", name, err)
		}
		log.Printf("loader: table=%s state=%s rows=%s elapsed=%s",
			name, tr.State, humanize.Comma(tr.RowsWritten), tr.Elapsed.Truncate(time.Millisecond))
	}
	return rep, nil
}

func (l *Loader) loadTable(ctx context.Context, decl catalog.Table, tr *TableReport) error {
	name := decl.Name

	exists, err := storage.TableExists(ctx, l.repo, name)
	if err != nil {
		return err
	}
	if exists {
		has, err := storage.HasRows(ctx, l.repo, name)
		if err != nil {
			return err
		}
		if has {
			tr.State = Skipped
			log.Printf("loader: table=%s already populated, skipping", name)
			if l.parents[name] && !l.reader.Available(name) {
				return l.rebuild(ctx, decl, tr)
			}
			return nil
		}
	}

	t, preprocessed, err := l.reader.Read(ctx, name)
	if err != nil {
		return err
	}
	tr.FromCache = preprocessed
	tr.RowsRead = t.Len()
	metrics.RecordRows(l.opt.Job, name, metrics.KindRead, int64(t.Len()))

	if preprocessed {
		tr.State = Preprocessed
	} else {
		tr.State = RawLoaded
		if err := l.preprocess(ctx, decl, t, tr); err != nil {
			return err
		}
		tr.State = Preprocessed
		l.cacheTable(t, tr)
	}

	if !exists {
		if err := schema.Ensure(ctx, l.repo, schema.Define(decl, t)); err != nil {
			return &DestinationWriteError{Table: name, Err: err}
		}
	}

	copyFn := func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		return l.repo.CopyFrom(ctx, name, cols, rows)
	}
	st, err := storage.AppendBatches(ctx, name, t.ColumnNames(), t.Rows, l.opt.BatchSize, copyFn, l.opt.Verbose)
	tr.RowsWritten = st.Rows
	tr.Batches = st.Batches
	metrics.RecordRows(l.opt.Job, name, metrics.KindWritten, st.Rows)
	metrics.RecordBatches(l.opt.Job, name, st.Batches)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return &DestinationWriteError{Table: name, Err: err}
	}
	tr.State = Written
	return nil
}

// rebuild restores the preprocessed copy of a populated parent table whose
// artifact is missing or stale, so the tables referencing it can still be
// filtered. The destination is not touched and the table stays Skipped.
//
// Only cancellation is returned. Any other failure is logged: a child that
// needs the parent then fails with UnpreprocessedDependencyError, while a run
// whose children are all populated still completes.
func (l *Loader) rebuild(ctx context.Context, decl catalog.Table, tr *TableReport) error {
	log.Printf("loader: table=%s no usable artifact, rebuilding preprocessed copy", decl.Name)
	defer func() { tr.State = Skipped }()

	t, preprocessed, err := l.reader.Read(ctx, decl.Name)
	if err == nil && !preprocessed {
		if err = l.preprocess(ctx, decl, t, tr); err == nil {
			l.cacheTable(t, tr)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("loader: table=%s rebuild failed: %v", decl.Name, err)
	}
	return nil
}

// preprocess coerces dates and filters references. Tables that declare
// neither are already in their final shape.
func (l *Loader) preprocess(ctx context.Context, decl catalog.Table, t *table.Table, tr *TableReport) error {
	var chain transformer.Chain
	if len(decl.DateColumns) > 0 {
		chain = append(chain, builtin.ParseDates{Columns: decl.DateColumns, Layouts: l.opt.DateLayouts})
	}
	if len(decl.References) > 0 {
		chain = append(chain, builtin.ReferentialFilter{
			Parents:    l.reader,
			References: decl.ReferencesByParent(),
			Report: func(s builtin.FilterStep) {
				tr.Steps = append(tr.Steps, s)
				tr.RowsFiltered += s.Before - s.After
				metrics.RecordRows(l.opt.Job, s.Child, metrics.KindFilteredOut, int64(s.Before-s.After))
			},
		})
	}
	return chain.Apply(ctx, t)
}

// cacheTable persists t. A failure is logged and counted, and the table is
// kept in memory so later children can still use it as a parent.
func (l *Loader) cacheTable(t *table.Table, tr *TableReport) {
	fp, err := l.reader.Fingerprint(t.Name)
	if err != nil {
		log.Printf("loader: table=%s fingerprint unavailable: %v", t.Name, err)
	}
	if err := l.store.Write(t, fp); err != nil {
		var cwe *cache.CacheWriteError
		if !errors.As(err, &cwe) {
			err = &cache.CacheWriteError{Table: t.Name, Path: l.store.Path(t.Name), Err: err}
		}
		log.Printf("loader: table=%s cache write failed, continuing: %v", t.Name, err)
		tr.CacheErr = err
		metrics.RecordRows(l.opt.Job, t.Name, metrics.KindCacheErrors, 1)
		l.reader.Remember(t)
		return
	}
	tr.State = Cached
}
