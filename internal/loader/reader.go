package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"kgtorrent/internal/cache"
	"kgtorrent/internal/catalog"
	csvparse "kgtorrent/internal/parser/csv"
	"kgtorrent/internal/table"
)

// SourceNotFoundError is returned when a table has neither a cache artifact
// nor a raw CSV file.
type SourceNotFoundError struct {
	Table     string
	CSVPath   string
	CachePath string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("reader: table %s not found (looked for %s and %s)", e.Table, e.CachePath, e.CSVPath)
}

// Reader yields tables by name: from the cache store when an artifact exists
// (and is fresh under the configured policy), otherwise from the raw CSV in
// the dataset directory. It has no side effects on disk.
type Reader struct {
	dataset string
	store   *cache.Store
	policy  cache.Policy
	catalog *catalog.Catalog
	csv     csvparse.Options

	// memo holds preprocessed tables whose artifact could not be written.
	memo map[string]*table.Table
}

// NewReader returns a Reader over the CSV files in dataset and the artifacts
// of store. The catalog tells which columns hold dates and must be kept as
// text when parsing.
func NewReader(dataset string, store *cache.Store, policy cache.Policy, cat *catalog.Catalog, opt csvparse.Options) *Reader {
	return &Reader{
		dataset: dataset,
		store:   store,
		policy:  policy,
		catalog: cat,
		csv:     opt,
		memo:    map[string]*table.Table{},
	}
}

// CSVPath returns the raw file of the named table.
func (r *Reader) CSVPath(name string) string {
	return filepath.Join(r.dataset, name+".csv")
}

// Read returns the named table and whether it is already preprocessed.
func (r *Reader) Read(ctx context.Context, name string) (*table.Table, bool, error) {
	if t, ok := r.memo[name]; ok {
		return t, true, nil
	}

	if r.store.Exists(name) && r.fresh(name) {
		t, _, err := r.store.Read(name)
		if err != nil {
			return nil, false, fmt.Errorf("reader: %s: %w", name, err)
		}
		log.Printf("reader: table=%s source=cache rows=%d", name, t.Len())
		return t, true, nil
	}

	csvPath := r.CSVPath(name)
	f, err := os.Open(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, &SourceNotFoundError{Table: name, CSVPath: csvPath, CachePath: r.store.Path(name)}
	}
	if err != nil {
		return nil, false, fmt.Errorf("reader: %s: %w", name, err)
	}
	defer f.Close()

	opt := r.csv
	if decl, ok := r.catalog.Lookup(name); ok {
		opt.Text = decl.DateColumns
	}
	t, err := csvparse.ReadTable(ctx, name, f, opt)
	if err != nil {
		return nil, false, fmt.Errorf("reader: %w", err)
	}
	log.Printf("reader: table=%s source=csv rows=%d", name, t.Len())
	return t, false, nil
}

// fresh applies the validation policy to an existing artifact. An artifact
// without a raw CSV next to it is always used.
func (r *Reader) fresh(name string) bool {
	if r.policy == cache.PolicyNone || r.policy == "" {
		return true
	}
	current, err := cache.Compute(r.CSVPath(name), r.policy)
	if err != nil {
		return true
	}
	hdr, err := r.store.Header(name)
	if err != nil {
		log.Printf("reader: table=%s unreadable artifact header, rebuilding: %v", name, err)
		return false
	}
	if !r.policy.Fresh(hdr.Source, current) {
		log.Printf("reader: table=%s artifact stale under policy=%s, rebuilding", name, r.policy)
		return false
	}
	return true
}

// Available reports whether Read would return the named table already
// preprocessed, without reading it.
func (r *Reader) Available(name string) bool {
	if _, ok := r.memo[name]; ok {
		return true
	}
	return r.store.Exists(name) && r.fresh(name)
}

// Fingerprint computes the source fingerprint recorded in a new artifact.
func (r *Reader) Fingerprint(name string) (cache.Fingerprint, error) {
	return cache.Compute(r.CSVPath(name), r.policy)
}

// Remember keeps a preprocessed table in memory for the rest of the run.
func (r *Reader) Remember(t *table.Table) {
	r.memo[t.Name] = t
}
