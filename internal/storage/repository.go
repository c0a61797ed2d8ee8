// Package storage contains the storage-agnostic contracts used by the loader
// and a registry of backends. Concrete backends (postgres, mysql, mssql,
// sqlite) register themselves from init; import storage/all to enable them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kgtorrent/internal/ddl"
)

// Config selects and configures a backend. DSN wins when set; otherwise the
// backend builds one from the discrete connection fields.
type Config struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
}

// Rows is the subset of a result set the loader needs; both *sql.Rows and
// pgx.Rows are adapted to it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Dialect captures the SQL differences between backends.
type Dialect interface {
	// Name is the backend kind, e.g. "postgres".
	Name() string
	// Style renders DDL for this dialect.
	Style() ddl.Style
	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string
	// ProbeRowSQL selects at most one row of a (quoted) table.
	ProbeRowSQL(quotedTable string) string
	// TableExistsSQL counts tables named by its single bind parameter.
	TableExistsSQL() string
}

// Repository is a destination database.
type Repository interface {
	Dialect() Dialect
	// CopyFrom appends rows (aligned to columns) to table using the
	// backend's bulk path and returns the number of rows written.
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering a kind twice
// replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
