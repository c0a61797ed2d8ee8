// Package mysql implements a MySQL repository on database/sql and
// go-sql-driver/mysql. Rows are appended with multi-row INSERT statements
// inside one transaction per CopyFrom call.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"kgtorrent/internal/storage"
)

// maxPlaceholders is the server's limit on bind parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration. DSN is parsed first; the
// discrete fields, when set, override what it says.
type Config struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// driverConfig builds the driver configuration. Times are read and written
// as UTC.
func driverConfig(cfg Config) (*mysql.Config, error) {
	mc := mysql.NewConfig()
	if strings.TrimSpace(cfg.DSN) != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
		mc = parsed
	}
	if cfg.Host != "" || cfg.Port > 0 {
		host, port := cfg.Host, "3306"
		if h, p, err := net.SplitHostPort(mc.Addr); err == nil {
			if host == "" {
				host = h
			}
			port = p
		}
		if cfg.Port > 0 {
			port = strconv.Itoa(cfg.Port)
		}
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, port)
	}
	if cfg.User != "" {
		mc.User = cfg.User
	}
	if cfg.Password != "" {
		mc.Passwd = cfg.Password
	}
	if cfg.Database != "" {
		mc.DBName = cfg.Database
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc, nil
}

// NewRepository opens a connection pool and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := driverConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	db.SetConnMaxIdleTime(60 * time.Second)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return Dialect{} }

// CopyFrom appends rows to table. Rows are grouped into multi-row INSERTs
// that stay under the placeholder limit; all groups share one transaction.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	var inserted int64
	for _, chunk := range chunkRows(rows, len(columns)) {
		stmt, args, err := insertStatement(table, columns, chunk)
		if err != nil {
			rollback()
			return 0, err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			rollback()
			return 0, fmt.Errorf("mysql: insert %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			rollback()
			return 0, fmt.Errorf("mysql: rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return inserted, nil
}

// chunkRows splits rows so that no chunk needs more than maxPlaceholders
// bind parameters.
func chunkRows(rows [][]any, ncols int) [][][]any {
	per := maxPlaceholders / ncols
	if per < 1 {
		per = 1
	}
	out := make([][][]any, 0, len(rows)/per+1)
	for lo := 0; lo < len(rows); lo += per {
		hi := lo + per
		if hi > len(rows) {
			hi = len(rows)
		}
		out = append(out, rows[lo:hi])
	}
	return out
}

// insertStatement renders INSERT INTO t (cols) VALUES (?, ...), (?, ...)
// and flattens the arguments.
func insertStatement(table string, columns []string, rows [][]any) (string, []any, error) {
	d := Dialect{}
	tuple := "(" + storage.Placeholders(d, 1, len(columns)) + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		d.Style().QuoteFQN(table), strings.Join(storage.QuoteColumns(d, columns), ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: CopyFrom: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args, nil
}

// Exec executes a statement.
func (r *Repository) Exec(ctx context.Context, sqlText string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// Query runs a query and returns its rows.
func (r *Repository) Query(ctx context.Context, sqlText string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: query: %w", err)
	}
	return storage.SQLRows(rows), nil
}
