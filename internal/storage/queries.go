package storage

import (
	"context"
	"fmt"
	"strings"
)

// TableExists reports whether the named table exists in the current
// database/schema.
func TableExists(ctx context.Context, repo Repository, name string) (bool, error) {
	rows, err := repo.Query(ctx, repo.Dialect().TableExistsSQL(), name)
	if err != nil {
		return false, fmt.Errorf("storage: table exists %s: %w", name, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, fmt.Errorf("storage: table exists %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("storage: table exists %s: %w", name, err)
	}
	return n > 0, nil
}

// HasRows reports whether the named table holds at least one row.
func HasRows(ctx context.Context, repo Repository, name string) (bool, error) {
	d := repo.Dialect()
	rows, err := repo.Query(ctx, d.ProbeRowSQL(d.Style().QuoteFQN(name)))
	if err != nil {
		return false, fmt.Errorf("storage: probe %s: %w", name, err)
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("storage: probe %s: %w", name, err)
	}
	return found, nil
}

// Placeholders returns n comma-separated bind markers starting at first.
func Placeholders(d Dialect, first, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(first + i)
	}
	return strings.Join(ph, ", ")
}

// QuoteColumns quotes every column name.
func QuoteColumns(d Dialect, cols []string) []string {
	s := d.Style()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = s.Quote(c)
	}
	return out
}

// UpdateColumn sets table.column = value for the row whose key column equals
// key, for every key/value pair in updates. It returns the number of
// statements executed.
func UpdateColumn(ctx context.Context, repo Repository, table, column, keyColumn string, updates map[any]any) (int, error) {
	d := repo.Dialect()
	s := d.Style()
	stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		s.QuoteFQN(table), s.Quote(column), d.Placeholder(1), s.Quote(keyColumn), d.Placeholder(2))

	n := 0
	for key, value := range updates {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := repo.Exec(ctx, stmt, value, key); err != nil {
			return n, fmt.Errorf("storage: update %s.%s where %s=%v: %w", table, column, keyColumn, key, err)
		}
		n++
	}
	return n, nil
}

// DropTables drops the named tables in the given order; missing tables are
// ignored.
func DropTables(ctx context.Context, repo Repository, names []string) error {
	s := repo.Dialect().Style()
	for _, name := range names {
		if err := repo.Exec(ctx, s.BuildDropTableSQL(name)); err != nil {
			return fmt.Errorf("storage: drop %s: %w", name, err)
		}
	}
	return nil
}
