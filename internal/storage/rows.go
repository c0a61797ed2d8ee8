package storage

import "database/sql"

// sqlRows adapts *sql.Rows to Rows; Close errors surface through Err.
type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

// SQLRows wraps a database/sql result set.
func SQLRows(rows *sql.Rows) Rows { return sqlRows{rows} }
