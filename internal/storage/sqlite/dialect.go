package sqlite

import (
	"strings"

	"kgtorrent/internal/ddl"
	"kgtorrent/internal/table"
)

// Dialect is the SQLite flavour of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Style() ddl.Style {
	return ddl.Style{
		Name:  "sqlite ddl",
		Quote: quoteIdent,
		Types: map[table.Kind]string{
			table.KindInt:    "INTEGER",
			table.KindFloat:  "REAL",
			table.KindBool:   "INTEGER",
			table.KindString: "TEXT",
			table.KindTime:   "TIMESTAMP",
		},
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) ProbeRowSQL(quotedTable string) string {
	return "SELECT 1 FROM " + quotedTable + " LIMIT 1"
}

func (Dialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
