package postgres

import (
	"fmt"
	"strings"

	"kgtorrent/internal/ddl"
	"kgtorrent/internal/table"
)

// Dialect is the PostgreSQL flavour of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Style() ddl.Style {
	return ddl.Style{
		Name:  "postgres ddl",
		Quote: pgIdent,
		Types: map[table.Kind]string{
			table.KindInt:    "BIGINT",
			table.KindFloat:  "DOUBLE PRECISION",
			table.KindBool:   "BOOLEAN",
			table.KindString: "TEXT",
			table.KindTime:   "TIMESTAMP",
		},
	}
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) ProbeRowSQL(quotedTable string) string {
	return "SELECT 1 FROM " + quotedTable + " LIMIT 1"
}

func (Dialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
