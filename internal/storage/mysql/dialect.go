package mysql

import (
	"strings"

	"kgtorrent/internal/ddl"
	"kgtorrent/internal/table"
)

// Dialect is the MySQL flavour of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Style() ddl.Style {
	return ddl.Style{
		Name:  "mysql ddl",
		Quote: quoteIdent,
		Types: map[table.Kind]string{
			table.KindInt:    "BIGINT",
			table.KindFloat:  "DOUBLE",
			table.KindBool:   "BOOLEAN",
			table.KindString: "LONGTEXT",
			table.KindTime:   "DATETIME",
		},
		// TEXT columns cannot be keys without a prefix length.
		KeyTypes: map[table.Kind]string{table.KindString: "VARCHAR(255)"},
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) ProbeRowSQL(quotedTable string) string {
	return "SELECT 1 FROM " + quotedTable + " LIMIT 1"
}

func (Dialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
