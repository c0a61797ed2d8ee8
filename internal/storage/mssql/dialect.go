package mssql

import (
	"fmt"
	"strings"

	"kgtorrent/internal/ddl"
	"kgtorrent/internal/table"
)

// Dialect is the SQL Server flavour of storage.Dialect.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) Style() ddl.Style {
	return ddl.Style{
		Name:  "mssql ddl",
		Quote: msIdent,
		Types: map[table.Kind]string{
			table.KindInt:    "BIGINT",
			table.KindFloat:  "FLOAT",
			table.KindBool:   "BIT",
			table.KindString: "NVARCHAR(MAX)",
			table.KindTime:   "DATETIME2",
		},
		// 450 characters keep a key within the 900-byte index limit.
		KeyTypes: map[table.Kind]string{table.KindString: "NVARCHAR(450)"},
		CreateIfMissing: func(quotedFQN, create string) string {
			return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", strings.ReplaceAll(quotedFQN, "'", "''"), create)
		},
	}
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) ProbeRowSQL(quotedTable string) string {
	return "SELECT TOP 1 1 FROM " + quotedTable
}

func (Dialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1"
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
