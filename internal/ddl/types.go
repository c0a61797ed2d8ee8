package ddl

import "kgtorrent/internal/table"

// ColumnDef describes a single column of a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Kind: logical type, mapped to a SQL type by the dialect Style
//   - SQLType: explicit SQL type; overrides Kind when set
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Key: whether the column is the source of a foreign key
type ColumnDef struct {
	Name       string
	Kind       table.Kind
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Key        bool
}

// ForeignKey is a single-column reference to another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// TableDef holds the table name and its ordered columns and constraints.
type TableDef struct {
	FQN         string
	Columns     []ColumnDef
	ForeignKeys []ForeignKey
}
