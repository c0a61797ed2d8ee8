// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it.
//
// Dialect differences (identifier quoting, type names, the IF NOT EXISTS
// form) are captured in a Style that each storage backend supplies.
package ddl

import (
	"fmt"
	"sort"
	"strings"

	"kgtorrent/internal/table"
)

// Style captures what differs between SQL dialects when rendering DDL.
type Style struct {
	// Name prefixes error messages, e.g. "postgres ddl".
	Name string

	// Quote quotes a single identifier.
	Quote func(string) string

	// Types maps logical kinds to SQL types. KindNull falls back to
	// Types[table.KindString].
	Types map[table.Kind]string

	// KeyTypes overrides Types for primary and foreign key columns. Servers
	// that cannot index unbounded text need a bounded string type here.
	KeyTypes map[table.Kind]string

	// CreateIfMissing wraps a plain CREATE TABLE statement so that it is a
	// no-op when the table exists. Nil means "CREATE TABLE IF NOT EXISTS".
	CreateIfMissing func(quotedFQN, create string) string
}

// QuoteFQN quotes every dot-separated segment of name.
func (s Style) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = s.Quote(p)
	}
	return strings.Join(parts, ".")
}

// SQLType returns the SQL type for c.
func (s Style) SQLType(c ColumnDef) string {
	if t := strings.TrimSpace(c.SQLType); t != "" {
		return t
	}
	if c.PrimaryKey || c.Key {
		if t, ok := s.KeyTypes[c.Kind]; ok {
			return t
		}
	}
	if t, ok := s.Types[c.Kind]; ok {
		return t
	}
	return s.Types[table.KindString]
}

// BuildCreateTableSQL renders an idempotent CREATE TABLE statement:
//
//	CREATE TABLE IF NOT EXISTS "t" (
//	  "col1" TYPE [NOT NULL],
//	  ...,
//	  PRIMARY KEY ("pk1", ...),
//	  CONSTRAINT "fk_t_col" FOREIGN KEY ("col") REFERENCES "parent" ("Id")
//	);
//
// Primary-key columns are always NOT NULL. Primary-key columns are sorted by
// name for determinism; foreign keys keep their declaration order.
func (s Style) BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s: table FQN must not be empty", s.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s: at least one column is required", s.Name)
	}

	known := make(map[string]bool, len(t.Columns))
	parts := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	var pks []string

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s: column with empty name in table %s", s.Name, fqn)
		}
		if known[name] {
			return "", fmt.Errorf("%s: duplicate column %s in table %s", s.Name, name, fqn)
		}
		known[name] = true

		typ := s.SQLType(c)
		if typ == "" {
			return "", fmt.Errorf("%s: no SQL type for column %s (%v)", s.Name, name, c.Kind)
		}

		var sb strings.Builder
		sb.WriteString(s.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		parts = append(parts, sb.String())

		if c.PrimaryKey {
			pks = append(pks, name)
		}
	}

	if len(pks) > 0 {
		sort.Strings(pks)
		quoted := make([]string, len(pks))
		for i, pk := range pks {
			quoted[i] = s.Quote(pk)
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	tbl := lastSegment(fqn)
	for _, fk := range t.ForeignKeys {
		if !known[fk.Column] {
			return "", fmt.Errorf("%s: foreign key on unknown column %s in table %s", s.Name, fk.Column, fqn)
		}
		parts = append(parts, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			s.Quote("fk_"+tbl+"_"+fk.Column),
			s.Quote(fk.Column),
			s.QuoteFQN(fk.RefTable),
			s.Quote(fk.RefColumn),
		))
	}

	qfqn := s.QuoteFQN(fqn)
	body := fmt.Sprintf("(\n  %s\n)", strings.Join(parts, ",\n  "))
	if s.CreateIfMissing != nil {
		return s.CreateIfMissing(qfqn, fmt.Sprintf("CREATE TABLE %s %s", qfqn, body)), nil
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", qfqn, body), nil
}

// BuildDropTableSQL renders DROP TABLE IF EXISTS for name.
func (s Style) BuildDropTableSQL(name string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", s.QuoteFQN(name))
}

func lastSegment(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
