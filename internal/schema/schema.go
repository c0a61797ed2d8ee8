// Package schema derives destination table definitions from the catalog and
// the preprocessed tables, and applies them through a storage.Repository.
package schema

import (
	"context"
	"fmt"
	"log"

	"kgtorrent/internal/catalog"
	"kgtorrent/internal/ddl"
	"kgtorrent/internal/storage"
	"kgtorrent/internal/table"
)

// Define builds the definition of the destination table for decl from the
// columns of its preprocessed data t.
//
// Id is the primary key. Declared temporal columns become timestamps and
// reference columns integers (unless their values are strings), each with a
// foreign key to the parent's Id. Columns whose values are all null are
// stored as text. Extra destination-only columns are appended as nullable
// text.
func Define(decl catalog.Table, t *table.Table) ddl.TableDef {
	dates := make(map[string]bool, len(decl.DateColumns))
	for _, c := range decl.DateColumns {
		dates[c] = true
	}
	refs := make(map[string]bool, len(decl.References))
	for _, r := range decl.References {
		refs[r.Column] = true
	}

	def := ddl.TableDef{FQN: decl.Name}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		seen[c.Name] = true
		col := ddl.ColumnDef{Name: c.Name, Kind: c.Kind, Nullable: true}
		switch {
		case c.Name == catalog.PrimaryKey:
			col.PrimaryKey = true
			col.Nullable = false
			col.Kind = keyKind(c.Kind)
		case dates[c.Name]:
			col.Kind = table.KindTime
		case refs[c.Name]:
			col.Kind = keyKind(c.Kind)
			col.Key = true
		case c.Kind == table.KindNull:
			col.Kind = table.KindString
		}
		def.Columns = append(def.Columns, col)
	}
	for _, name := range decl.ExtraColumns {
		if !seen[name] {
			def.Columns = append(def.Columns, ddl.ColumnDef{Name: name, Kind: table.KindString, Nullable: true})
		}
	}
	for _, r := range decl.References {
		def.ForeignKeys = append(def.ForeignKeys, ddl.ForeignKey{
			Column:    r.Column,
			RefTable:  r.Parent,
			RefColumn: catalog.PrimaryKey,
		})
	}
	return def
}

// keyKind maps the inferred kind of a key column to the kind it is stored
// as. Keys must compare equal across tables, so anything but text is an
// integer.
func keyKind(k table.Kind) table.Kind {
	if k == table.KindString {
		return table.KindString
	}
	return table.KindInt
}

// Ensure creates the table described by def if it does not exist yet.
func Ensure(ctx context.Context, repo storage.Repository, def ddl.TableDef) error {
	stmt, err := repo.Dialect().Style().BuildCreateTableSQL(def)
	if err != nil {
		return fmt.Errorf("schema: %s: %w", def.FQN, err)
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("schema: create %s: %w", def.FQN, err)
	}
	log.Printf("schema: table=%s ensured columns=%d foreign_keys=%d", def.FQN, len(def.Columns), len(def.ForeignKeys))
	return nil
}

// Drop drops the tables of a dependency order, children first.
func Drop(ctx context.Context, repo storage.Repository, order []string) error {
	rev := make([]string, len(order))
	for i, name := range order {
		rev[len(order)-1-i] = name
	}
	if err := storage.DropTables(ctx, repo, rev); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	log.Printf("schema: dropped %d tables", len(rev))
	return nil
}
