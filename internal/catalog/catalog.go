// Package catalog declares the MetaKaggle tables handled by the loader: their
// temporal columns and the foreign keys that tie a child table to the Id
// column of its parents.
package catalog

import "fmt"

// PrimaryKey is the column every parent table is referenced by.
const PrimaryKey = "Id"

// Reference is a foreign key dependency: Child.Column -> Parent.Id.
type Reference struct {
	Parent string
	Column string
}

// Table describes one MetaKaggle table.
type Table struct {
	Name        string
	DateColumns []string
	References  []Reference
	// ExtraColumns are destination-only columns that are not present in the
	// CSV (Kernels.LocalPath, filled in by the notebook downloader).
	ExtraColumns []string
}

// Preprocessed reports whether the raw table already is in its final shape,
// i.e. it declares neither temporal columns nor references.
func (t Table) Preprocessed() bool {
	return len(t.DateColumns) == 0 && len(t.References) == 0
}

// ReferencesByParent groups the child columns by parent table, preserving
// declaration order.
func (t Table) ReferencesByParent() map[string][]string {
	if len(t.References) == 0 {
		return nil
	}
	out := make(map[string][]string, len(t.References))
	for _, r := range t.References {
		out[r.Parent] = append(out[r.Parent], r.Column)
	}
	return out
}

// Parents lists the distinct parent tables in declaration order.
func (t Table) Parents() []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range t.References {
		if !seen[r.Parent] {
			seen[r.Parent] = true
			out = append(out, r.Parent)
		}
	}
	return out
}

// Catalog is an ordered set of table declarations.
type Catalog struct {
	tables []Table
	byName map[string]int
}

// New builds a catalog, rejecting duplicate names and references to tables
// that are not declared.
func New(tables ...Table) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]int, len(tables))}
	for _, t := range tables {
		if t.Name == "" {
			return nil, fmt.Errorf("catalog: table with empty name")
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate table %q", t.Name)
		}
		c.byName[t.Name] = len(c.tables)
		c.tables = append(c.tables, t)
	}
	for _, t := range c.tables {
		for _, r := range t.References {
			if _, ok := c.byName[r.Parent]; !ok {
				return nil, fmt.Errorf("catalog: %s.%s references unknown table %q", t.Name, r.Column, r.Parent)
			}
		}
	}
	return c, nil
}

// Tables returns the declarations in declaration order.
func (c *Catalog) Tables() []Table {
	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// Lookup returns the declaration of the named table.
func (c *Catalog) Lookup(name string) (Table, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Table{}, false
	}
	return c.tables[i], true
}

// Names returns the table names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tables))
	for i, t := range c.tables {
		out[i] = t.Name
	}
	return out
}

// MetaKaggle returns the catalog of the MetaKaggle tables loaded by KGTorrent.
func MetaKaggle() *Catalog {
	c, err := New(metaKaggleTables()...)
	if err != nil {
		panic(err)
	}
	return c
}

func metaKaggleTables() []Table {
	return []Table{
		{
			Name:        "Users",
			DateColumns: []string{"RegisterDate"},
		},
		{
			Name:        "UserAchievements",
			DateColumns: []string{"TierAchievementDate"},
			References:  []Reference{{Parent: "Users", Column: "UserId"}},
		},
		{
			Name: "KernelLanguages",
		},
		{
			Name:        "KernelVersions",
			DateColumns: []string{"CreationDate", "EvaluationDate"},
			References: []Reference{
				{Parent: "Users", Column: "AuthorUserId"},
				{Parent: "KernelLanguages", Column: "ScriptLanguageId"},
			},
		},
		{
			Name:        "Kernels",
			DateColumns: []string{"CreationDate", "EvaluationDate", "MadePublicDate", "MedalAwardDate"},
			References: []Reference{
				{Parent: "Users", Column: "AuthorUserId"},
				{Parent: "KernelVersions", Column: "CurrentKernelVersionId"},
			},
			ExtraColumns: []string{"LocalPath"},
		},
		{
			Name:        "KernelVotes",
			DateColumns: []string{"VoteDate"},
			References: []Reference{
				{Parent: "Users", Column: "UserId"},
				{Parent: "KernelVersions", Column: "KernelVersionId"},
			},
		},
		{
			Name: "Tags",
		},
		{
			Name: "KernelTags",
			References: []Reference{
				{Parent: "Tags", Column: "TagId"},
				{Parent: "Kernels", Column: "KernelId"},
			},
		},
		{
			Name:        "Datasets",
			DateColumns: []string{"CreationDate", "ReviewDate", "FeatureDate", "LastActivityDate"},
			References:  []Reference{{Parent: "Users", Column: "CreatorUserId"}},
		},
		{
			Name:        "DatasetVersions",
			DateColumns: []string{"CreationDate"},
			References: []Reference{
				{Parent: "Users", Column: "CreatorUserId"},
				{Parent: "Datasets", Column: "DatasetId"},
			},
		},
		{
			Name: "DatasetTags",
			References: []Reference{
				{Parent: "Tags", Column: "TagId"},
				{Parent: "Datasets", Column: "DatasetId"},
			},
		},
		{
			Name:        "DatasetVotes",
			DateColumns: []string{"VoteDate"},
			References: []Reference{
				{Parent: "Users", Column: "UserId"},
				{Parent: "DatasetVersions", Column: "DatasetVersionId"},
			},
		},
		{
			Name: "KernelVersionDatasetSources",
			References: []Reference{
				{Parent: "KernelVersions", Column: "KernelVersionId"},
				{Parent: "DatasetVersions", Column: "SourceDatasetVersionId"},
			},
		},
	}
}
