package downloader

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"kgtorrent/internal/storage"
)

// KernelRef identifies one notebook to fetch.
type KernelRef struct {
	ID        int64
	UserName  string
	Slug      string
	VersionID int64
}

// selectKernelsSQL builds the join of Kernels, Users, KernelVersions and
// KernelLanguages for the given number of language names.
func selectKernelsSQL(d storage.Dialect, nLanguages int) string {
	q := d.Style().Quote
	col := func(alias, name string) string { return alias + "." + q(name) }

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s, %s FROM %s k",
		col("k", "Id"), col("u", "UserName"), col("k", "CurrentUrlSlug"), col("k", "CurrentKernelVersionId"), q("Kernels"))
	fmt.Fprintf(&b, " JOIN %s u ON %s = %s", q("Users"), col("k", "AuthorUserId"), col("u", "Id"))
	fmt.Fprintf(&b, " JOIN %s v ON %s = %s", q("KernelVersions"), col("k", "CurrentKernelVersionId"), col("v", "Id"))
	fmt.Fprintf(&b, " JOIN %s l ON %s = %s", q("KernelLanguages"), col("v", "ScriptLanguageId"), col("l", "Id"))
	if nLanguages > 0 {
		fmt.Fprintf(&b, " WHERE %s IN (%s)", col("l", "Name"), storage.Placeholders(d, 1, nLanguages))
	}
	fmt.Fprintf(&b, " ORDER BY %s", col("k", "Id"))
	return b.String()
}

// SelectKernels lists kernels whose current version is written in one of
// languages (all languages when empty). limit <= 0 means no limit. Kernels
// without an author name or slug are skipped since they cannot be named on
// disk.
func SelectKernels(ctx context.Context, repo storage.Repository, languages []string, limit int) ([]KernelRef, error) {
	args := make([]any, len(languages))
	for i, l := range languages {
		args[i] = l
	}
	rows, err := repo.Query(ctx, selectKernelsSQL(repo.Dialect(), len(languages)), args...)
	if err != nil {
		return nil, fmt.Errorf("downloader: select kernels: %w", err)
	}
	defer rows.Close()

	var out []KernelRef
	for rows.Next() {
		var (
			ref        KernelRef
			user, slug sql.NullString
		)
		if err := rows.Scan(&ref.ID, &user, &slug, &ref.VersionID); err != nil {
			return nil, fmt.Errorf("downloader: scan kernel: %w", err)
		}
		if !user.Valid || !slug.Valid || user.String == "" || slug.String == "" {
			continue
		}
		ref.UserName, ref.Slug = user.String, slug.String
		out = append(out, ref)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("downloader: select kernels: %w", err)
	}
	return out, nil
}
