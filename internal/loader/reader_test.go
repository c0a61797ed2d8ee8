package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kgtorrent/internal/cache"
	"kgtorrent/internal/catalog"
	csvparse "kgtorrent/internal/parser/csv"
	"kgtorrent/internal/table"
)

func TestReader_PrefersCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"Users.csv": usersCSV})
	store := cache.NewStore(dir)
	cat := testCatalog(t)

	r := NewReader(dir, store, cache.PolicyNone, cat, csvparse.Options{})
	raw, pre, err := r.Read(context.Background(), "Users")
	if err != nil || pre {
		t.Fatalf("Read raw = %v, %v; want raw table", pre, err)
	}
	if k := raw.Columns[raw.Index("RegisterDate")].Kind; k != table.KindString {
		t.Fatalf("date column parsed as %s, want string until preprocessing", k)
	}

	cached := &table.Table{Name: "Users", Columns: []table.Column{{Name: "Id", Kind: table.KindInt}}, Rows: [][]any{{int64(1)}}}
	if err := store.Write(cached, cache.Fingerprint{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, pre, err := r.Read(context.Background(), "Users")
	if err != nil || !pre || got.Len() != 1 {
		t.Fatalf("Read cached = %d rows, %v, %v", got.Len(), pre, err)
	}
}

func TestReader_StalePolicyRebuilds(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"Users.csv": usersCSV})
	store := cache.NewStore(dir)
	cat := testCatalog(t)

	for _, p := range []cache.Policy{cache.PolicyStat, cache.PolicyHash} {
		r := NewReader(dir, store, p, cat, csvparse.Options{})
		fp, err := r.Fingerprint("Users")
		if err != nil {
			t.Fatalf("Fingerprint: %v", err)
		}
		art := &table.Table{Name: "Users", Columns: []table.Column{{Name: "Id", Kind: table.KindInt}}, Rows: [][]any{{int64(1)}}}
		if err := store.Write(art, fp); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if _, pre, err := r.Read(context.Background(), "Users"); err != nil || !pre {
			t.Fatalf("%s: fresh artifact not used: %v, %v", p, pre, err)
		}

		stale := fp
		stale.Size++
		if err := store.Write(art, stale); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, pre, err := r.Read(context.Background(), "Users")
		if err != nil || pre || got.Len() != 3 {
			t.Fatalf("%s: stale artifact = %v, %v; want raw CSV with 3 rows", p, pre, err)
		}
	}
}

func TestReader_ArtifactWithoutCSVIsUsed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := cache.NewStore(dir)
	art := &table.Table{Name: "Tags", Columns: []table.Column{{Name: "Id", Kind: table.KindInt}}, Rows: [][]any{}}
	if err := store.Write(art, cache.Fingerprint{Size: 1, ModTime: time.Now().UnixNano()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cat, _ := catalog.New(catalog.Table{Name: "Tags"})
	r := NewReader(dir, store, cache.PolicyHash, cat, csvparse.Options{})
	if _, pre, err := r.Read(context.Background(), "Tags"); err != nil || !pre {
		t.Fatalf("Read = %v, %v", pre, err)
	}
}

func TestReader_NotFoundAndMemo(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := cache.NewStore(filepath.Join(dir, "cache"))
	r := NewReader(dir, store, cache.PolicyNone, testCatalog(t), csvparse.Options{})

	_, _, err := r.Read(context.Background(), "Users")
	var snf *SourceNotFoundError
	if !errors.As(err, &snf) {
		t.Fatalf("Read error = %v, want *SourceNotFoundError", err)
	}
	if snf.CSVPath != filepath.Join(dir, "Users.csv") || snf.CachePath != store.Path("Users") {
		t.Fatalf("SourceNotFoundError = %+v", snf)
	}

	r.Remember(&table.Table{Name: "Users"})
	if _, pre, err := r.Read(context.Background(), "Users"); err != nil || !pre {
		t.Fatalf("memo Read = %v, %v", pre, err)
	}
	if _, err := os.Stat(store.Path("Users")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read must not write artifacts")
	}
}
