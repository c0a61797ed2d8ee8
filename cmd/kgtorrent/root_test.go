package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kgtorrent/internal/catalog"
	"kgtorrent/internal/storage"
)

// writeDataset writes a one-row CSV per catalog table in which every
// reference points at Id 1.
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	extra := map[string][][2]string{
		"Users":           {{"UserName", "alice"}},
		"KernelLanguages": {{"Name", "IPython Notebook HTML"}},
		"Kernels":         {{"CurrentUrlSlug", "eda"}},
		"Tags":            {{"Name", "python"}},
	}
	for _, tbl := range catalog.MetaKaggle().Tables() {
		header := []string{catalog.PrimaryKey}
		row := []string{"1"}
		for _, c := range tbl.DateColumns {
			header, row = append(header, c), append(row, "2019-01-02")
		}
		for _, ref := range tbl.References {
			header, row = append(header, ref.Column), append(row, "1")
		}
		for _, kv := range extra[tbl.Name] {
			header, row = append(header, kv[0]), append(row, kv[1])
		}
		body := strings.Join(header, ",") + "\n" + strings.Join(row, ",") + "\n"
		if err := os.WriteFile(filepath.Join(dir, tbl.Name+".csv"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type env struct {
	dir   string
	args  []string
	notes string
	db    string
}

func newEnv(t *testing.T, baseURL string) env {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	if err := os.Mkdir(data, 0o755); err != nil {
		t.Fatal(err)
	}
	writeDataset(t, data)
	e := env{dir: dir, notes: filepath.Join(dir, "notebooks"), db: filepath.Join(dir, "kaggle.db")}
	e.args = []string{
		"--dataset", data,
		"--cache.dir", filepath.Join(dir, "cache"),
		"--storage.kind", "sqlite",
		"--storage.name", e.db,
		"--notebooks", e.notes,
		"--download.base-url", baseURL,
		"--download.languages", "IPython Notebook HTML",
		"--download.rps", "0",
		"--batch-size", "5",
	}
	return e
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errb bytes.Buffer
	rc := NewRootCommand(strings.NewReader(stdin), &out, &errb)
	rc.SetArgs(args)
	err := rc.ExecuteContext(context.Background())
	return out.String() + errb.String(), err
}

func localPaths(t *testing.T, db string) []string {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", Database: db})
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	rows, err := repo.Query(context.Background(), `SELECT "LocalPath" FROM "Kernels" WHERE "LocalPath" IS NOT NULL`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			t.Fatal(err)
		}
		out = append(out, p)
	}
	return out
}

func TestEndToEnd(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kernels/scriptcontent/1/download" {
			http.NotFound(w, r)
			return
		}
		hits++
		_, _ = w.Write([]byte(`{"cells":[],"nbformat":4}`))
	}))
	defer srv.Close()
	e := newEnv(t, srv.URL)

	out, err := execute(t, "", append([]string{"populate"}, e.args...)...)
	if err != nil {
		t.Fatalf("populate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "total written: 13, cache errors: 0") {
		t.Fatalf("populate summary:\n%s", out)
	}

	out, err = execute(t, "", append([]string{"download"}, e.args...)...)
	if err != nil {
		t.Fatalf("download: %v\n%s", err, out)
	}
	if !strings.Contains(out, "selected=1 stored=1 failed=0") {
		t.Fatalf("download output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(e.notes, "alice_eda.ipynb")); err != nil {
		t.Fatalf("notebook missing: %v", err)
	}
	if got := localPaths(t, e.db); len(got) != 1 || got[0] != "alice_eda.ipynb" {
		t.Fatalf("LocalPath = %v", got)
	}

	_, err = execute(t, "", append([]string{"init"}, e.args...)...)
	if !errors.Is(err, errNotEmptyDir) {
		t.Fatalf("init on a non-empty notebook dir: err = %v", err)
	}

	_, err = execute(t, "no\n", append([]string{"refresh"}, e.args...)...)
	if !errors.Is(err, errAborted) {
		t.Fatalf("refresh declined: err = %v", err)
	}

	out, err = execute(t, "", append([]string{"refresh", "--yes"}, e.args...)...)
	if err != nil {
		t.Fatalf("refresh: %v\n%s", err, out)
	}
	if !strings.Contains(out, "total written: 13") || !strings.Contains(out, "cache") {
		t.Fatalf("refresh summary:\n%s", out)
	}
	if hits != 1 {
		t.Fatalf("notebook fetched %d times, want 1", hits)
	}
	if got := localPaths(t, e.db); len(got) != 1 {
		t.Fatalf("LocalPath after refresh = %v", got)
	}
}

func TestPopulateSecondRunSkips(t *testing.T) {
	e := newEnv(t, "http://127.0.0.1:1")
	if out, err := execute(t, "", append([]string{"populate"}, e.args...)...); err != nil {
		t.Fatalf("populate: %v\n%s", err, out)
	}
	out, err := execute(t, "", append([]string{"populate"}, e.args...)...)
	if err != nil {
		t.Fatalf("second populate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "total written: 0") || !strings.Contains(out, "skipped") {
		t.Fatalf("second populate summary:\n%s", out)
	}
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "", "validate", "--dataset", t.TempDir(), "--storage.kind", "sqlite", "--storage.name", "x.db")
	if err != nil || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("validate = %v\n%s", err, out)
	}

	out, err = execute(t, "", "validate", "--storage.kind", "oracle", "--batch-size", "0")
	if err == nil {
		t.Fatalf("validate should fail")
	}
	for _, want := range []string{"error: dataset:", "error: storage.kind:", "error: batch-size:"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsRefuseInvalidConfig(t *testing.T) {
	opened := false
	old := newRepository
	newRepository = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		opened = true
		return old(ctx, cfg)
	}
	t.Cleanup(func() { newRepository = old })

	if _, err := execute(t, "", "populate", "--storage.kind", "sqlite"); err == nil {
		t.Fatalf("populate without dataset should fail")
	}
	if opened {
		t.Fatalf("repository opened despite invalid configuration")
	}
}

func TestOrderCommand(t *testing.T) {
	out, err := execute(t, "", "order")
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 13 || !strings.HasSuffix(lines[0], "Users") {
		t.Fatalf("order output:\n%s", out)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kgtorrent.yaml")
	body := "dataset: " + t.TempDir() + "\nstorage:\n  kind: sqlite\n  name: file.db\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "", "validate", "--config", path)
	if err != nil || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("validate with config file = %v\n%s", err, out)
	}
}

func TestEnsureEmptyDirAndConfirm(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := ensureEmptyDir(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("missing dir: %v", err)
	}
	if err := ensureEmptyDir(dir); err != nil {
		t.Fatalf("empty dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.ipynb"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureEmptyDir(dir); !errors.Is(err, errNotEmptyDir) {
		t.Fatalf("non-empty dir: %v", err)
	}

	for in, want := range map[string]bool{"y\n": true, "YES": true, "\n": false, "nope\n": false, "": false} {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(in), &out, "Drop?")
		if err != nil || got != want {
			t.Errorf("confirm(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestProbeCommand(t *testing.T) {
	e := newEnv(t, "http://127.0.0.1:1")
	out, err := execute(t, "", append([]string{"probe"}, e.args...)...)
	if err != nil {
		t.Fatalf("probe: %v\n%s", err, out)
	}
	if !strings.Contains(out, `date layouts: --date-layouts="2006-01-02"`) {
		t.Fatalf("probe output:\n%s", out)
	}

	if err := os.Remove(filepath.Join(e.args[1], "Tags.csv")); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "", append([]string{"probe"}, e.args...)...)
	if err == nil || !strings.Contains(out, "problem: Tags:") {
		t.Fatalf("probe with a missing file = %v\n%s", err, out)
	}
}
