package probe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"kgtorrent/internal/catalog"
	"kgtorrent/internal/table"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		catalog.Table{Name: "Users", DateColumns: []string{"RegisterDate"}},
		catalog.Table{Name: "UserAchievements", References: []catalog.Reference{{Parent: "Users", Column: "UserId"}}},
		catalog.Table{Name: "Tags"},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "Users.csv", "Id,RegisterDate,UserName\n1,05/21/2019,alice\n2,12/31/2018,bob\n3,,carol\n")
	write(t, dir, "UserAchievements.csv", "Id,Tier\n1,2\n")

	got, err := Dataset(context.Background(), dir, testCatalog(t), Options{})
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d tables, want 3", len(got))
	}

	users := got[0]
	wantCols := []Column{
		{Name: "Id", Kind: table.KindInt},
		{Name: "RegisterDate", Kind: table.KindString, Date: true, Layout: "01/02/2006", Matched: 2, Samples: 2},
		{Name: "UserName", Kind: table.KindString},
	}
	if diff := cmp.Diff(wantCols, users.Columns); diff != "" {
		t.Fatalf("Users columns (-want +got):\n%s", diff)
	}
	if users.Rows != 3 || users.Truncated || len(users.Problems) != 0 {
		t.Fatalf("Users = %+v", users)
	}

	if diff := cmp.Diff([]string{"missing column UserId"}, got[1].Problems); diff != "" {
		t.Fatalf("UserAchievements problems (-want +got):\n%s", diff)
	}
	if len(got[2].Problems) != 1 || !strings.Contains(got[2].Problems[0], "Tags.csv") {
		t.Fatalf("Tags problems = %v", got[2].Problems)
	}

	if diff := cmp.Diff([]string{"01/02/2006"}, SuggestLayouts(got)); diff != "" {
		t.Fatalf("SuggestLayouts (-want +got):\n%s", diff)
	}
}

func TestDataset_UnmatchedDatesAndBadKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "Users.csv", "Id,RegisterDate\nu1,2019-05-21\nu2,yesterday\n")
	cat, err := catalog.New(catalog.Table{Name: "Users", DateColumns: []string{"RegisterDate"}})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Dataset(context.Background(), dir, cat, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"RegisterDate: 1 of 2 sampled values match no single layout",
		"Id inferred as string, want int",
	}
	if diff := cmp.Diff(want, got[0].Problems); diff != "" {
		t.Fatalf("problems (-want +got):\n%s", diff)
	}
}

func TestReadHead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write(t, dir, "a.csv", "Id\n1\n22\n333\n")
	path := filepath.Join(dir, "a.csv")

	tests := []struct {
		n         int
		want      string
		truncated bool
	}{
		{100, "Id\n1\n22\n333\n", false},
		{14, "Id\n1\n22\n333\n", false},
		{9, "Id\n1\n22\n", true},
		{7, "Id\n1\n", true},
	}
	for _, tt := range tests {
		b, truncated, err := readHead(path, tt.n)
		if err != nil {
			t.Fatalf("readHead(%d) error = %v", tt.n, err)
		}
		if string(b) != tt.want || truncated != tt.truncated {
			t.Errorf("readHead(%d) = %q, %v; want %q, %v", tt.n, b, truncated, tt.want, tt.truncated)
		}
	}
}

func TestSelectBestLayout(t *testing.T) {
	t.Parallel()

	layouts := CandidateLayouts()
	pref := preference(layouts)
	tests := []struct {
		samples []string
		want    string
		matched int
	}{
		{[]string{"01/02/2019"}, "01/02/2006", 1},
		{[]string{"4/5/2015", "12/31/2015"}, "1/2/2006", 2},
		{[]string{"21/05/2019", "01/02/2019"}, "02/01/2006", 2},
		{[]string{"2019-05-21 10:11:12", "2019-05-21"}, "2006-01-02 15:04:05", 1},
		{[]string{"soon"}, "", 0},
		{nil, "", 0},
	}
	for _, tt := range tests {
		got, n := selectBestLayout(tt.samples, layouts, pref)
		if got != tt.want || n != tt.matched {
			t.Errorf("selectBestLayout(%v) = %q, %d; want %q, %d", tt.samples, got, n, tt.want, tt.matched)
		}
	}
}
