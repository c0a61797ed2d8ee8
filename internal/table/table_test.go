package table

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestInferKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want Kind
	}{
		{"all empty", []string{"", ""}, KindNull},
		{"ints with nulls", []string{"1", "", "-42"}, KindInt},
		{"bools", []string{"True", "false", ""}, KindBool},
		{"zero one stays int", []string{"0", "1"}, KindInt},
		{"mixed int float", []string{"3", "3.5"}, KindFloat},
		{"scientific", []string{"1e3", "2.5E-2"}, KindFloat},
		{"text", []string{"1", "abc"}, KindString},
		{"dates stay text", []string{"07/15/2011"}, KindString},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferKind(tt.in); got != tt.want {
				t.Fatalf("InferKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		in   string
		want any
	}{
		{KindInt, "", nil},
		{KindInt, "17", int64(17)},
		{KindFloat, "2.5", 2.5},
		{KindBool, "True", true},
		{KindBool, "FALSE", false},
		{KindString, "hello", "hello"},
		{KindInt, "oops", "oops"},
	}
	for _, tt := range tests {
		if got := Convert(tt.kind, tt.in); got != tt.want {
			t.Errorf("Convert(%v, %q) = %#v, want %#v", tt.kind, tt.in, got, tt.want)
		}
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tbl := &Table{
		Name:    "UserAchievements",
		Columns: []Column{{Name: "Id", Kind: KindInt}, {Name: "UserId", Kind: KindInt}},
		Rows:    [][]any{{int64(1), int64(1)}, {int64(2), nil}, {int64(3), int64(9)}, {int64(4), int64(2)}},
		Lines:   []int{2, 3, 4, 5},
	}
	removed := tbl.Filter(func(row []any) bool { return row[1] != nil && row[1] != int64(9) })
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	want := [][]any{{int64(1), int64(1)}, {int64(4), int64(2)}}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 5}, tbl.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if tbl.Line(1) != 5 || tbl.Line(7) != 0 {
		t.Fatalf("Line() lookups wrong")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := Normalize(3.0); got != int64(3) {
		t.Fatalf("Normalize(3.0) = %#v", got)
	}
	if got := Normalize(3.5); got != 3.5 {
		t.Fatalf("Normalize(3.5) = %#v", got)
	}
	loc := time.FixedZone("X", 3600)
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, loc)
	if got := Normalize(ts).(time.Time); got.Location() != time.UTC || !got.Equal(ts) {
		t.Fatalf("Normalize(time) = %v", got)
	}
}

func TestIndexAndNames(t *testing.T) {
	t.Parallel()

	tbl := &Table{Columns: []Column{{Name: "Id"}, {Name: "UserName"}}}
	if tbl.Index("UserName") != 1 || tbl.Index("Nope") != -1 {
		t.Fatalf("Index() wrong")
	}
	if diff := cmp.Diff([]string{"Id", "UserName"}, tbl.ColumnNames()); diff != "" {
		t.Fatalf("ColumnNames mismatch: %s", diff)
	}
}
