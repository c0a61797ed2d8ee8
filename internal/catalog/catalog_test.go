package catalog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMetaKaggleOrder(t *testing.T) {
	t.Parallel()

	got, err := MetaKaggle().Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	want := []string{
		"Users",
		"UserAchievements",
		"KernelLanguages",
		"KernelVersions",
		"Kernels",
		"KernelVotes",
		"Tags",
		"KernelTags",
		"Datasets",
		"DatasetVersions",
		"DatasetTags",
		"DatasetVotes",
		"KernelVersionDatasetSources",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrder_ParentsFirstRegardlessOfDeclaration(t *testing.T) {
	t.Parallel()

	c, err := New(
		Table{Name: "Votes", References: []Reference{{Parent: "Posts", Column: "PostId"}, {Parent: "Users", Column: "UserId"}}},
		Table{Name: "Posts", References: []Reference{{Parent: "Users", Column: "OwnerId"}}},
		Table{Name: "Users"},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := c.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Users", "Posts", "Votes"}, got); diff != "" {
		t.Fatalf("Order() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrder_Cycle(t *testing.T) {
	t.Parallel()

	c, err := New(
		Table{Name: "A", References: []Reference{{Parent: "C", Column: "CId"}}},
		Table{Name: "B", References: []Reference{{Parent: "A", Column: "AId"}}},
		Table{Name: "C", References: []Reference{{Parent: "B", Column: "BId"}}},
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = c.Order()
	var cyc *CyclicDependencyError
	if !errors.As(err, &cyc) {
		t.Fatalf("Order() error = %v, want *CyclicDependencyError", err)
	}
	if len(cyc.Path) != 4 || cyc.Path[0] != cyc.Path[len(cyc.Path)-1] {
		t.Fatalf("cycle path = %v, want a closed path over three tables", cyc.Path)
	}
}

func TestOrder_SelfReferenceIgnored(t *testing.T) {
	t.Parallel()

	c, err := New(Table{Name: "Comments", References: []Reference{{Parent: "Comments", Column: "ParentId"}}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := c.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if len(got) != 1 || got[0] != "Comments" {
		t.Fatalf("Order() = %v", got)
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tables []Table
	}{
		{"empty name", []Table{{Name: ""}}},
		{"duplicate", []Table{{Name: "Users"}, {Name: "Users"}}},
		{"unknown parent", []Table{{Name: "Votes", References: []Reference{{Parent: "Users", Column: "UserId"}}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.tables...); err == nil {
				t.Fatalf("New() expected error")
			}
		})
	}
}

func TestTableHelpers(t *testing.T) {
	t.Parallel()

	kv, ok := MetaKaggle().Lookup("KernelVotes")
	if !ok {
		t.Fatalf("KernelVotes not declared")
	}
	if kv.Preprocessed() {
		t.Fatalf("KernelVotes should need preprocessing")
	}
	if diff := cmp.Diff([]string{"Users", "KernelVersions"}, kv.Parents()); diff != "" {
		t.Fatalf("Parents() mismatch (-want +got):\n%s", diff)
	}
	byParent := kv.ReferencesByParent()
	if got := byParent["KernelVersions"]; len(got) != 1 || got[0] != "KernelVersionId" {
		t.Fatalf("ReferencesByParent()[KernelVersions] = %v", got)
	}

	tags, _ := MetaKaggle().Lookup("Tags")
	if !tags.Preprocessed() {
		t.Fatalf("Tags has no dates or references and should count as preprocessed")
	}
}
