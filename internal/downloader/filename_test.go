package downloader

import "testing"

func TestNotebookFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		user, slug string
		want       string
		wantErr    bool
	}{
		{"alice", "titanic-eda", "alice_titanic-eda.ipynb", false},
		{"bob smith", "a/b?c", "bob_smith_a_b_c.ipynb", false},
		{"../etc", "passwd", "etc_passwd.ipynb", false},
		{"", "slug", "", true},
		{"user", "///", "", true},
	}
	for _, tt := range tests {
		got, err := NotebookFilename(tt.user, tt.slug)
		if (err != nil) != tt.wantErr {
			t.Fatalf("NotebookFilename(%q, %q) error = %v", tt.user, tt.slug, err)
		}
		if got != tt.want {
			t.Errorf("NotebookFilename(%q, %q) = %q, want %q", tt.user, tt.slug, got, tt.want)
		}
	}
}
