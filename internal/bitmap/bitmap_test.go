package bitmap

import "testing"

func TestNew_Capacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		maxID   int64
		wantCap int64
	}{
		{"negative is empty", -1, -1},
		{"zero holds a single id", 0, 63},
		{"63 fits in one word", 63, 63},
		{"64 needs a second word", 64, 127},
		{"large", 150_000_000, (150_000_000/64+1)*64 - 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := New(tt.maxID)
			if got := b.Cap(); got != tt.wantCap {
				t.Fatalf("Cap() = %d, want %d", got, tt.wantCap)
			}
			if tt.maxID >= 0 && !b.Add(tt.maxID) {
				t.Fatalf("Add(maxID=%d) rejected", tt.maxID)
			}
		})
	}
}

func TestAddHas(t *testing.T) {
	t.Parallel()

	b := New(200)
	for _, id := range []int64{0, 1, 63, 64, 127, 128, 200} {
		if !b.Add(id) {
			t.Fatalf("Add(%d) rejected", id)
		}
	}
	b.Add(64) // duplicate
	if b.Len() != 7 || b.Count() != 7 {
		t.Fatalf("Len()=%d Count()=%d, want 7", b.Len(), b.Count())
	}
	for _, id := range []int64{0, 1, 63, 64, 127, 128, 200} {
		if !b.Has(id) {
			t.Errorf("Has(%d) = false", id)
		}
	}
	for _, id := range []int64{-1, 2, 62, 65, 199, 1 << 40} {
		if b.Has(id) {
			t.Errorf("Has(%d) = true", id)
		}
	}
	if b.Add(-5) || b.Add(1<<20) {
		t.Fatalf("out-of-range Add accepted")
	}
}
