// Package bitmap provides a dense bitset for sets of non-negative integer
// IDs. The referential filter uses it to hold a parent table's Id column when
// the ids are small enough to make a dense set cheaper than a hash set.
package bitmap

import "math/bits"

// Bitmap is a bitset backed by a slice of uint64 words. Bit i is set when id
// i is a member.
type Bitmap struct {
	data []uint64
	n    int
}

// New allocates a bitmap that can hold every id in [0, maxID]. A negative
// maxID yields an empty bitmap that rejects every Add.
func New(maxID int64) *Bitmap {
	if maxID < 0 {
		return &Bitmap{}
	}
	return &Bitmap{data: make([]uint64, maxID/64+1)}
}

// Cap returns the largest id the bitmap can hold, or -1.
func (b *Bitmap) Cap() int64 {
	return int64(len(b.data))*64 - 1
}

// Add sets the bit for id. It reports false when id is outside [0, Cap()].
func (b *Bitmap) Add(id int64) bool {
	if id < 0 || id > b.Cap() {
		return false
	}
	w, mask := id/64, uint64(1)<<uint(id%64)
	if b.data[w]&mask == 0 {
		b.data[w] |= mask
		b.n++
	}
	return true
}

// Has reports whether id is a member.
func (b *Bitmap) Has(id int64) bool {
	if id < 0 || id > b.Cap() {
		return false
	}
	return b.data[id/64]&(uint64(1)<<uint(id%64)) != 0
}

// Len returns the number of members.
func (b *Bitmap) Len() int { return b.n }

// Count recomputes the number of members from the words.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.data {
		n += bits.OnesCount64(w)
	}
	return n
}
