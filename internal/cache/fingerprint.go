package cache

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
)

// Policy decides when an existing artifact is considered stale.
type Policy string

const (
	// PolicyNone trusts any artifact that exists.
	PolicyNone Policy = "none"
	// PolicyStat rebuilds the artifact when the CSV size or mtime changed.
	PolicyStat Policy = "stat"
	// PolicyHash rebuilds the artifact when the CSV content hash changed.
	PolicyHash Policy = "hash"
)

// ParsePolicy maps a configuration string to a Policy. The empty string is
// PolicyNone.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicyNone:
		return PolicyNone, nil
	case PolicyStat, PolicyHash:
		return p, nil
	default:
		return "", fmt.Errorf("cache: unknown validation policy %q (want none, stat or hash)", s)
	}
}

// Fingerprint identifies the raw CSV an artifact was built from.
type Fingerprint struct {
	Size    int64  `msgpack:"size"`
	ModTime int64  `msgpack:"mtime"`
	Hash    uint64 `msgpack:"xxh3"`
}

// IsZero reports whether no source information was recorded.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// Compute fingerprints the file at path. Size and mtime are always filled;
// the xxh3 content hash only under PolicyHash since it reads the whole file.
func Compute(path string, p Policy) (Fingerprint, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	fp := Fingerprint{Size: fi.Size(), ModTime: fi.ModTime().UnixNano()}
	if p != PolicyHash {
		return fp, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("cache: hash %s: %w", path, err)
	}
	fp.Hash = h.Sum64()
	return fp, nil
}

// Fresh reports whether an artifact built from stored is still valid for a
// source currently fingerprinted as current.
func (p Policy) Fresh(stored, current Fingerprint) bool {
	switch p {
	case PolicyStat:
		return stored.Size == current.Size && stored.ModTime == current.ModTime
	case PolicyHash:
		return stored.Size == current.Size && stored.Hash == current.Hash
	default:
		return true
	}
}
