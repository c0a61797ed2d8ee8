package csv

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// newDecodingReader strips a leading byte order mark and decodes the stream
// as UTF-8 (or UTF-16 when the BOM says so). Invalid UTF-8 sequences are
// replaced with U+FFFD rather than failing the whole table.
func newDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// cleanHeaders trims header cells, drops any leftover BOM on the first cell
// and puts every name in NFC so that visually identical headers compare equal.
func cleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = norm.NFC.String(strings.TrimSpace(h))
	}
	return out
}
