// Package cache persists preprocessed tables so later runs (and later tables
// of the same run) can skip CSV parsing, date coercion and referential
// filtering.
//
// An artifact is a zstd-compressed msgpack stream: a header carrying the
// column layout and the source fingerprint, followed by the cells of every
// row encoded according to their column kind.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"kgtorrent/internal/table"
)

// Ext is the artifact file extension.
const Ext = ".kgt.zst"

const formatVersion = 1

// ErrNotExist is returned when a table has no artifact.
var ErrNotExist = errors.New("cache: artifact does not exist")

// CacheWriteError reports a failure to persist an artifact. It is not fatal
// for a load run.
type CacheWriteError struct {
	Table string
	Path  string
	Err   error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache: write %s (%s): %v", e.Table, e.Path, e.Err)
}

func (e *CacheWriteError) Unwrap() error { return e.Err }

// Header is the first value of every artifact.
type Header struct {
	Version int            `msgpack:"v"`
	Table   string         `msgpack:"table"`
	Columns []columnHeader `msgpack:"cols"`
	Rows    int            `msgpack:"rows"`
	Source  Fingerprint    `msgpack:"src"`
	Created time.Time      `msgpack:"created"`
}

type columnHeader struct {
	Name string `msgpack:"n"`
	Kind uint8  `msgpack:"k"`
}

// Store reads and writes artifacts in a single directory.
type Store struct {
	dir   string
	level zstd.EncoderLevel
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, level: zstd.SpeedDefault}
}

// Path returns the artifact path of the named table.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// Exists reports whether the named table has an artifact.
func (s *Store) Exists(name string) bool {
	fi, err := os.Stat(s.Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Write atomically replaces the artifact of t. Failures are returned as
// *CacheWriteError.
func (s *Store) Write(t *table.Table, src Fingerprint) (err error) {
	path := s.Path(t.Name)
	werr := func(e error) error { return &CacheWriteError{Table: t.Name, Path: path, Err: e} }

	f, err := os.CreateTemp(s.dir, "."+t.Name+"-*.tmp")
	if err != nil {
		return werr(err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(s.level))
	if err != nil {
		return werr(err)
	}
	if err := encodeTable(msgpack.NewEncoder(zw), t, src); err != nil {
		_ = zw.Close()
		return werr(err)
	}
	if err := zw.Close(); err != nil {
		return werr(err)
	}
	if err := f.Sync(); err != nil {
		return werr(err)
	}
	if err := f.Close(); err != nil {
		return werr(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return werr(err)
	}
	return nil
}

// Header decodes only the header of the named artifact.
func (s *Store) Header(name string) (Header, error) {
	var hdr Header
	err := s.open(name, func(dec *msgpack.Decoder) error {
		h, err := decodeHeader(dec)
		hdr = h
		return err
	})
	return hdr, err
}

// Read decodes the named artifact.
func (s *Store) Read(name string) (*table.Table, Header, error) {
	var (
		t   *table.Table
		hdr Header
	)
	err := s.open(name, func(dec *msgpack.Decoder) error {
		var err error
		hdr, err = decodeHeader(dec)
		if err != nil {
			return err
		}
		t, err = decodeRows(dec, hdr)
		return err
	})
	if err != nil {
		return nil, Header{}, err
	}
	return t, hdr, nil
}

// Remove deletes the named artifact; a missing artifact is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) open(name string, fn func(*msgpack.Decoder) error) error {
	path := s.Path(name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("cache: open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("cache: %s: %w", path, err)
	}
	defer zr.Close()

	if err := fn(msgpack.NewDecoder(zr)); err != nil {
		return fmt.Errorf("cache: decode %s: %w", path, err)
	}
	return nil
}

func encodeTable(enc *msgpack.Encoder, t *table.Table, src Fingerprint) error {
	hdr := Header{
		Version: formatVersion,
		Table:   t.Name,
		Columns: make([]columnHeader, len(t.Columns)),
		Rows:    len(t.Rows),
		Source:  src,
		Created: time.Now().UTC(),
	}
	for i, c := range t.Columns {
		hdr.Columns[i] = columnHeader{Name: c.Name, Kind: uint8(c.Kind)}
	}
	if err := enc.Encode(&hdr); err != nil {
		return err
	}
	for ri, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", ri, len(row), len(t.Columns))
		}
		for ci, v := range row {
			if err := encodeCell(enc, t.Columns[ci].Kind, v); err != nil {
				return fmt.Errorf("row %d column %s: %w", ri, t.Columns[ci].Name, err)
			}
		}
	}
	return nil
}

func encodeCell(enc *msgpack.Encoder, k table.Kind, v any) error {
	if v == nil {
		return enc.EncodeNil()
	}
	switch k {
	case table.KindInt:
		if x, ok := v.(int64); ok {
			return enc.EncodeInt(x)
		}
	case table.KindFloat:
		if x, ok := v.(float64); ok {
			return enc.EncodeFloat64(x)
		}
	case table.KindBool:
		if x, ok := v.(bool); ok {
			return enc.EncodeBool(x)
		}
	case table.KindString:
		if x, ok := v.(string); ok {
			return enc.EncodeString(x)
		}
	case table.KindTime:
		if x, ok := v.(time.Time); ok {
			return enc.EncodeTime(x.UTC())
		}
	}
	return fmt.Errorf("value %v (%T) does not match column kind %v", v, v, k)
}

func decodeHeader(dec *msgpack.Decoder) (Header, error) {
	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return Header{}, fmt.Errorf("header: %w", err)
	}
	if hdr.Version != formatVersion {
		return Header{}, fmt.Errorf("unsupported artifact version %d", hdr.Version)
	}
	return hdr, nil
}

func decodeRows(dec *msgpack.Decoder, hdr Header) (*table.Table, error) {
	t := &table.Table{
		Name:    hdr.Table,
		Columns: make([]table.Column, len(hdr.Columns)),
		Rows:    make([][]any, hdr.Rows),
	}
	for i, c := range hdr.Columns {
		t.Columns[i] = table.Column{Name: c.Name, Kind: table.Kind(c.Kind)}
	}
	for ri := range t.Rows {
		row := make([]any, len(t.Columns))
		for ci, c := range t.Columns {
			v, err := decodeCell(dec, c.Kind)
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = io.ErrUnexpectedEOF
				}
				return nil, fmt.Errorf("row %d column %s: %w", ri, c.Name, err)
			}
			row[ci] = v
		}
		t.Rows[ri] = row
	}
	return t, nil
}

func decodeCell(dec *msgpack.Decoder, k table.Kind) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	if code == msgpcode.Nil {
		return nil, dec.DecodeNil()
	}
	switch k {
	case table.KindInt:
		return dec.DecodeInt64()
	case table.KindFloat:
		return dec.DecodeFloat64()
	case table.KindBool:
		return dec.DecodeBool()
	case table.KindString:
		return dec.DecodeString()
	case table.KindTime:
		ts, err := dec.DecodeTime()
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	default:
		return nil, fmt.Errorf("unexpected value for column kind %v", k)
	}
}
