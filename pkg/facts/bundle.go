// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package facts

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Bundle file base names inside a unit's facts directory.
const (
	EntitiesFile   = "entities.jsonl"
	RelationsFile  = "relations.jsonl"
	ParametersFile = "parameters.jsonl"
	FilesFile      = "files.jsonl"
	UsedJarsFile   = "used_jars.jsonl"
)

var bundleFiles = []string{EntitiesFile, RelationsFile, ParametersFile, FilesFile, UsedJarsFile}

// Compression selects how bundle streams are stored on disk.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression accepts "", "none", "gzip" and "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

func (c Compression) suffix() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	}
	return ""
}

// Stats counts the facts written to or read from a bundle.
type Stats struct {
	Entities   int `json:"entities"`
	Relations  int `json:"relations"`
	Parameters int `json:"parameters"`
	Files      int `json:"files"`
	UsedJars   int `json:"used_jars"`
}

type stream struct {
	f   *os.File
	zw  io.WriteCloser
	buf *bufio.Writer
	enc *json.Encoder
}

func openStream(path string, c Compression) (*stream, error) {
	f, err := os.Create(path + c.suffix())
	if err != nil {
		return nil, err
	}
	s := &stream{f: f}
	var w io.Writer = f
	switch c {
	case CompressionGzip:
		s.zw = gzip.NewWriter(f)
		w = s.zw
	case CompressionZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		s.zw = zw
		w = zw
	}
	s.buf = bufio.NewWriter(w)
	s.enc = json.NewEncoder(s.buf)
	return s, nil
}

func (s *stream) close() error {
	var errs []error
	errs = append(errs, s.buf.Flush())
	if s.zw != nil {
		errs = append(errs, s.zw.Close())
	}
	errs = append(errs, s.f.Close())
	return errors.Join(errs...)
}

// Writer writes a fact bundle. It implements Sink. Close must be called to
// flush the streams; a bundle is complete only after Close returns nil.
type Writer struct {
	dir     string
	streams map[string]*stream
	stats   Stats
}

// NewWriter creates dir and opens every bundle stream in it.
func NewWriter(dir string, c Compression) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create facts dir: %w", err)
	}
	w := &Writer{dir: dir, streams: make(map[string]*stream, len(bundleFiles))}
	for _, name := range bundleFiles {
		s, err := openStream(filepath.Join(dir, name), c)
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		w.streams[name] = s
	}
	return w, nil
}

func (w *Writer) Entity(e Entity) error {
	w.stats.Entities++
	return w.streams[EntitiesFile].enc.Encode(e)
}

func (w *Writer) Relation(r Relation) error {
	w.stats.Relations++
	return w.streams[RelationsFile].enc.Encode(r)
}

func (w *Writer) Parameter(p Parameter) error {
	w.stats.Parameters++
	return w.streams[ParametersFile].enc.Encode(p)
}

func (w *Writer) File(f FileFact) error {
	w.stats.Files++
	return w.streams[FilesFile].enc.Encode(f)
}

// UsedJar records a classpath jar of the unit.
func (w *Writer) UsedJar(j UsedJar) error {
	w.stats.UsedJars++
	return w.streams[UsedJarsFile].enc.Encode(j)
}

// Stats returns the counts written so far.
func (w *Writer) Stats() Stats {
	return w.stats
}

// Close flushes and closes every stream.
func (w *Writer) Close() error {
	var errs []error
	for name, s := range w.streams {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	w.streams = nil
	return errors.Join(errs...)
}

// Reader streams a bundle back. Missing stream files read as empty, so a
// bundle written by an older front end without parameters still imports.
type Reader struct {
	dir string
}

// NewReader returns a reader over the bundle in dir.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Dir returns the bundle directory.
func (r *Reader) Dir() string {
	return r.dir
}

func (r *Reader) Entities(fn func(Entity) error) error {
	return readStream(r.dir, EntitiesFile, fn)
}

func (r *Reader) Relations(fn func(Relation) error) error {
	return readStream(r.dir, RelationsFile, fn)
}

func (r *Reader) Parameters(fn func(Parameter) error) error {
	return readStream(r.dir, ParametersFile, fn)
}

func (r *Reader) Files(fn func(FileFact) error) error {
	return readStream(r.dir, FilesFile, fn)
}

func (r *Reader) UsedJars(fn func(UsedJar) error) error {
	return readStream(r.dir, UsedJarsFile, fn)
}

// Stats counts every record in the bundle.
func (r *Reader) Stats() (Stats, error) {
	var s Stats
	if err := r.Entities(func(Entity) error { s.Entities++; return nil }); err != nil {
		return s, err
	}
	if err := r.Relations(func(Relation) error { s.Relations++; return nil }); err != nil {
		return s, err
	}
	if err := r.Parameters(func(Parameter) error { s.Parameters++; return nil }); err != nil {
		return s, err
	}
	if err := r.Files(func(FileFact) error { s.Files++; return nil }); err != nil {
		return s, err
	}
	if err := r.UsedJars(func(UsedJar) error { s.UsedJars++; return nil }); err != nil {
		return s, err
	}
	return s, nil
}

func readStream[T any](dir, name string, fn func(T) error) error {
	rc, err := openForRead(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if rc == nil {
		return nil
	}
	defer func() { _ = rc.Close() }()

	dec := json.NewDecoder(bufio.NewReader(rc))
	for line := 1; ; line++ {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode %s record %d: %w", name, line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// openForRead finds the stream under any supported suffix. It returns nil
// without error when no variant exists.
func openForRead(base string) (io.ReadCloser, error) {
	for _, c := range []Compression{CompressionZstd, CompressionGzip, CompressionNone} {
		f, err := os.Open(base + c.suffix())
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		switch c {
		case CompressionZstd:
			zr, err := zstd.NewReader(f)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			return readCloser{Reader: zr, close: func() error { zr.Close(); return f.Close() }}, nil
		case CompressionGzip:
			gr, err := gzip.NewReader(f)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			return readCloser{Reader: gr, close: func() error { _ = gr.Close(); return f.Close() }}, nil
		default:
			return f, nil
		}
	}
	return nil, nil
}

// RemoveBundle deletes every bundle stream in dir.
func RemoveBundle(dir string) error {
	var errs []error
	for _, name := range bundleFiles {
		for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd} {
			if err := os.Remove(filepath.Join(dir, name) + c.suffix()); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
