// Package filecache keeps object XML documents as files laid out as
// <dir>/<family>/<id>.xml, optionally gzip-compressed (.xml.gz).
package filecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/geodov/godov/internal/cache/keys"
)

type Store struct {
	dir    string
	maxAge time.Duration
	gzip   bool
	now    func() time.Time
}

// NewPlain stores documents as they were received.
func NewPlain(dir string, maxAge time.Duration) *Store {
	return &Store{dir: dir, maxAge: maxAge, now: time.Now}
}

// NewGzip stores documents gzip-compressed.
func NewGzip(dir string, maxAge time.Duration) *Store {
	return &Store{dir: dir, maxAge: maxAge, gzip: true, now: time.Now}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) ext() string {
	if s.gzip {
		return ".xml.gz"
	}
	return ".xml"
}

// Path returns the file a permanent key is stored in.
func (s *Store) Path(pkey string) (string, error) {
	e, err := keys.Parse(pkey)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, e.Family, e.ID+s.ext()), nil
}

func (s *Store) valid(info fs.FileInfo) bool {
	return s.maxAge <= 0 || s.now().Sub(info.ModTime()) <= s.maxAge
}

func (s *Store) Get(_ context.Context, pkey string) ([]byte, bool, error) {
	path, err := s.Path(pkey)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !s.valid(info) {
		return nil, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		// removed by a concurrent clean
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !s.gzip {
		return raw, true, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("gunzip %s: %w", path, err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, false, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return data, true, nil
}

// Put writes to a temporary file next to the target and renames it into
// place, so readers never see a partial document.
func (s *Store) Put(_ context.Context, pkey string, data []byte) error {
	path, err := s.Path(pkey)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var w io.Writer = tmp
	var zw *gzip.Writer
	if s.gzip {
		zw = gzip.NewWriter(tmp)
		w = zw
	}
	if _, err := w.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("gzip %s: %w", path, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func (s *Store) Invalidate(_ context.Context, pkey string) error {
	path, err := s.Path(pkey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clean removes expired entries and stale temporary files.
func (s *Store) Clean(ctx context.Context) error {
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, s.ext()) && !strings.HasPrefix(name, ".tmp-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !s.valid(info) {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clean %s: %w", s.dir, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context) error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove %s: %w", s.dir, err)
	}
	return nil
}
