package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zstd"
)

const (
	plainExt      = ".json"
	compressedExt = ".json.zst"
)

// FileBackend stores each value in its own file under a directory. Keys are
// path-escaped into flat file names.
type FileBackend struct {
	dir      string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewFileBackend creates dir if needed. With compress set, new values are
// written zstd-compressed; existing files are read in either form.
func NewFileBackend(dir string, compress bool) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &FileBackend{dir: dir, compress: compress, enc: enc, dec: dec}, nil
}

func (f *FileBackend) path(key, ext string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+ext)
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	exts := []string{plainExt, compressedExt}
	if f.compress {
		exts = []string{compressedExt, plainExt}
	}

	for _, ext := range exts {
		data, err := os.ReadFile(f.path(key, ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ext == compressedExt {
			return f.dec.DecodeAll(data, nil)
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// Put writes through a temp file and rename so readers never observe a
// partial value.
func (f *FileBackend) Put(_ context.Context, key string, value []byte) error {
	ext, stale := plainExt, compressedExt
	if f.compress {
		ext, stale = compressedExt, plainExt
		value = f.enc.EncodeAll(value, nil)
	}

	target := f.path(key, ext)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}

	// Drop the copy in the other format so Get cannot return an old value.
	if err := os.Remove(f.path(key, stale)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileBackend) Keys(ctx context.Context) ([]string, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, f.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != f.dir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		var escaped string
		switch {
		case strings.HasSuffix(name, compressedExt):
			escaped = strings.TrimSuffix(name, compressedExt)
		case strings.HasSuffix(name, plainExt):
			escaped = strings.TrimSuffix(name, plainExt)
		default:
			return nil
		}
		key, err := url.PathUnescape(escaped)
		if err != nil {
			return nil
		}

		// fastwalk calls back from several goroutines.
		mu.Lock()
		seen[key] = struct{}{}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *FileBackend) Close() error {
	f.dec.Close()
	return f.enc.Close()
}
