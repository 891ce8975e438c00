// Package cache is a sharded on-disk blob store for fetched pages, images
// and exported snapshots: <root>/<kind>/<first 3 chars of id>/<id>.<ext>.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

// Kind is the top-level directory of a blob family.
type Kind string

const (
	KindListings Kind = "listings"
	KindImages   Kind = "images"
)

const (
	ExtJSON      = "json"
	ExtHTML      = "html"
	ExtFull      = "full.jpg"
	ExtThumbnail = "thumbnail.jpg"
)

const shardLen = 3

// ErrMiss is returned by Read when nothing is stored at a path.
var ErrMiss = errors.New("cache: miss")

// Store reads and writes blobs relative to its root.
type Store struct {
	fs afero.Fs
}

// New roots a Store at root inside fsys. Tests pass afero.NewMemMapFs().
func New(fsys afero.Fs, root string) *Store {
	if root == "" || root == "." {
		return &Store{fs: fsys}
	}
	return &Store{fs: afero.NewBasePathFs(fsys, root)}
}

// NewOS roots a Store at a directory on the local disk.
func NewOS(root string) *Store {
	return New(afero.NewOsFs(), root)
}

// Path is the store-relative location of an artifact.
func Path(kind Kind, id, ext string) string {
	return path.Join(string(kind), Shard(id), id+"."+ext)
}

// Shard is the sharding prefix for id.
func Shard(id string) string {
	if len(id) <= shardLen {
		return id
	}
	return id[:shardLen]
}

// Exists reports whether a blob is stored at p.
func (s *Store) Exists(p string) bool {
	ok, err := afero.Exists(s.fs, p)
	return err == nil && ok
}

// Read returns the blob at p, or ErrMiss.
func (s *Store) Read(p string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", p, err)
	}
	return data, nil
}

// Write stores data at p, creating parent directories.
func (s *Store) Write(p string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir for %s: %w", p, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", p, err)
	}
	return nil
}

// List returns every stored path of kind with the given extension, sorted.
func (s *Store) List(kind Kind, ext string) ([]string, error) {
	var out []string
	suffix := "." + ext
	err := afero.Walk(s.fs, string(kind), func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() && len(p) > len(suffix) && p[len(p)-len(suffix):] == suffix {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: list %s: %w", kind, err)
	}
	sort.Strings(out)
	return out, nil
}
