package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deusflow/newsai/internal/article"
)

const (
	articlesFile  = "articles.json"
	discardedFile = "discarded.json"
	archivedFile  = "archived.json"
)

// FileBackend keeps each store as a JSON array in dir.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed and returns a backend rooted at it.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) LoadArticles(_ context.Context) ([]*article.Record, error) {
	return loadJSON[*article.Record](f.dir, articlesFile)
}

func (f *FileBackend) SaveArticles(_ context.Context, records []*article.Record) error {
	return f.save(articlesFile, records)
}

func (f *FileBackend) LoadDiscarded(_ context.Context) ([]article.Discarded, error) {
	return loadJSON[article.Discarded](f.dir, discardedFile)
}

func (f *FileBackend) SaveDiscarded(_ context.Context, entries []article.Discarded) error {
	return f.save(discardedFile, entries)
}

func (f *FileBackend) LoadArchived(_ context.Context) ([]*article.Record, error) {
	return loadJSON[*article.Record](f.dir, archivedFile)
}

func (f *FileBackend) SaveArchived(_ context.Context, records []*article.Record) error {
	return f.save(archivedFile, records)
}

func (f *FileBackend) Close() error { return nil }

// loadJSON decodes the array stored in dir/name. A missing or empty file
// yields no entries. A file that fails to decode yields no entries and an
// ErrDecode error; partially decoded values are never returned.
func loadJSON[T any](dir, name string) ([]T, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrDecode, name, err)
	}
	return out, nil
}

// save replaces name atomically: write a temp file in the same dir, then rename.
func (f *FileBackend) save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
