package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deusflow/newsai/internal/config"
)

// NewBackend opens the backend selected by cfg under its data directory.
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		b, err := NewFileBackend(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		b, err := NewSQLiteBackend(filepath.Join(cfg.DataDir, "newsai.db"))
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
