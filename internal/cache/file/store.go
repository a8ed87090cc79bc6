// Package file provides a filesystem-backed CacheStore: one JSON file
// per cache key under a base directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config captures the parameters for the file-backed store.
type Config struct {
	// BaseDir is the directory holding one file per cache key.
	BaseDir string `mapstructure:"base_dir"`
}

// Store persists cache payloads on the local filesystem.
type Store struct {
	baseDir string
}

// New creates the base directory when missing and verifies it is
// usable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("cache path %q is not a directory", cfg.BaseDir)
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	}
	return &Store{baseDir: cfg.BaseDir}, nil
}

// Get reads the payload for key. A missing file is an absent entry, not
// an error.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache file: %w", err)
	}
	return raw, true, nil
}

// Set writes the payload via a temp file rename so readers never see a
// half-written entry.
func (s *Store) Set(_ context.Context, key string, payload []byte) error {
	path := s.path(key)
	tmp, err := os.CreateTemp(s.baseDir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish cache file: %w", err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// path maps a cache key to a file inside baseDir. Keys contain
// namespace separators; everything filesystem-unsafe becomes "_".
func (s *Store) path(key string) string {
	name := unsafeChars.ReplaceAllString(key, "_")
	return filepath.Join(s.baseDir, name+".json")
}
