// Package local writes site artifacts to a filesystem.
package local

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/JakeFAU/meteo-crawler/internal/storage"
)

// Config captures the parameters for the filesystem writer.
type Config struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// BaseDir is the root every artifact directory is resolved against.
	BaseDir string
}

// Writer writes artifacts below BaseDir, one at a time.
type Writer struct {
	mu      sync.Mutex
	fs      afero.Fs
	baseDir string
}

// New creates a filesystem writer, creating BaseDir if needed.
func New(cfg Config) (*Writer, error) {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	base := cfg.BaseDir
	if strings.TrimSpace(base) == "" {
		base = "."
	}

	info, err := fs.Stat(base)
	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("base directory %s is not a directory", base)
	case err != nil:
		if mkErr := fs.MkdirAll(base, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	}

	return &Writer{fs: fs, baseDir: base}, nil
}

// Write creates dir if needed and replaces dir/name with data.
func (w *Writer) Write(_ context.Context, dir, name string, data []byte) error {
	rel, err := storage.ObjectPath(dir, name)
	if err != nil {
		return err
	}
	fullPath := filepath.Join(w.baseDir, filepath.FromSlash(rel))

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.fs.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := afero.WriteFile(w.fs, fullPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fullPath, err)
	}
	return nil
}

var _ storage.Writer = (*Writer)(nil)
