// Package storage defines where emitted site artifacts are written.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Writer persists one artifact. Writing an existing name overwrites it.
type Writer interface {
	Write(ctx context.Context, dir, name string, data []byte) error
}

// ObjectPath joins dir and name into a slash separated relative path and
// rejects names that would escape dir.
func ObjectPath(dir, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	cleanDir := path.Clean(strings.ReplaceAll(dir, `\`, "/"))
	if cleanDir == ".." || strings.HasPrefix(cleanDir, "../") || strings.HasPrefix(cleanDir, "/") {
		return "", fmt.Errorf("path traversal detected in %q", dir)
	}
	if cleanDir == "." {
		return name, nil
	}
	return cleanDir + "/" + name, nil
}
