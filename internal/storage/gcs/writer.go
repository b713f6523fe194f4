// Package gcs writes site artifacts to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	appstorage "github.com/JakeFAU/meteo-crawler/internal/storage"
)

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name.
	Prefix string
}

// Writer uploads artifacts as objects named prefix/dir/name.
type Writer struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed writer.
func New(client *storage.Client, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Writer{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// ObjectName returns the object an artifact is stored under.
func (w *Writer) ObjectName(dir, name string) (string, error) {
	rel, err := appstorage.ObjectPath(dir, name)
	if err != nil {
		return "", err
	}
	if w.prefix == "" {
		return rel, nil
	}
	return path.Join(w.prefix, rel), nil
}

// Write uploads data, replacing any existing object of the same name.
func (w *Writer) Write(ctx context.Context, dir, name string, data []byte) error {
	object, err := w.ObjectName(dir, name)
	if err != nil {
		return err
	}
	writer := w.client.Bucket(w.bucket).Object(object).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		writer.ContentType = ct
	}
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", object, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", object, err)
	}
	return nil
}

var _ appstorage.Writer = (*Writer)(nil)
