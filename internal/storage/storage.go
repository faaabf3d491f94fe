// Package storage defines the FileStore interface the server uses to persist
// generated audio artifacts. It abstracts the underlying backend so the
// synthesis pipeline and the HTTP layer can run against local disk or an
// S3-compatible object store without changing application code.
//
// Paths are plain artifact names such as "question_3.mp3". They must be
// forward-slash separated, relative, and must not escape the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

// ErrInvalidPath is returned for artifact paths that are absolute, empty, or
// contain ".." segments.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileStore is a minimal interface for file-oriented storage.
//
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing.
	// If the file already exists it is truncated.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file.
	// If the file does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// blobPutter is implemented by stores that can upload a complete buffer more
// efficiently than through the streaming Write path.
type blobPutter interface {
	putBlob(ctx context.Context, path string, data []byte) error
}

// WriteFile stores data under path, replacing any existing content.
func WriteFile(ctx context.Context, fs FileStore, name string, data []byte) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if p, ok := fs.(blobPutter); ok {
		return p.putBlob(ctx, name, data)
	}
	w, err := fs.Write(ctx, name)
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the full content stored under path.
func ReadFile(ctx context.Context, fs FileStore, name string) ([]byte, error) {
	if err := ValidatePath(name); err != nil {
		return nil, err
	}
	r, err := fs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ValidatePath rejects names that are empty, absolute, or that would escape
// the store root.
func ValidatePath(name string) error {
	if name == "" || name == "." || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	if path.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, name)
		}
	}
	return nil
}

// ContentType guesses the MIME type of an artifact from its extension.
func ContentType(name string) string {
	ext := path.Ext(name)
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".json":
		return "application/json"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
