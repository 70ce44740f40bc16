// Package blob stores uploaded files under hierarchical string paths of
// the form <folder>/<userId>/<timestamp>_<originalFileName>. The path is
// the file's identity; there is no separate metadata record.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("file not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrInvalidPath  = errors.New("invalid file path")
)

// DefaultMaxSize caps uploads when no limit is configured.
const DefaultMaxSize = 10 << 20

// FileInfo describes a stored file.
type FileInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Store is the contract for blob backends.
type Store interface {
	Save(ctx context.Context, path string, content io.Reader) (*FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, *FileInfo, error)
	Delete(ctx context.Context, path string) error
	// List returns files whose path starts with prefix, most recent first.
	List(ctx context.Context, prefix string) ([]*FileInfo, error)
}

// ObjectPath builds the canonical storage path for an upload. The
// original file name survives (sanitized) so downloads keep it, and the
// millisecond timestamp prefix keeps repeated uploads of the same name
// from colliding.
func ObjectPath(folder, userID, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", folder, userID, now.UnixMilli(), SanitizeFileName(fileName))
}

// SanitizeFileName strips directory components and replaces anything
// outside [a-zA-Z0-9._-] so the name is safe on every backend.
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if strings.Trim(out, "._-") == "" {
		return "file"
	}
	return out
}

// cleanPath normalizes a storage path and rejects anything that could
// escape the store root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", ErrInvalidPath
	}
	p = strings.ReplaceAll(p, `\`, "/")
	cleaned := path.Clean(p)
	if cleaned == "." || strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
