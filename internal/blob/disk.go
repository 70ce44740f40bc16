package blob

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DiskStore keeps files on the local filesystem under a root directory.
// Storage paths map directly to directories below the root.
type DiskStore struct {
	root    string
	maxSize int64
}

// NewDiskStore creates the root directory if needed. maxSize <= 0 falls
// back to DefaultMaxSize.
func NewDiskStore(root string, maxSize int64) (*DiskStore, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &DiskStore{root: root, maxSize: maxSize}, nil
}

func (s *DiskStore) Save(ctx context.Context, p string, content io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(content, s.maxSize+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}
	if n > s.maxSize {
		os.Remove(full)
		return nil, ErrFileTooLarge
	}

	stat, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	return &FileInfo{
		Path:    cleaned,
		Name:    filepath.Base(full),
		Size:    n,
		ModTime: stat.ModTime().UTC(),
	}, nil
}

func (s *DiskStore) Open(ctx context.Context, p string) (io.ReadCloser, *FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, nil, err
	}

	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	return f, &FileInfo{
		Path:    cleaned,
		Name:    filepath.Base(full),
		Size:    stat.Size(),
		ModTime: stat.ModTime().UTC(),
	}, nil
}

func (s *DiskStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	full := filepath.Join(s.root, filepath.FromSlash(cleaned))
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (s *DiskStore) List(ctx context.Context, prefix string) ([]*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleaned, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}

	var out []*FileInfo
	base := filepath.Join(s.root, filepath.FromSlash(cleaned))
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, &FileInfo{
			Path:    filepath.ToSlash(rel),
			Name:    d.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}
