package blob

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type storedFile struct {
	data    []byte
	modTime time.Time
}

// MemoryStore is a thread-safe in-memory Store for tests and
// development.
type MemoryStore struct {
	mu      sync.RWMutex
	files   map[string]storedFile
	maxSize int64
}

// NewMemoryStore returns an empty MemoryStore. maxSize <= 0 falls back
// to DefaultMaxSize.
func NewMemoryStore(maxSize int64) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryStore{
		files:   make(map[string]storedFile),
		maxSize: maxSize,
	}
}

func (s *MemoryStore) Save(_ context.Context, p string, content io.Reader) (*FileInfo, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrFileTooLarge
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.files[cleaned] = storedFile{data: data, modTime: now}
	s.mu.Unlock()

	return &FileInfo{
		Path:    cleaned,
		Name:    path.Base(cleaned),
		Size:    int64(len(data)),
		ModTime: now,
	}, nil
}

func (s *MemoryStore) Open(_ context.Context, p string) (io.ReadCloser, *FileInfo, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	f, ok := s.files[cleaned]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}

	info := &FileInfo{
		Path:    cleaned,
		Name:    path.Base(cleaned),
		Size:    int64(len(f.data)),
		ModTime: f.modTime,
	}
	return io.NopCloser(bytes.NewReader(f.data)), info, nil
}

func (s *MemoryStore) Delete(_ context.Context, p string) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[cleaned]; !ok {
		return ErrNotFound
	}
	delete(s.files, cleaned)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]*FileInfo, error) {
	cleaned, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*FileInfo
	for p, f := range s.files {
		if p != cleaned && !strings.HasPrefix(p, cleaned+"/") {
			continue
		}
		out = append(out, &FileInfo{
			Path:    p,
			Name:    path.Base(p),
			Size:    int64(len(f.data)),
			ModTime: f.modTime,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}
