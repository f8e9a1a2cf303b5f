package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type Storer[T ValidatingSpec] interface {
	Get(id string) (T, bool)
	GetAll() map[string]T
	Save(id string, rec T) error
}

type FileStoreOpt func(*fileStoreOptions)

type fileStoreOptions struct {
	create bool
}

// WithCreateDir creates the store directory when it does not exist yet.
func WithCreateDir() FileStoreOpt {
	return func(o *fileStoreOptions) {
		o.create = true
	}
}

// FileStore keeps one JSON file per record under a directory and serves
// reads from memory. All records are loaded and validated on construction.
type FileStore[T ValidatingSpec] struct {
	dir     string
	records map[string]T

	mu sync.RWMutex
}

func NewFileStore[T ValidatingSpec](dir string, opts ...FileStoreOpt) (*FileStore[T], error) {
	var o fileStoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	s := &FileStore[T]{
		dir:     dir,
		records: map[string]T{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore[T]) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.WalkDir(s.dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		asset, err := readAsset[T](path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", filepath.Base(path), err)
		}
		if err := asset.Validate(); err != nil {
			return fmt.Errorf("validating %s: %w", filepath.Base(path), err)
		}
		if _, dup := s.records[asset.Id]; dup {
			return fmt.Errorf("duplicate id %q in %s", asset.Id, path)
		}

		s.records[asset.Id] = asset.Spec
		return nil
	})
}

func readAsset[T ValidatingSpec](path string) (*Asset[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	asset := &Asset[T]{}
	if err := json.Unmarshal(data, asset); err != nil {
		return nil, fmt.Errorf("unmarshalling asset: %w", err)
	}
	return asset, nil
}

// Get returns the record stored under id.
func (s *FileStore[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	return rec, ok
}

// GetAll returns a copy of the id to record map.
func (s *FileStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]T, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// Save validates rec, writes it to disk and then updates the cache. A record
// that fails validation or cannot be written leaves the cache untouched.
func (s *FileStore[T]) Save(id string, rec T) error {
	asset := &Asset[T]{
		Version: CurrentVersion,
		Id:      id,
		Spec:    rec,
	}
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validating %s: %w", id, err)
	}

	data, err := json.MarshalIndent(asset, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := atomicWrite(filepath.Join(s.dir, id+".json"), data); err != nil {
		return err
	}
	s.records[id] = rec
	return nil
}

// atomicWrite writes to a sibling temp file and renames it over path so a
// crash never leaves a truncated record behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
