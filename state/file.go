package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every symbol in one JSON document. Saves are a
// read-modify-write of the whole file, serialized by a process-wide lock
// and committed with an atomic rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("empty state path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context, symbol string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := doc[symbol]
	if !ok {
		return Entry{}, false, nil
	}
	return e.clone(), true, nil
}

func (s *FileStore) Save(ctx context.Context, symbol string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if err != nil {
		// An unparsable document is moved aside so the rewrite does not
		// silently destroy it.
		if rerr := os.Rename(s.path, s.path+".corrupt"); rerr != nil {
			return fmt.Errorf("state %s unreadable (%v) and not movable: %w", s.path, err, rerr)
		}
		doc = Document{}
	}
	doc[symbol] = e.clone()
	return s.writeLocked(doc)
}

func (s *FileStore) Dump(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readLocked() (Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return Document{}, nil
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return doc, nil
}

func (s *FileStore) writeLocked(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
