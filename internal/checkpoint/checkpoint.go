// Package checkpoint persists translation progress so an interrupted run
// can resume. The checkpoint has the same JSON shape as a crawl result and
// is rewritten atomically after every completed subpage. A lock file next
// to it keeps two runs from sharing one checkpoint.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nao1215/sitesift/internal/model"
)

var (
	// ErrLocked is returned by Open when another run holds the checkpoint.
	ErrLocked = errors.New("checkpoint is locked by another run")

	// ErrPersistence wraps every failure to read or write checkpoint state.
	ErrPersistence = errors.New("checkpoint persistence failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("checkpoint store is closed")
)

// LockSuffix is appended to the checkpoint path to name its lock file.
const LockSuffix = ".lock"

// Store owns one checkpoint file for the duration of a run.
type Store struct {
	path string
	lock string

	mu     sync.Mutex
	closed bool
}

// Open acquires the checkpoint at path. The lock file is created
// exclusively; if it already exists the checkpoint is in use (or a previous
// run crashed, in which case the operator removes the lock file).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create checkpoint directory: %w", ErrPersistence, err)
		}
	}
	lock := path + LockSuffix
	f, err := os.OpenFile(lock, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: remove %s if no other run is active", ErrLocked, lock)
		}
		return nil, fmt.Errorf("%w: create lock: %w", ErrPersistence, err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(lock)
		return nil, fmt.Errorf("%w: write lock: %w", ErrPersistence, err)
	}
	return &Store{path: path, lock: lock}, nil
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint. A missing file yields an empty result.
func (s *Store) Load() (*model.CrawlResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return Read(s.path)
}

// Save replaces the checkpoint with result. Readers see either the old or
// the new content, never a partial write.
func (s *Store) Save(result *model.CrawlResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return WriteAtomic(s.path, result)
}

// Close releases the lock. The checkpoint file itself is kept.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.Remove(s.lock); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: release lock: %w", ErrPersistence, err)
	}
	return nil
}

// Read loads a result file without locking it. A missing file yields an
// empty result.
func Read(path string) (*model.CrawlResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewCrawlResult(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, path, err)
	}
	result := model.NewCrawlResult()
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrPersistence, path, err)
	}
	return result, nil
}

// WriteAtomic writes result as indented JSON to a temporary file in the
// target directory, syncs it and renames it over path.
func WriteAtomic(path string, result *model.CrawlResult) error {
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close temp file: %w", ErrPersistence, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod temp file: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %w", ErrPersistence, err)
	}
	return nil
}
