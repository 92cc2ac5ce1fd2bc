package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/sovisith1/amazon-price-tracker/internal/model"
)

// ErrWrite wraps failures of the underlying medium (disk full, permission
// denied). Callers check it with errors.Is; the poller treats it as a soft
// per-tick failure.
var ErrWrite = errors.New("store write failed")

// Store is the append-only observation log for one tracked product.
// Single writer (the poller), any number of readers.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	f    *os.File
	size int64
	obs  []model.Observation

	// fsync flushes the file; swappable so tests can fail the sync path.
	fsync func() error
}

// Open creates or opens the log at path and replays it into memory.
// A torn trailing entry (crash during a previous append) is dropped and
// truncated away; a corrupt entry anywhere else is an error.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read log file: %w", err)
	}

	var obs []model.Observation
	off := 0
	for off < len(data) {
		nl := bytes.IndexByte(data[off:], '\n')
		if nl < 0 {
			// No terminating newline: a partial append. Drop it.
			break
		}
		var o model.Observation
		if err := json.Unmarshal(data[off:off+nl], &o); err != nil {
			if off+nl+1 == len(data) {
				// Unparseable final entry, same treatment as a torn tail.
				break
			}
			f.Close()
			return nil, fmt.Errorf("corrupt log entry at byte %d: %w", off, err)
		}
		obs = append(obs, o)
		off += nl + 1
	}

	if off < len(data) {
		logger.Warn("dropping torn log tail",
			"path", path,
			"bytes", len(data)-off,
		)
		if err := f.Truncate(int64(off)); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate torn tail: %w", err)
		}
	}
	if _, err := f.Seek(int64(off), io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek log end: %w", err)
	}

	logger.Debug("opened price log", "path", path, "entries", len(obs))

	return &Store{
		path:   path,
		logger: logger,
		f:      f,
		size:   int64(off),
		obs:    obs,
		fsync:  f.Sync,
	}, nil
}

// Append writes obs to the end of the log. The entry is fsynced before
// Append returns: a reader opening the file afterwards sees it. On a
// partial write the file is rolled back so earlier entries stay intact.
func (s *Store) Append(obs model.Observation) error {
	line, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.f.Write(line); err != nil {
		s.rollback()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := s.fsync(); err != nil {
		// The line is in the file but not durable; a dropped
		// observation must not reappear on the next replay.
		s.rollback()
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.size += int64(len(line))
	s.obs = append(s.obs, obs)
	return nil
}

// rollback cuts the file back to the last durable entry after a failed
// append. Best effort; the caller already reports ErrWrite.
func (s *Store) rollback() {
	s.f.Truncate(s.size)
	s.f.Seek(s.size, io.SeekStart)
}

// All returns every observation ever appended, oldest first. The lock is
// held only long enough to copy the sequence, never for the caller's
// computation over it.
func (s *Store) All() []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Observation, len(s.obs))
	copy(out, s.obs)
	return out
}

// Len returns the number of observations in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.obs)
}

// Last returns the most recent observation, if any.
func (s *Store) Last() (model.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.obs) == 0 {
		return model.Observation{}, false
	}
	return s.obs[len(s.obs)-1], true
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying file. Append after Close fails.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
