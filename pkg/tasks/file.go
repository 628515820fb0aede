package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var _ Store = (*FileStore)(nil)

// FileStore implements Store using one JSON file per record, so relay state
// survives process restarts. Layout: <baseDir>/<session>/<task>.json.
type FileStore struct {
	baseDir string
	mutex   sync.RWMutex
}

// NewFileStore creates a file-backed task store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Put inserts or replaces the record for the given session and task.
func (s *FileStore) Put(ctx context.Context, sessionID, taskID string, record *Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.recordPath(sessionID, taskID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Write to a temp file and rename so readers never see partial records.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize record: %w", err)
	}
	return nil
}

// Get retrieves a snapshot of the record, or nil if absent.
func (s *FileStore) Get(ctx context.Context, sessionID, taskID string) (*Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	data, err := os.ReadFile(s.recordPath(sessionID, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

// Take retrieves the record and removes its file under one lock acquisition.
func (s *FileStore) Take(ctx context.Context, sessionID, taskID string) (*Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := s.recordPath(sessionID, taskID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to delete record: %w", err)
	}
	return &record, nil
}

// Delete removes the record if present.
func (s *FileStore) Delete(ctx context.Context, sessionID, taskID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.recordPath(sessionID, taskID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

func (s *FileStore) recordPath(sessionID, taskID string) string {
	return filepath.Join(s.baseDir, sanitizeID(sessionID), sanitizeID(taskID)+".json")
}

// sanitizeID makes an identifier safe to use as a path component.
func sanitizeID(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return replacer.Replace(id)
}
