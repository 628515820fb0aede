package tasks

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	sessions map[string]map[string]*Record
	mutex    sync.RWMutex
}

// NewMemoryStore creates a new in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]*Record),
	}
}

// Put inserts or replaces the record for the given session and task.
func (s *MemoryStore) Put(ctx context.Context, sessionID, taskID string, record *Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		session = make(map[string]*Record)
		s.sessions[sessionID] = session
	}
	session[taskID] = record.Clone()
	return nil
}

// Get retrieves a snapshot of the record, or nil if absent.
func (s *MemoryStore) Get(ctx context.Context, sessionID, taskID string) (*Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	return session[taskID].Clone(), nil
}

// Take retrieves the record and removes it under one lock acquisition.
func (s *MemoryStore) Take(ctx context.Context, sessionID, taskID string) (*Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	record, exists := session[taskID]
	if !exists {
		return nil, nil
	}
	delete(session, taskID)
	if len(session) == 0 {
		delete(s.sessions, sessionID)
	}
	return record, nil
}

// Delete removes the record if present.
func (s *MemoryStore) Delete(ctx context.Context, sessionID, taskID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if session, exists := s.sessions[sessionID]; exists {
		delete(session, taskID)
		if len(session) == 0 {
			delete(s.sessions, sessionID)
		}
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
