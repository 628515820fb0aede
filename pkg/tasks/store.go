// Package tasks provides session-scoped persistence for task records.
package tasks

import (
	"context"
	"fmt"
	"strings"
)

// Record tracks one outstanding or completed unit of remote work. A record
// exists from the moment submission succeeds until it is consumed by a
// destructive read. IsFinal only ever transitions false to true.
type Record struct {
	AgentID string  `json:"AgentId"`
	IsFinal bool    `json:"IsFinal"`
	Message *string `json:"Message"`
}

// Clone returns a copy of the record so callers cannot mutate stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Message != nil {
		msg := *r.Message
		clone.Message = &msg
	}
	return &clone
}

// Store persists task records keyed by session token and task ID. Get returns
// (nil, nil) when no record exists; absence is not an error at this layer.
// Implementations serialize concurrent access to the same key; the policy for
// concurrent writers is last-write-wins.
type Store interface {
	// Put inserts or replaces the record for the given session and task.
	Put(ctx context.Context, sessionID, taskID string, record *Record) error

	// Get retrieves a snapshot of the record, or nil if absent.
	Get(ctx context.Context, sessionID, taskID string) (*Record, error)

	// Take retrieves the record and removes it in a single step, so of any
	// number of concurrent takers at most one receives it. Returns nil if
	// absent.
	Take(ctx context.Context, sessionID, taskID string) (*Record, error)

	// Delete removes the record. Deleting an absent record is a no-op.
	Delete(ctx context.Context, sessionID, taskID string) error

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// NewStore creates a store from a backend URI: "" or "memory://" selects the
// in-memory backend, "file://<dir>" the file-backed one.
func NewStore(uri string) (Store, error) {
	switch {
	case uri == "" || uri == "memory://":
		return NewMemoryStore(), nil
	case strings.HasPrefix(uri, "file://"):
		return NewFileStore(strings.TrimPrefix(uri, "file://"))
	default:
		return nil, fmt.Errorf("unsupported task store URI: %s", uri)
	}
}
