package relay

import (
	"sync"

	"github.com/agent-protocol/a2a-relay/pkg/tasks"
)

// Watcher fans record updates out to subscribers so front-ends can observe a
// task over a live connection instead of polling. Publishing never blocks;
// a slow subscriber misses intermediate snapshots and catches up on the next.
type Watcher struct {
	mutex  sync.Mutex
	subs   map[string]map[int]chan tasks.Record
	nextID int
}

// Subscription is a live feed of record snapshots for one task.
type Subscription struct {
	C      <-chan tasks.Record
	cancel func()
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.cancel()
}

// NewWatcher creates an empty watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		subs: make(map[string]map[int]chan tasks.Record),
	}
}

// Subscribe registers interest in updates for the given session and task.
func (w *Watcher) Subscribe(sessionID, taskID string) *Subscription {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	key := watchKey(sessionID, taskID)
	if w.subs[key] == nil {
		w.subs[key] = make(map[int]chan tasks.Record)
	}

	id := w.nextID
	w.nextID++
	ch := make(chan tasks.Record, 8)
	w.subs[key][id] = ch

	return &Subscription{
		C: ch,
		cancel: func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			if subs, ok := w.subs[key]; ok {
				if sub, ok := subs[id]; ok {
					delete(subs, id)
					close(sub)
				}
				if len(subs) == 0 {
					delete(w.subs, key)
				}
			}
		},
	}
}

// Publish delivers a record snapshot to all subscribers of the task.
func (w *Watcher) Publish(sessionID, taskID string, record *tasks.Record) {
	if record == nil {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	for _, ch := range w.subs[watchKey(sessionID, taskID)] {
		snapshot := *record.Clone()
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func watchKey(sessionID, taskID string) string {
	return sessionID + "\x00" + taskID
}
