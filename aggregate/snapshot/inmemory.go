package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/eventfold/go-eventfold/event"
	"github.com/eventfold/go-eventfold/version"
)

var _ Store = &InMemoryStore{}

// InMemoryStore is a map-based, thread-safe in-memory Snapshot store.
//
// Only the latest snapshot per Event Stream is retained: recording a new
// snapshot supersedes the previous one.
//
// Since there is no entry eviction, it is suggested to use this store
// only for test scenarios.
type InMemoryStore struct {
	mx        sync.RWMutex
	snapshots map[event.StreamID]Snapshot
}

// NewInMemoryStore returns a fresh new instance of the InMemoryStore snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[event.StreamID]Snapshot),
	}
}

// Record adds or supersedes the Aggregate Root state recorded for the
// specified Event Stream. This operation cannot fail.
func (s *InMemoryStore) Record(_ context.Context, id event.StreamID, v version.Version, state []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.snapshots[id] = Snapshot{
		Version: v,
		State:   state,
		TakenAt: time.Now(),
	}

	return nil
}

// Get returns the latest snapshot recorded for the specified Event Stream.
// ErrNotFound is returned if no snapshot has been recorded yet.
func (s *InMemoryStore) Get(_ context.Context, id event.StreamID) (Snapshot, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	if snap, ok := s.snapshots[id]; ok {
		return snap, nil
	}

	return Snapshot{}, ErrNotFound
}
