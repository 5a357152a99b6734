// Package store holds the metrics snapshot cache. Stopping an agent parks a
// deep copy of its metrics here; the next start consumes it. Snapshots are
// process-local and deliberately not persisted anywhere.
package store

import (
	"sync"

	"github.com/AndrewDell/3AI/internal/domain"
)

// SnapshotStore caches one metrics snapshot per agent between a stop and the
// following start.
type SnapshotStore interface {
	// Capture stores a deep copy of m, replacing any previous snapshot.
	Capture(agentID string, m domain.Metrics)

	// Restore returns the snapshot and removes it. A snapshot is consumed
	// by exactly one restore; the second call misses.
	Restore(agentID string) (domain.Metrics, bool)

	// Discard drops a snapshot without restoring it.
	Discard(agentID string)

	// Len reports how many snapshots are parked.
	Len() int
}

// MemorySnapshotStore is the in-memory SnapshotStore used in production.
type MemorySnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]domain.Metrics
}

// NewMemorySnapshotStore creates an empty snapshot cache.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snapshots: make(map[string]domain.Metrics)}
}

// Capture stores a deep copy of m under agentID.
func (s *MemorySnapshotStore) Capture(agentID string, m domain.Metrics) {
	if m == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[agentID] = m.Clone()
}

// Restore hands the snapshot back and deletes it.
func (s *MemorySnapshotStore) Restore(agentID string) (domain.Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.snapshots[agentID]
	if !ok {
		return nil, false
	}
	delete(s.snapshots, agentID)
	return m, true
}

// Discard drops the snapshot for agentID, if any.
func (s *MemorySnapshotStore) Discard(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, agentID)
}

// Len reports the number of parked snapshots.
func (s *MemorySnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}
