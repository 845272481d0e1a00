package store

import (
	"errors"
	"sync"
	"time"

	"github.com/gothamair/airpulse/internal/aq"
)

var (
	// ErrNotFound is returned when no snapshot is available for an area.
	ErrNotFound = errors.New("no snapshot for area")
)

// snapshotHistory holds a time-ordered list of snapshots for one watch area.
type snapshotHistory struct {
	snapshots []aq.Snapshot
}

// MemoryStore is a concurrency-safe in-memory snapshot store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: watch-area key, value: history
	data map[string]*snapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per area (0 = unlimited)
	maxAge     time.Duration // max age of snapshots (0 = unlimited)
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*snapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveSnapshot appends a new snapshot for an area and enforces retention.
func (s *MemoryStore) SaveSnapshot(snap aq.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[snap.Area]
	if !ok {
		history = &snapshotHistory{}
		s.data[snap.Area] = history
	}

	history.snapshots = append(history.snapshots, snap)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.snapshots) > s.maxHistory {
		over := len(history.snapshots) - s.maxHistory
		history.snapshots = history.snapshots[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.snapshots); i++ {
			if !history.snapshots[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history.snapshots) {
			history.snapshots = history.snapshots[i:]
		}
	}
}

// GetLatest returns the most recent snapshot for an area.
func (s *MemoryStore) GetLatest(area string) (aq.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[area]
	if !ok || len(history.snapshots) == 0 {
		return aq.Snapshot{}, ErrNotFound
	}
	return history.snapshots[len(history.snapshots)-1], nil
}

// GetRange returns all snapshots for an area fetched between from and to
// (inclusive).
func (s *MemoryStore) GetRange(area string, from, to time.Time) ([]aq.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[area]
	if !ok || len(history.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []aq.Snapshot
	for _, snap := range history.snapshots {
		if !snap.FetchedAt.Before(from) && !snap.FetchedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

// Areas returns the keys of all areas that currently hold snapshots.
func (s *MemoryStore) Areas() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	areas := make([]string, 0, len(s.data))
	for k := range s.data {
		areas = append(areas, k)
	}
	return areas
}
