// Package track keeps the live telemetry state of drivers: current position,
// a bounded path history and route progress.
package track

import (
	"sort"
	"sync"
	"time"

	"github.com/dispatchkit/dispatchboard/core/model"
)

// DefaultPathLimit bounds how many historical points a track retains.
const DefaultPathLimit = 500

// Track is the known telemetry state of one driver.
type Track struct {
	DriverID int64         `json:"driver_id"`
	Current  model.Point   `json:"current"`
	Path     []model.Point `json:"path,omitempty"`
	Progress float64       `json:"progress"`
	Updated  time.Time     `json:"updated"`
}

// Telemetry converts the track into the driver-embedded representation.
func (t Track) Telemetry() *model.Telemetry {
	return &model.Telemetry{Current: t.Current, Path: t.Path, Progress: t.Progress}
}

// Store holds driver tracks.
type Store interface {
	Record(id int64, pos model.Point, progress float64, at time.Time)
	Get(id int64) (Track, bool)
	List() []Track
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[int64]Track
	pathLimit int
}

// NewMemoryStore creates a store retaining up to pathLimit historical points
// per driver. A non-positive limit uses DefaultPathLimit.
func NewMemoryStore(pathLimit int) *MemoryStore {
	if pathLimit <= 0 {
		pathLimit = DefaultPathLimit
	}
	return &MemoryStore{data: map[int64]Track{}, pathLimit: pathLimit}
}

// Record appends a telemetry sample for the driver. Progress is clamped to
// [0,100].
func (s *MemoryStore) Record(id int64, pos model.Point, progress float64, at time.Time) {
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}
	s.mu.Lock()
	t := s.data[id]
	if t.DriverID == 0 {
		t.DriverID = id
	} else {
		t.Path = append(t.Path, t.Current)
		if len(t.Path) > s.pathLimit {
			t.Path = t.Path[len(t.Path)-s.pathLimit:]
		}
	}
	t.Current = pos
	t.Progress = progress
	t.Updated = at
	s.data[id] = t
	s.mu.Unlock()
}

// Get returns the track of one driver.
func (s *MemoryStore) Get(id int64) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.data[id]
	return t, ok
}

// List returns all tracks ordered by driver id.
func (s *MemoryStore) List() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, 0, len(s.data))
	for _, t := range s.data {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}
