package samples

import (
	"context"
	"slices"
	"sync"
	"time"
)

var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. Samples are lost on restart,
// which only costs one re-synthesis per profile.
// The zero value is ready to use.
type MemStore struct {
	mu      sync.RWMutex
	samples map[int]Sample
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{samples: make(map[int]Sample)}
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, profileID int) (*Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.samples[profileID]
	if !ok {
		return nil, nil
	}
	return &sm, nil
}

// InsertIfAbsent implements [Store.InsertIfAbsent].
func (s *MemStore) InsertIfAbsent(_ context.Context, sm Sample) (Sample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == nil {
		s.samples = make(map[int]Sample)
	}
	if existing, ok := s.samples[sm.VoiceProfileID]; ok {
		return existing, false, nil
	}
	if sm.CreatedAt.IsZero() {
		sm.CreatedAt = time.Now().UTC()
	}
	s.samples[sm.VoiceProfileID] = sm
	return sm, true, nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context) ([]Sample, error) {
	s.mu.RLock()
	out := make([]Sample, 0, len(s.samples))
	for _, sm := range s.samples {
		out = append(out, sm)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Sample) int { return a.VoiceProfileID - b.VoiceProfileID })
	return out, nil
}
