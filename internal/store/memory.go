package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/me/dicomfn/pkg/model"
)

// MemoryStore is an in-memory Store for tests and development.
//
// Records are kept in a slice ordered by (PausedAt, insertion sequence) and
// mirrored by a membership map used for dedup.
type MemoryStore struct {
	mu      sync.Mutex
	records []memoryRecord
	paused  map[model.InstanceRef]struct{}
	seq     uint64
}

type memoryRecord struct {
	model.PauseRecord
	seq uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{paused: make(map[model.InstanceRef]struct{})}
}

func (s *MemoryStore) Pause(_ context.Context, ref model.InstanceRef, at time.Time) (bool, error) {
	if err := validateRef(ref); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paused[ref]; ok {
		return false, nil
	}
	s.seq++
	// Insert after every record paused at or before at, so equal timestamps
	// keep insertion order.
	i := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].PausedAt.After(at)
	})
	s.records = slices.Insert(s.records, i, memoryRecord{
		PauseRecord: model.PauseRecord{Ref: ref, PausedAt: at},
		seq:         s.seq,
	})
	s.paused[ref] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Resume(_ context.Context, count int) ([]model.InstanceRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := []model.InstanceRef{}
	for ; count > 0 && len(s.records) > 0; count-- {
		last := s.records[len(s.records)-1]
		s.records = s.records[:len(s.records)-1]
		delete(s.paused, last.Ref)
		removed = append(removed, last.Ref)
	}
	return removed, nil
}

func (s *MemoryStore) ListPaused(_ context.Context) (map[model.InstanceRef]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[model.InstanceRef]struct{}, len(s.paused))
	for ref := range s.paused {
		out[ref] = struct{}{}
	}
	return out, nil
}

func (s *MemoryStore) Records(_ context.Context) ([]model.PauseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PauseRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		out = append(out, s.records[i].PauseRecord)
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
