package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps records in process memory. Nothing survives a restart;
// it backs the development and serverless targets when no database is set up.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	seq     int64
}

type memoryRecord struct {
	rec GeneratedResponse
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) CreateSchema(ctx context.Context) error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Insert(ctx context.Context, rec *GeneratedResponse) (*GeneratedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return nil, ErrDuplicateID
	}
	stored := *rec
	stored.CreatedAt = normalizeTime(stored.CreatedAt)
	s.seq++
	s.records[stored.ID] = memoryRecord{rec: stored, seq: s.seq}

	out := stored
	return &out, nil
}

func (s *MemoryStore) SelectRecent(ctx context.Context, limit int) ([]GeneratedResponse, error) {
	s.mu.RLock()
	all := make([]memoryRecord, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].rec.CreatedAt.Equal(all[j].rec.CreatedAt) {
			return all[i].rec.CreatedAt.After(all[j].rec.CreatedAt)
		}
		return all[i].seq > all[j].seq
	})

	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]GeneratedResponse, 0, len(all))
	for _, r := range all {
		out = append(out, r.rec)
	}
	return out, nil
}

func (s *MemoryStore) SelectByID(ctx context.Context, id string) (*GeneratedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	out := r.rec
	return &out, nil
}
