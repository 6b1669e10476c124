package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/engram-ai/engram/src/memory/model"
)

// InMemoryStore is the reference Store implementation. It is fully
// functional and safe for concurrent use, intended for tests and
// single-process deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[string]model.MemoryRecord
	versions map[string][]model.MemoryVersion
	nowFn    func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:  make(map[string]model.MemoryRecord),
		versions: make(map[string][]model.MemoryVersion),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, for decay and versioning tests.
func (s *InMemoryStore) WithNow(nowFn func() time.Time) *InMemoryStore {
	s.nowFn = nowFn
	return s
}

func (s *InMemoryStore) Create(_ context.Context, rec *model.MemoryRecord) error {
	if err := prepareCreate(rec, s.nowFn()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// lookup fetches a record and enforces ownership. Callers hold the lock.
func (s *InMemoryStore) lookup(ownerID, id string) (model.MemoryRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return model.MemoryRecord{}, ErrNotFound
	}
	if rec.OwnerID != ownerID {
		return model.MemoryRecord{}, ErrUnauthorized
	}
	return rec, nil
}

func (s *InMemoryStore) Get(_ context.Context, ownerID, id string) (model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(ownerID, id)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, ownerID, id string, req UpdateRequest) (model.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(ownerID, id)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if !rec.Active {
		return model.MemoryRecord{}, ErrNotFound
	}

	now := s.nowFn()
	prior := rec.Content
	if applyUpdate(&rec, req, now) {
		s.versions[id] = append(s.versions[id], model.MemoryVersion{
			MemoryID:  id,
			Version:   len(s.versions[id]) + 1,
			Content:   prior,
			Reason:    req.Reason,
			ChangedBy: req.ChangedBy,
			CreatedAt: now,
		})
	}
	s.records[id] = rec.Clone()
	return rec, nil
}

func (s *InMemoryStore) SoftDelete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookup(ownerID, id)
	if err != nil {
		return err
	}
	if !rec.Active {
		return ErrNotFound
	}
	rec.Active = false
	rec.UpdatedAt = s.nowFn()
	s.records[id] = rec
	return nil
}

func (s *InMemoryStore) HardDelete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(ownerID, id); err != nil {
		return err
	}
	delete(s.records, id)
	delete(s.versions, id)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, ownerID string, filter ListFilter, order Order) ([]model.MemoryRecord, error) {
	s.mu.RLock()
	out := make([]model.MemoryRecord, 0)
	for _, rec := range s.records {
		if rec.OwnerID != ownerID || !rec.Active {
			continue
		}
		if !matchesFilter(rec, filter) {
			continue
		}
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sortRecords(out, order)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Pinned(ctx context.Context, ownerID string) ([]model.MemoryRecord, error) {
	pinned := true
	return s.List(ctx, ownerID, ListFilter{Pinned: &pinned}, OrderImportanceDesc)
}

func (s *InMemoryStore) Versions(_ context.Context, ownerID, id string) ([]model.MemoryVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.lookup(ownerID, id); err != nil {
		return nil, err
	}
	return append([]model.MemoryVersion(nil), s.versions[id]...), nil
}

func (s *InMemoryStore) Touch(_ context.Context, ownerID string, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok || rec.OwnerID != ownerID || !rec.Active {
			continue
		}
		rec.AccessCount++
		t := at
		rec.LastAccessedAt = &t
		s.records[id] = rec
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func sortRecords(records []model.MemoryRecord, order Order) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch order {
		case OrderUpdatedDesc:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case OrderImportanceDesc:
			if a.Importance != b.Importance {
				return a.Importance > b.Importance
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	})
}

var _ Store = (*InMemoryStore)(nil)
