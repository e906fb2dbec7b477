package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of ArticleStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ArticleRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*ArticleRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec ArticleRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.NewsID]; exists {
		return fmt.Errorf("article record %q already exists", rec.NewsID)
	}
	for _, r := range s.records {
		if r.OriginID == rec.OriginID {
			r.IsCurrent = false
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.IsCurrent = true
	s.records[rec.NewsID] = &rec
	return nil
}

func (s *MemoryStore) ListCurrentByOwner(_ context.Context, ownerID string) ([]ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ArticleRecord
	for _, r := range s.records {
		if r.OwnerID == ownerID && r.IsCurrent {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryStore) ListVersions(_ context.Context, originID string) ([]ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ArticleRecord
	for _, r := range s.records {
		if r.OriginID == originID {
			result = append(result, *r)
		}
	}
	sortByVersion(result)
	return result, nil
}

func (s *MemoryStore) GetVersion(_ context.Context, newsID string) (*ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[newsID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, newsID)
	}
	rec := *r
	return &rec, nil
}

func sortByVersion(recs []ArticleRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Version < recs[j].Version })
}
