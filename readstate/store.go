// Package readstate remembers which articles a reader has opened.
package readstate

import (
	"context"
	"sync"
	"time"
)

type Store interface {
	MarkRead(ctx context.Context, articleId string) error
	IsRead(ctx context.Context, articleId string) (bool, error)
	// ReadSet returns the subset of ids that were marked read
	ReadSet(ctx context.Context, articleIds []string) (map[string]bool, error)
	// Tidy forgets articles marked read before olderThan and returns how many
	Tidy(ctx context.Context, olderThan time.Time) (int64, error)
}

// MemoryStore keeps read state for the lifetime of the process
type MemoryStore struct {
	mu   sync.RWMutex
	read map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{read: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryStore) MarkRead(ctx context.Context, articleId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.read[articleId]; !ok {
		s.read[articleId] = s.now()
	}
	return nil
}

func (s *MemoryStore) IsRead(ctx context.Context, articleId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.read[articleId]
	return ok, nil
}

func (s *MemoryStore) ReadSet(ctx context.Context, articleIds []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := make(map[string]bool, len(articleIds))
	for _, id := range articleIds {
		if _, ok := s.read[id]; ok {
			set[id] = true
		}
	}
	return set, nil
}

func (s *MemoryStore) Tidy(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, at := range s.read {
		if at.Before(olderThan) {
			delete(s.read, id)
			removed++
		}
	}
	return removed, nil
}
