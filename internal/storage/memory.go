package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorage keeps items in process. Contents are lost on restart.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
	order  []string
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }

func (s *MemoryStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStorage) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	if i := slices.Index(s.order, key); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// EachItem iterates over a snapshot, so fn may call back into the store.
func (s *MemoryStorage) EachItem(ctx context.Context, fn func(key, value string) error) error {
	s.mu.RLock()
	keys := slices.Clone(s.order)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = s.values[k]
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.values)), nil
}
