// Package inventory reads the authoritative room counts owned by the
// external hotel catalog. Capacity is read-mostly reference data, so the
// engine sees it through a read-through cache with explicit invalidation
// for the rare capacity change.
package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Provider is the upstream inventory collaborator. Unknown hotels report
// zero rooms rather than an error; the caller supplied an opaque ID list
// it does not fully control.
type Provider interface {
	TotalRooms(ctx context.Context, hotelID string) (int, error)
}

// Store caches Provider answers until invalidated.
type Store struct {
	provider Provider

	mu    sync.RWMutex
	cache map[string]int
}

func NewStore(provider Provider) *Store {
	return &Store{
		provider: provider,
		cache:    make(map[string]int),
	}
}

func (s *Store) TotalRooms(ctx context.Context, hotelID string) (int, error) {
	s.mu.RLock()
	total, ok := s.cache[hotelID]
	s.mu.RUnlock()

	if ok {
		return total, nil
	}

	total, err := s.provider.TotalRooms(ctx, hotelID)
	if err != nil {
		return 0, fmt.Errorf("fetch total rooms for hotel %v: %w", hotelID, err)
	}

	s.mu.Lock()
	s.cache[hotelID] = total
	s.mu.Unlock()

	return total, nil
}

// Invalidate drops the cached count for one hotel so the next read hits
// the provider again.
func (s *Store) Invalidate(hotelID string) {
	s.mu.Lock()
	delete(s.cache, hotelID)
	s.mu.Unlock()
}

// Memory is a Provider backed by a plain map, used for local runs and
// tests in place of the real catalog service.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]int
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]int)}
}

func (m *Memory) SetTotalRooms(hotelID string, total int) {
	m.mu.Lock()
	m.rooms[hotelID] = total
	m.mu.Unlock()
}

func (m *Memory) TotalRooms(_ context.Context, hotelID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rooms[hotelID], nil
}
