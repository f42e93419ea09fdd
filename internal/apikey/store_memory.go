package apikey

import (
	"context"
	"sync"
	"time"

	id "rollcall/pkg/domain"
)

// MemoryStore is the in-memory Store used by tests and database-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[id.APIKeyID]*Client
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clients: make(map[id.APIKeyID]*Client)}
}

var _ Store = (*MemoryStore)(nil)

// Seed registers or replaces a client.
func (s *MemoryStore) Seed(client Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := client
	s.clients[client.Key] = &cp
}

func (s *MemoryStore) FindByKey(_ context.Context, key id.APIKeyID) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[key]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) TouchLastUsed(_ context.Context, key id.APIKeyID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		t := at
		c.LastUsedAt = &t
	}
	return nil
}
