package cart

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]Cart
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[string]Cart{}, now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.carts[sessionID]
	c.SessionID = sessionID
	c.LastActive = s.now().UTC()
	s.carts[sessionID] = c

	out := c
	out.Items = append([]Item(nil), c.Items...)
	return &out, nil
}

func (s *MemoryStore) SetItemQuantity(_ context.Context, sessionID string, item Item) ([]Item, error) {
	return s.mutate(sessionID, func(c *Cart) { c.upsertItem(item) })
}

func (s *MemoryStore) RemoveItem(_ context.Context, sessionID, productID string) ([]Item, error) {
	return s.mutate(sessionID, func(c *Cart) { c.removeItem(productID) })
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
	return nil
}

func (s *MemoryStore) mutate(sessionID string, fn func(*Cart)) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.carts[sessionID]
	c.SessionID = sessionID
	fn(&c)
	c.LastActive = s.now().UTC()
	s.carts[sessionID] = c
	return append([]Item(nil), c.Items...), nil
}
