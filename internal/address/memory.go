package address

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-core/internal/identity"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[partition]Address
	now  func() time.Time
}

type partition struct {
	kind identity.Kind
	id   string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[partition]Address{}, now: time.Now}
}

func actorPartition(a identity.ActorIdentity) partition {
	if a.IsUser() {
		return partition{kind: identity.KindUser, id: a.UserID}
	}
	return partition{kind: identity.KindGuest, id: a.SessionID}
}

func (s *MemoryStore) Create(_ context.Context, actor identity.ActorIdentity, f Fields) (*Address, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, sessionID := actor.PartitionKeys()
	now := s.now().UTC()
	a := Address{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Address:   f.Address,
		Building:  f.Building,
		Floor:     f.Floor,
		Flat:      f.Flat,
		District:  f.District,
		City:      FixedCity,
		Country:   FixedCountry,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// Keyed replace: at most one row per partition ever exists.
	s.rows[actorPartition(actor)] = a
	return &a, nil
}

func (s *MemoryStore) Update(_ context.Context, actor identity.ActorIdentity, p PartialFields) (*Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := actorPartition(actor)
	cur, ok := s.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	p.apply(&cur)
	cur.UpdatedAt = s.now().UTC()
	s.rows[key] = cur
	return &cur, nil
}

func (s *MemoryStore) Get(_ context.Context, actor identity.ActorIdentity) (*Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.rows[actorPartition(actor)]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

// Len reports the stored row count, test helper for the single-address
// invariant.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
