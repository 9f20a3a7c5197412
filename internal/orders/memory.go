package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-core/internal/identity"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Order
	now  func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Order{}, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, actor identity.ActorIdentity, in Input) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyItems
	}
	number, err := orderNumber()
	if err != nil {
		number = uuid.NewString()[:8]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, sessionID := actor.PartitionKeys()
	now := s.now().UTC()
	o := Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          copyKey(userID),
		SessionID:       copyKey(sessionID),
		Items:           append([]Item(nil), in.Items...),
		SubtotalCents:   in.SubtotalCents,
		ShippingCents:   in.ShippingCents,
		TotalCents:      in.SubtotalCents + in.ShippingCents,
		ShippingAddress: in.ShippingAddress,
		StoreSummaries:  SummarizeStores(in.Items),
		OrderStatus:     StatusPending,
		PaymentStatus:   PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.byID[o.ID] = o
	return &o, nil
}

func (s *MemoryStore) GetByID(_ context.Context, actor identity.ActorIdentity, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byID[orderID]
	if !ok || !ownedBy(o, actor) {
		return nil, nil
	}
	return &o, nil
}

func (s *MemoryStore) ListByActor(_ context.Context, actor identity.ActorIdentity) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Order
	for _, o := range s.byID {
		if ownedBy(o, actor) {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, actor identity.ActorIdentity, orderID string, ch StatusChange) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[orderID]
	if !ok || !ownedBy(cur, actor) {
		return nil, ErrNotFound
	}
	return s.applyLocked(cur, ch)
}

func (s *MemoryStore) UpdateStatusByID(_ context.Context, orderID string, ch StatusChange) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.applyLocked(cur, ch)
}

func (s *MemoryStore) applyLocked(cur Order, ch StatusChange) (*Order, error) {
	next, err := Transition(cur, ch)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	s.byID[next.ID] = next
	return &next, nil
}

func (s *MemoryStore) ListByStore(_ context.Context, storeID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Order
	for _, o := range s.byID {
		if orderHasStore(o, storeID) {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func ownedBy(o Order, a identity.ActorIdentity) bool {
	if a.IsUser() {
		return o.UserID != nil && *o.UserID == a.UserID && o.SessionID == nil
	}
	return o.SessionID != nil && *o.SessionID == a.SessionID && o.UserID == nil
}

func copyKey(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sortNewestFirst(out []Order) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}
