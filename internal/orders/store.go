package orders

import (
	"context"

	"storefront-core/internal/identity"
)

// Store persists actor-partitioned order snapshots. Lookups scoped to an
// actor never cross the user/guest partition; a miss and a row owned by
// someone else both come back as ErrNotFound.
type Store interface {
	Create(ctx context.Context, actor identity.ActorIdentity, in Input) (*Order, error)
	GetByID(ctx context.Context, actor identity.ActorIdentity, orderID string) (*Order, error)
	ListByActor(ctx context.Context, actor identity.ActorIdentity) ([]Order, error)

	// UpdateStatus runs the requested change through Transition against the
	// scoped row and persists the result. ErrNotFound when the actor owns no
	// such order, ErrIllegalTransition when the step is not legal.
	UpdateStatus(ctx context.Context, actor identity.ActorIdentity, orderID string, ch StatusChange) (*Order, error)

	// UpdateStatusByID is the unscoped variant for system flows that carry
	// no cookie identity (payment confirmation, fulfillment worker).
	UpdateStatusByID(ctx context.Context, orderID string, ch StatusChange) (*Order, error)

	// ListByStore is the seller/admin view: every order containing at least
	// one line item snapshotted for the store. Intentionally unpartitioned.
	ListByStore(ctx context.Context, storeID string) ([]Order, error)
}
