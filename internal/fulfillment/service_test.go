package fulfillment

import (
	"context"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-core/internal/identity"
	kafkax "storefront-core/internal/kafka"
	"storefront-core/internal/orders"
)

func statusEvent(t *testing.T, o *orders.Order) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:       "ev-1",
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: o.ID,
	}
	env.Payload = kafkax.MustMarshal(orders.OrderStatusChangedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
	})
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func newService(store orders.Store) *Service {
	return &Service{Store: store, ServiceName: "test-fulfillment", Log: zap.NewNop()}
}

func TestPaidPendingOrderMovesToProcessing(t *testing.T) {
	store := orders.NewMemoryStore()
	ctx := context.Background()
	actor := identity.GuestActor("sess-1")

	o, err := store.Create(ctx, actor, orders.Input{
		Items:         []orders.Item{{ProductID: "p1", PriceCents: 100, Quantity: 1, StoreID: "s"}},
		SubtotalCents: 100,
	})
	require.NoError(t, err)

	paid := orders.PaymentPaid
	o, err = store.UpdateStatusByID(ctx, o.ID, orders.StatusChange{PaymentStatus: &paid})
	require.NoError(t, err)

	// Event as published by the payment-confirmation flow: still pending,
	// payment just turned paid.
	require.NoError(t, newService(store).HandleStatusChanged(ctx, statusEvent(t, o)))

	cur, err := store.GetByID(ctx, actor, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, cur.OrderStatus)
}

func TestUnpaidEventIsIgnored(t *testing.T) {
	store := orders.NewMemoryStore()
	ctx := context.Background()
	actor := identity.GuestActor("sess-1")

	o, err := store.Create(ctx, actor, orders.Input{
		Items:         []orders.Item{{ProductID: "p1", PriceCents: 100, Quantity: 1, StoreID: "s"}},
		SubtotalCents: 100,
	})
	require.NoError(t, err)

	require.NoError(t, newService(store).HandleStatusChanged(ctx, statusEvent(t, o)))

	cur, err := store.GetByID(ctx, actor, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, cur.OrderStatus, "payment still pending, no move")
}

func TestPoisonMessageIsCommitted(t *testing.T) {
	svc := newService(orders.NewMemoryStore())
	err := svc.HandleStatusChanged(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.NoError(t, err, "undecodable events are skipped, not retried")
}

func TestMissingOrderIsSkipped(t *testing.T) {
	store := orders.NewMemoryStore()
	o := &orders.Order{ID: "ghost", OrderStatus: orders.StatusPending, PaymentStatus: orders.PaymentPaid}
	err := newService(store).HandleStatusChanged(context.Background(), statusEvent(t, o))
	assert.NoError(t, err, "vanished order must not wedge the consumer")
}
