package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "storefront-core/internal/kafka"
	"storefront-core/internal/orders"
	"storefront-core/internal/redisx"
)

// Service moves paid orders into fulfillment. It consumes order status
// events and, whenever payment has just been confirmed on a pending order,
// advances it to processing through the legal transition path.
type Service struct {
	Store       orders.Store
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes follow-up status changes
	ServiceName string
	Log         *zap.Logger
}

func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		s.Log.Warn("skip undecodable event", zap.Error(err))
		return nil // poison message, commit and move on
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	// Dedup: consumer group redelivery must not double-process an event.
	dedupKey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if s.Redis != nil {
		if seen, err := redisx.Exists(ctx, s.Redis, dedupKey); err == nil && seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("skip undecodable payload", zap.Error(err))
		return nil
	}
	if p.PaymentStatus != orders.PaymentPaid || p.OrderStatus != orders.StatusPending {
		s.markSeen(ctx, dedupKey)
		return nil
	}

	processing := orders.StatusProcessing
	updated, err := s.Store.UpdateStatusByID(ctx, p.OrderID, orders.StatusChange{OrderStatus: &processing})
	switch {
	case errors.Is(err, orders.ErrIllegalTransition), errors.Is(err, orders.ErrNotFound):
		// Raced with another consumer or a seller-side update; done.
		s.markSeen(ctx, dedupKey)
		return nil
	case err != nil:
		return err // retry, offset not committed
	}

	s.refreshStatusCache(ctx, updated)
	s.markSeen(ctx, dedupKey)

	if s.Producer != nil {
		out := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderStatusChanged,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      s.ServiceName,
			CorrelationID: updated.ID,
		}
		out.Payload = kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID:       updated.ID,
			OrderNumber:   updated.OrderNumber,
			OrderStatus:   updated.OrderStatus,
			PaymentStatus: updated.PaymentStatus,
		})
		s.Producer.Publish(orders.PartitionKey(updated.ID), kafkax.MustMarshal(out),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	s.Log.Info("order moved to processing",
		zap.String("order_id", updated.ID),
		zap.String("order_number", updated.OrderNumber))
	return nil
}

func (s *Service) markSeen(ctx context.Context, key string) {
	if s.Redis == nil {
		return
	}
	_ = s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
}

func (s *Service) refreshStatusCache(ctx context.Context, o *orders.Order) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body := kafkax.MustMarshal(map[string]any{
		"order_status":   o.OrderStatus,
		"payment_status": o.PaymentStatus,
	})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
