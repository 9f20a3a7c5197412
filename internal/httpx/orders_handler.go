package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"storefront-core/internal/cart"
	"storefront-core/internal/identity"
	kafkax "storefront-core/internal/kafka"
	"storefront-core/internal/orders"
	"storefront-core/internal/payment"
	"storefront-core/internal/redisx"
)

type OrdersHandler struct {
	Store    orders.Store
	Cart     cart.Store
	Resolver *identity.Resolver
	Builder  *payment.Builder

	// One producer per topic, same wiring as the event publishers in main.
	ProducerCreated *kafkax.Producer
	ProducerStatus  *kafkax.Producer

	Redis   *redis.Client
	Service string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/status", h.updateOrderStatus)
	r.Post("/orders/{id}/charge-request", h.buildChargeRequest)
	r.Post("/payments/confirm", h.confirmPayment)
	r.Get("/stores/{storeID}/orders", h.listStoreOrders)
}

type CreateOrderReq struct {
	Items           []orders.Item          `json:"items"`
	SubtotalCents   int                    `json:"subtotal_cents"`
	ShippingCents   int                    `json:"shipping_cents"`
	ShippingAddress orders.ShippingAddress `json:"shipping_address"`
}

type UpdateStatusReq struct {
	OrderStatus   *orders.Status        `json:"order_status,omitempty"`
	PaymentStatus *orders.PaymentStatus `json:"payment_status,omitempty"`
}

type ConfirmPaymentReq struct {
	OrderID       string               `json:"order_id"`
	PaymentStatus orders.PaymentStatus `json:"payment_status"`
}

func (h *OrdersHandler) actor(w http.ResponseWriter, r *http.Request) (identity.ActorIdentity, error) {
	return h.Resolver.Resolve(identity.NewRequestContext(w, r), identity.ScopeOrder)
}

// createOrder is the checkout submission: the cart snapshot and totals are
// persisted as given, and the session's cart is cleared on success.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing items"})
		return
	}

	rc := identity.NewRequestContext(w, r)
	actor, err := h.Resolver.Resolve(rc, identity.ScopeOrder)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.Create(ctx, actor, orders.Input{
		Items:           req.Items,
		SubtotalCents:   req.SubtotalCents,
		ShippingCents:   req.ShippingCents,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Checkout consumed the cart; clear it under its own cookie namespace.
	if h.Cart != nil {
		if cartActor, err := h.Resolver.ResolveGuest(rc, identity.ScopeCart); err == nil {
			_ = h.Cart.Clear(ctx, cartActor.SessionID)
		}
	}

	h.cacheStatus(ctx, o)
	h.publish(h.ProducerCreated, orders.EventOrderCreated, o, kafkax.MustMarshal(orders.OrderCreatedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Items:         o.Items,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
	}), r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.ListByActor(ctx, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetByID(ctx, actor, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves from the Redis status cache first and falls back to
// the store, refreshing the cache.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			// Ownership still has to hold before serving cached status.
			if o, err := h.Store.GetByID(ctx, actor, orderID); err == nil && o != nil {
				writeJSON(w, http.StatusOK, json.RawMessage(s))
				return
			}
		}
	}

	o, err := h.Store.GetByID(ctx, actor, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{
		"order_status":   o.OrderStatus,
		"payment_status": o.PaymentStatus,
	})
}

func (h *OrdersHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.OrderStatus == nil && req.PaymentStatus == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status fields"})
		return
	}

	orderID := chi.URLParam(r, "id")
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.UpdateStatus(ctx, actor, orderID, orders.StatusChange{
		OrderStatus:   req.OrderStatus,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishStatusChanged(o, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, o)
}

// confirmPayment records the payment status the gateway reported. The
// gateway callback carries no shopper cookies, so this path is unscoped.
func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.OrderID == "" || req.PaymentStatus == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.UpdateStatusByID(ctx, req.OrderID, orders.StatusChange{
		PaymentStatus: &req.PaymentStatus,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	h.publishStatusChanged(o, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) buildChargeRequest(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetByID(ctx, actor, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	profileID := ""
	if actor.IsUser() {
		profileID = actor.UserID
	}
	writeJSON(w, http.StatusOK, h.Builder.Build(o, profileID))
}

func (h *OrdersHandler) listStoreOrders(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	if storeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing store id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Store.ListByStore(ctx, storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body := kafkax.MustMarshal(map[string]any{
		"order_status":   o.OrderStatus,
		"payment_status": o.PaymentStatus,
	})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishStatusChanged(o *orders.Order, traceID string) {
	h.publish(h.ProducerStatus, orders.EventOrderStatusChanged, o, kafkax.MustMarshal(orders.OrderStatusChangedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		OrderStatus:   o.OrderStatus,
		PaymentStatus: o.PaymentStatus,
	}), traceID)
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType string, o *orders.Order, payload []byte, traceID string) {
	if p == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: o.ID,
		Payload:       payload,
	}
	p.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
