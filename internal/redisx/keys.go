package redisx

import "time"

const (
	// Cart per guest session: cart:{session_id} -> JSON cart document.
	// No TTL: carts only disappear through operational cleanup.
	KeyCart = "cart:%s"

	// Order status read cache: order_status:{order_id} -> {"order_status":...,"payment_status":...}
	KeyOrderStatus = "order_status:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
