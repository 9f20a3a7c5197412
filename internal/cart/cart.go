package cart

import (
	"context"
	"errors"
	"time"
)

var ErrPersistence = errors.New("cart persistence failed")

// Item is a cart line. Price and name are snapshotted from the catalog at
// add time and never re-fetched.
type Item struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image,omitempty"`
	StoreID    string `json:"store_id"`
}

// Cart is one guest session's cart. Carts always ride on the session
// cookie, logged-in or not; there is no separate user-keyed cart.
type Cart struct {
	SessionID  string    `json:"session_id"`
	Items      []Item    `json:"items"`
	LastActive time.Time `json:"last_active"`
}

func (c *Cart) SubtotalCents() int {
	total := 0
	for _, it := range c.Items {
		total += it.PriceCents * it.Quantity
	}
	return total
}

// upsertItem enforces the quantity floor: qty <= 0 removes, qty > 0
// inserts or replaces in place.
func (c *Cart) upsertItem(item Item) {
	if item.Quantity <= 0 {
		c.removeItem(item.ProductID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

func (c *Cart) removeItem(productID string) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// Store holds one mutable cart per guest session, created lazily on first
// mutation. Every read or write bumps LastActive.
type Store interface {
	// Get returns the session's cart, an empty cart when none is persisted.
	Get(ctx context.Context, sessionID string) (*Cart, error)

	// SetItemQuantity upserts the item; quantity <= 0 removes it instead.
	// Returns the full updated item list.
	SetItemQuantity(ctx context.Context, sessionID string, item Item) ([]Item, error)

	RemoveItem(ctx context.Context, sessionID, productID string) ([]Item, error)
	Clear(ctx context.Context, sessionID string) error
}
