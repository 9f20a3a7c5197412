package orders

import "time"

// Item is an immutable snapshot of a catalog product taken at order time.
// Later catalog changes never touch these rows.
type Item struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image,omitempty"`
	StoreID    string `json:"store_id"`
}

// ShippingAddress is the address snapshot frozen into the order.
type ShippingAddress struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Building int    `json:"building"`
	Floor    int    `json:"floor"`
	Flat     int    `json:"flat"`
	District string `json:"district"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// StoreSummary is the per-seller slice of an order, snapshotted at create
// time so the seller view never has to re-derive it.
type StoreSummary struct {
	StoreID       string `json:"store_id"`
	ItemCount     int    `json:"item_count"`
	SubtotalCents int    `json:"subtotal_cents"`
}

type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`

	// Owning actor partition: exactly one of the two is non-nil.
	UserID    *string `json:"user_id,omitempty"`
	SessionID *string `json:"session_id,omitempty"`

	Items           []Item          `json:"items"`
	SubtotalCents   int             `json:"subtotal_cents"`
	ShippingCents   int             `json:"shipping_cents"`
	TotalCents      int             `json:"total_cents"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	StoreSummaries  []StoreSummary  `json:"store_summaries"`

	OrderStatus   Status        `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is everything checkout supplies at create time. Totals are stored
// as given and never recomputed afterwards.
type Input struct {
	Items           []Item
	SubtotalCents   int
	ShippingCents   int
	ShippingAddress ShippingAddress
}

// SummarizeStores folds items into per-store summaries, preserving first
// appearance order of each store.
func SummarizeStores(items []Item) []StoreSummary {
	idx := map[string]int{}
	var out []StoreSummary
	for _, it := range items {
		i, ok := idx[it.StoreID]
		if !ok {
			i = len(out)
			idx[it.StoreID] = i
			out = append(out, StoreSummary{StoreID: it.StoreID})
		}
		out[i].ItemCount += it.Quantity
		out[i].SubtotalCents += it.PriceCents * it.Quantity
	}
	return out
}
