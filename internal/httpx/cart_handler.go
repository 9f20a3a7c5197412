package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-core/internal/cart"
	"storefront-core/internal/identity"
)

type CartHandler struct {
	Store    cart.Store
	Resolver *identity.Resolver
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.getCart)
	r.Put("/cart/items", h.setItemQuantity)
	r.Delete("/cart/items/{productID}", h.removeItem)
	r.Delete("/cart", h.clearCart)
}

type SetItemReq struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image"`
	StoreID    string `json:"store_id"`
}

type CartItemsResp struct {
	Items         []cart.Item `json:"items"`
	SubtotalCents int         `json:"subtotal_cents"`
}

// Cart identity always rides on the cart session cookie, logged-in or not,
// so this resolves the guest token directly and never consults the auth
// session.
func (h *CartHandler) session(w http.ResponseWriter, r *http.Request) (string, error) {
	actor, err := h.Resolver.ResolveGuest(identity.NewRequestContext(w, r), identity.ScopeCart)
	if err != nil {
		return "", err
	}
	return actor.SessionID, nil
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	sid, err := h.session(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Store.Get(ctx, sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) setItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id"})
		return
	}

	sid, err := h.session(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.SetItemQuantity(ctx, sid, cart.Item{
		ProductID:  req.ProductID,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Quantity:   req.Quantity,
		Image:      req.Image,
		StoreID:    req.StoreID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CartItemsResp{Items: items, SubtotalCents: subtotal(items)})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product id"})
		return
	}

	sid, err := h.session(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Store.RemoveItem(ctx, sid, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CartItemsResp{Items: items, SubtotalCents: subtotal(items)})
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	sid, err := h.session(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Clear(ctx, sid); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func subtotal(items []cart.Item) int {
	total := 0
	for _, it := range items {
		total += it.PriceCents * it.Quantity
	}
	return total
}
