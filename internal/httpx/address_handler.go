package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-core/internal/address"
	"storefront-core/internal/identity"
)

type AddressHandler struct {
	Store    address.Store
	Resolver *identity.Resolver
}

func (h *AddressHandler) Register(r *chi.Mux) {
	r.Get("/address", h.getAddress)
	r.Post("/address", h.createAddress)
	r.Patch("/address", h.updateAddress)
}

func (h *AddressHandler) actor(w http.ResponseWriter, r *http.Request) (identity.ActorIdentity, error) {
	return h.Resolver.Resolve(identity.NewRequestContext(w, r), identity.ScopeAddress)
}

func (h *AddressHandler) getAddress(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	a, err := h.Store.Get(ctx, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AddressHandler) createAddress(w http.ResponseWriter, r *http.Request) {
	var f address.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.Store.Create(ctx, actor, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AddressHandler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var p address.PartialFields
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	actor, err := h.actor(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.Store.Update(ctx, actor, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
