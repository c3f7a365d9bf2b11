package api

import (
	"net/http"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/service"
)

// CartHandler serves the authenticated principal's open cart.
type CartHandler struct {
	carts service.CartService
}

// NewCartHandler creates a cart handler.
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GetCart returns the open cart with items and the live-priced total,
// creating the cart if the principal has none.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.cart", "Authentication required"))
		return
	}

	summary, err := h.carts.GetCartSummary(r.Context(), principal.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCartSummaryJSON(summary))
}

type updateCartRequest struct {
	AddEntries    []string `json:"addEntries"`
	RemoveEntries []string `json:"removeEntries"`
}

// UpdateCart applies unit adjustments in bulk. Every id in addEntries adds
// one unit of that catalog entry, every id in removeEntries removes one,
// and the updated cart summary is returned.
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.cart", "Authentication required"))
		return
	}

	var req updateCartRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	for _, id := range req.AddEntries {
		if _, err := h.carts.UpsertLineItem(ctx, principal.ID, id, 1); err != nil {
			writeError(w, r, err)
			return
		}
	}
	for _, id := range req.RemoveEntries {
		if _, err := h.carts.UpsertLineItem(ctx, principal.ID, id, -1); err != nil {
			writeError(w, r, err)
			return
		}
	}

	summary, err := h.carts.GetCartSummary(ctx, principal.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCartSummaryJSON(summary))
}

type upsertItemRequest struct {
	EntryID  string `json:"entry_id" validate:"required"`
	Quantity int32  `json:"quantity" validate:"required"`
}

// UpsertItem applies a signed quantity adjustment to a line item. Positive
// quantities add or merge; negative quantities decrement, removing the
// item when it reaches zero.
func (h *CartHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.cart", "Authentication required"))
		return
	}

	var req upsertItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.carts.UpsertLineItem(r.Context(), principal.ID, req.EntryID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toLineItemResultJSON(result))
}
