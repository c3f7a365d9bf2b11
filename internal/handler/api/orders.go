package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/service"
)

// OrderHandler serves checkout and the order ledger.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders}
}

type checkoutRequest struct {
	SourceToken string `json:"source_token" validate:"required"`
	Currency    string `json:"currency,omitempty"`
}

// Create converts the open cart into an order by charging its total.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.checkout", "Authentication required"))
		return
	}

	var req checkoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := h.checkout.Checkout(r.Context(), principal.ID, service.CheckoutParams{
		SourceToken: req.SourceToken,
		Currency:    req.Currency,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderJSON(order))
}

// List returns the principal's orders, or every order for admins.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())

	orders, err := h.orders.ListOrders(r.Context(), principal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderJSON, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderJSON(&orders[i]))
	}
	writeData(w, http.StatusOK, out)
}

// Get returns one order with its line items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())

	detail, err := h.orders.GetOrder(r.Context(), principal, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toOrderDetailJSON(detail))
}
