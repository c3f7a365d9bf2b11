package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/service"
)

// AdminHandler serves operator-only reconciliation endpoints.
type AdminHandler struct {
	orders service.OrderService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(orders service.OrderService) *AdminHandler {
	return &AdminHandler{orders: orders}
}

// ReconcileCharge creates the missing order for a charge that committed at
// the gateway but failed to persist.
func (h *AdminHandler) ReconcileCharge(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())

	order, err := h.orders.ReconcileCharge(r.Context(), principal, chi.URLParam(r, "chargeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toOrderJSON(order))
}
