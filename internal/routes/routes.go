// Package routes assembles the HTTP router and middleware chain.
package routes

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dukerupert/njord/internal/handler/api"
	"github.com/dukerupert/njord/internal/middleware"
	"github.com/dukerupert/njord/internal/service"
)

// Deps carries everything the router needs.
type Deps struct {
	Identity service.IdentityService
	Auth     *api.AuthHandler
	Cart     *api.CartHandler
	Catalog  *api.CatalogHandler
	Orders   *api.OrderHandler
	Admin    *api.AdminHandler
	Metrics  *middleware.Metrics
	Logger   *slog.Logger
}

// New builds the router. The middleware order matters: request id first,
// then principal resolution, then the request logger so it carries both.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(deps.Metrics.Middleware)
	r.Use(middleware.WithPrincipal(deps.Identity))
	r.Use(middleware.WithRequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", deps.Auth.Signup)
		r.Post("/login", deps.Auth.Login)
		r.Post("/logout", deps.Auth.Logout)

		r.Get("/catalog", deps.Catalog.List)
		r.Get("/catalog/{entryID}", deps.Catalog.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePrincipal)

			r.Get("/me", deps.Auth.Me)

			r.Get("/cart", deps.Cart.GetCart)
			r.Post("/cart", deps.Cart.UpdateCart)
			r.Post("/cart/items", deps.Cart.UpsertItem)

			r.Post("/catalog", deps.Catalog.Create)

			r.Post("/orders", deps.Orders.Create)
			r.Get("/orders", deps.Orders.List)
			r.Get("/orders/{orderID}", deps.Orders.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Post("/admin/reconcile/{chargeID}", deps.Admin.ReconcileCharge)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
