package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/service"
)

// CatalogHandler serves the purchasable catalog.
type CatalogHandler struct {
	catalog service.CatalogService
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(catalog service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List returns a page of catalog entries.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := h.catalog.ListEntries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]catalogEntryJSON, 0, len(entries))
	for i := range entries {
		out = append(out, toCatalogEntryJSON(&entries[i]))
	}
	writeData(w, http.StatusOK, out)
}

// Get returns one catalog entry.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.catalog.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCatalogEntryJSON(entry))
}

type createEntryRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=product service"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	PriceCents  int32  `json:"price_cents" validate:"required,gt=0"`
}

// Create adds a catalog entry. The seller is the caller.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := domain.PrincipalFromContext(r.Context())
	if principal == nil {
		writeError(w, r, domain.Unauthorized("api.catalog", "Authentication required"))
		return
	}

	var req createEntryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.catalog.CreateEntry(r.Context(), service.CreateEntryParams{
		Kind:        domain.CatalogKind(req.Kind),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		SellerID:    principal.ID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toCatalogEntryJSON(entry))
}

func queryInt(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}
