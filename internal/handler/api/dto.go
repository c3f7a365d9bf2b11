package api

import (
	"time"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
)

type principalJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toPrincipalJSON(p *domain.Principal) principalJSON {
	return principalJSON{
		ID:        postgres.UUIDString(p.ID),
		Email:     p.Email,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt.Time,
	}
}

type catalogEntryJSON struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int32     `json:"price_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

func toCatalogEntryJSON(e *domain.CatalogEntry) catalogEntryJSON {
	return catalogEntryJSON{
		ID:          postgres.UUIDString(e.ID),
		Kind:        string(e.Kind),
		Name:        e.Name,
		Description: e.Description,
		PriceCents:  e.PriceCents,
		CreatedAt:   e.CreatedAt.Time,
	}
}

type cartItemJSON struct {
	ID             string `json:"id"`
	EntryID        string `json:"entry_id"`
	EntryKind      string `json:"entry_kind"`
	EntryName      string `json:"entry_name"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int32  `json:"unit_price_cents"`
	LineSubtotal   int32  `json:"line_subtotal_cents"`
}

func toCartItemJSON(it domain.CartItem) cartItemJSON {
	return cartItemJSON{
		ID:             postgres.UUIDString(it.ID),
		EntryID:        postgres.UUIDString(it.EntryID),
		EntryKind:      string(it.EntryKind),
		EntryName:      it.EntryName,
		Quantity:       it.Quantity,
		UnitPriceCents: it.UnitPriceCents,
		LineSubtotal:   it.LineSubtotal,
	}
}

type cartSummaryJSON struct {
	ID         string         `json:"id"`
	Processed  bool           `json:"processed"`
	Items      []cartItemJSON `json:"items"`
	TotalCents int32          `json:"total_cents"`
	ItemCount  int            `json:"item_count"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toCartSummaryJSON(s *domain.CartSummary) cartSummaryJSON {
	items := make([]cartItemJSON, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, toCartItemJSON(it))
	}
	return cartSummaryJSON{
		ID:         postgres.UUIDString(s.Cart.ID),
		Processed:  s.Cart.Processed,
		Items:      items,
		TotalCents: s.TotalCents,
		ItemCount:  s.ItemCount,
		CreatedAt:  s.Cart.CreatedAt.Time,
	}
}

type lineItemResultJSON struct {
	Item    *cartItemJSON `json:"item,omitempty"`
	Removed bool          `json:"removed"`
}

func toLineItemResultJSON(res *domain.LineItemResult) lineItemResultJSON {
	out := lineItemResultJSON{Removed: res.Removed}
	if res.Item != nil {
		item := toCartItemJSON(*res.Item)
		out.Item = &item
	}
	return out
}

type orderJSON struct {
	ID         string    `json:"id"`
	CartID     string    `json:"cart_id"`
	TotalCents int32     `json:"total_cents"`
	Currency   string    `json:"currency"`
	ChargeID   string    `json:"charge_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func toOrderJSON(o *domain.Order) orderJSON {
	return orderJSON{
		ID:         postgres.UUIDString(o.ID),
		CartID:     postgres.UUIDString(o.CartID),
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
		ChargeID:   o.ChargeID,
		CreatedAt:  o.CreatedAt.Time,
	}
}

type orderDetailJSON struct {
	orderJSON
	Items []cartItemJSON `json:"items"`
}

func toOrderDetailJSON(d *domain.OrderDetail) orderDetailJSON {
	items := make([]cartItemJSON, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, toCartItemJSON(it))
	}
	return orderDetailJSON{
		orderJSON: toOrderJSON(&d.Order),
		Items:     items,
	}
}
