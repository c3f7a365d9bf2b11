package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/postgres"
)

// CatalogService manages purchasable entries.
type CatalogService interface {
	CreateEntry(ctx context.Context, params CreateEntryParams) (*domain.CatalogEntry, error)
	GetEntry(ctx context.Context, id string) (*domain.CatalogEntry, error)
	ListEntries(ctx context.Context, limit, offset int32) ([]domain.CatalogEntry, error)
}

// CreateEntryParams contains parameters for CreateEntry.
type CreateEntryParams struct {
	Kind        domain.CatalogKind
	Name        string
	Description string
	PriceCents  int32
	SellerID    pgtype.UUID
}

type catalogService struct {
	store  postgres.Querier
	logger *slog.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store postgres.Querier, logger *slog.Logger) CatalogService {
	return &catalogService{
		store:  store,
		logger: logger.With("service", "catalog"),
	}
}

func (s *catalogService) CreateEntry(ctx context.Context, params CreateEntryParams) (*domain.CatalogEntry, error) {
	const op = "catalog.create"

	if params.Kind != domain.KindProduct && params.Kind != domain.KindService {
		return nil, domain.Invalid(op, "kind must be product or service")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "name is required")
	}
	if params.PriceCents <= 0 {
		return nil, domain.ErrInvalidPrice
	}

	row, err := s.store.CreateCatalogEntry(ctx, postgres.CreateCatalogEntryParams{
		Kind:        string(params.Kind),
		Name:        params.Name,
		Description: params.Description,
		PriceCents:  params.PriceCents,
		SellerID:    params.SellerID,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create catalog entry")
	}

	s.logger.Info("catalog entry created",
		"entry_id", postgres.UUIDString(row.ID),
		"kind", row.Kind,
		"price_cents", row.PriceCents)
	return toDomainCatalogEntry(row), nil
}

func (s *catalogService) GetEntry(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	const op = "catalog.get"

	entryID, err := postgres.UUIDFromString(id)
	if err != nil {
		return nil, domain.Invalid(op, "invalid catalog entry id")
	}

	row, err := s.store.GetCatalogEntryByID(ctx, entryID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCatalogEntryNotFound
		}
		return nil, domain.Internal(err, op, "failed to look up catalog entry")
	}

	return toDomainCatalogEntry(row), nil
}

func (s *catalogService) ListEntries(ctx context.Context, limit, offset int32) ([]domain.CatalogEntry, error) {
	const op = "catalog.list"

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.store.ListCatalogEntries(ctx, postgres.ListCatalogEntriesParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list catalog entries")
	}

	entries := make([]domain.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *toDomainCatalogEntry(row))
	}
	return entries, nil
}

func toDomainCatalogEntry(row postgres.CatalogEntry) *domain.CatalogEntry {
	return &domain.CatalogEntry{
		ID:          row.ID,
		Kind:        domain.CatalogKind(row.Kind),
		Name:        row.Name,
		Description: row.Description,
		PriceCents:  row.PriceCents,
		SellerID:    row.SellerID,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
