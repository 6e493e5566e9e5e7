package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var ErrItemTypeNotSupported = errors.New("item type is not supported")

// catalogTables whitelists the content tables sellable items live in. The
// item type is interpolated into the query, so only values from this map may
// ever reach it.
var catalogTables = map[string]string{
	"course":   "courses",
	"workshop": "workshops",
	"test":     "tests",
}

// CatalogRepository reads authoritative prices from the content tables.
// Checkout amounts are always validated against these, never trusted from the
// client or echoed back by the payment provider.
type CatalogRepository struct {
	db DBTX
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// PriceCents returns the stored price for an item, with found=false when the
// item does not exist.
func (r *CatalogRepository) PriceCents(ctx context.Context, itemType, itemID string) (int64, bool, error) {
	table, ok := catalogTables[strings.ToLower(strings.TrimSpace(itemType))]
	if !ok {
		return 0, false, ErrItemTypeNotSupported
	}

	query := `SELECT price_cents FROM ` + table + ` WHERE id = ?`

	var priceCents int64
	err := r.db.QueryRowContext(ctx, query, itemID).Scan(&priceCents)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return priceCents, true, nil
}

func SupportedItemType(itemType string) bool {
	_, ok := catalogTables[strings.ToLower(strings.TrimSpace(itemType))]
	return ok
}
