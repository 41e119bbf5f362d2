package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minimarket-copilot/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductResolver maps a spoken or typed reference to one store product.
//
// Lookup order, first hit wins:
//  1. exact barcode (trimmed)
//  2. case-insensitive exact name
//  3. case-insensitive substring of the name, most recently updated first
//
// Archived products never match. A miss returns *ProductNotFoundError.
type ProductResolver interface {
	Resolve(ctx context.Context, q db.Querier, storeID uuid.UUID, query string) (*Product, error)
}

type productResolver struct{}

func NewProductResolver() ProductResolver {
	return &productResolver{}
}

const productColumns = `p.id, p.store_id, p.name, p.brand, p.category, p.unit, p.sale_price_gross,
	p.is_perishable, p.default_shelf_life_days, p.archived_at, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Brand, &p.Category, &p.Unit, &p.SalePriceGross,
		&p.IsPerishable, &p.DefaultShelfLifeDays, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productResolver) Resolve(ctx context.Context, q db.Querier, storeID uuid.UUID, query string) (*Product, error) {
	term := strings.TrimSpace(query)
	if term == "" {
		return nil, &ProductNotFoundError{Query: query}
	}

	lookups := []struct {
		name string
		sql  string
		arg  string
	}{
		{"barcode", `
			SELECT ` + productColumns + `
			FROM product_barcodes b
			JOIN products p ON p.id = b.product_id
			WHERE b.code = $2 AND p.store_id = $1 AND p.archived_at IS NULL`, term},
		{"name", `
			SELECT ` + productColumns + `
			FROM products p
			WHERE p.store_id = $1 AND p.archived_at IS NULL AND lower(p.name) = lower($2)
			ORDER BY p.updated_at DESC, p.id
			LIMIT 1`, term},
		{"name substring", `
			SELECT ` + productColumns + `
			FROM products p
			WHERE p.store_id = $1 AND p.archived_at IS NULL
			  AND lower(p.name) LIKE '%' || lower($2) || '%' ESCAPE '\'
			ORDER BY p.updated_at DESC, p.id
			LIMIT 1`, escapeLike(term)},
	}

	for _, l := range lookups {
		p, err := scanProduct(q.QueryRow(ctx, l.sql, storeID, l.arg))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve product by %s: %w", l.name, err)
		}
	}
	return nil, &ProductNotFoundError{Query: term}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
