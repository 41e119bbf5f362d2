package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minimarket-copilot/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBarcodeTaken = errors.New("barcode already registered")

// ProductInput carries the fields for a new product. Unit defaults to UNIT.
type ProductInput struct {
	Name                 string
	Brand                *string
	Category             *string
	Unit                 Unit
	SalePriceGross       int64
	IsPerishable         bool
	DefaultShelfLifeDays *int
	Barcodes             []string
}

// ProductPatch updates only the non-nil fields.
type ProductPatch struct {
	Name                 *string
	Brand                *string
	Category             *string
	Unit                 *Unit
	SalePriceGross       *int64
	IsPerishable         *bool
	DefaultShelfLifeDays *int
	AddBarcodes          []string
}

// ProductStock pairs a product with its current available quantity.
type ProductStock struct {
	Product
	Available int64 `json:"available"`
}

type ProductFilter struct {
	Search string
	Limit  int
}

// ProductService is the store-scoped product catalog.
type ProductService interface {
	Resolve(ctx context.Context, storeID uuid.UUID, query string) (*Product, error)
	GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*Product, error)
	// GetProductStock loads the product and its available units by id.
	GetProductStock(ctx context.Context, storeID, productID uuid.UUID) (*ProductStock, error)
	ListProducts(ctx context.Context, storeID uuid.UUID, filter ProductFilter) ([]ProductStock, error)
	CreateProduct(ctx context.Context, storeID uuid.UUID, in ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, storeID, productID uuid.UUID, patch ProductPatch) (*Product, error)
	// ArchiveProduct detaches the product from the store. Lots, sales and
	// barcodes stay in place for history.
	ArchiveProduct(ctx context.Context, storeID, productID uuid.UUID) error
}

type productService struct {
	pool     *pgxpool.Pool
	resolver ProductResolver
}

func NewProductService(pool *pgxpool.Pool, resolver ProductResolver) ProductService {
	return &productService{pool: pool, resolver: resolver}
}

func (s *productService) Resolve(ctx context.Context, storeID uuid.UUID, query string) (*Product, error) {
	return s.resolver.Resolve(ctx, s.pool, storeID, query)
}

func (s *productService) GetProduct(ctx context.Context, storeID, productID uuid.UUID) (*Product, error) {
	return getProduct(ctx, s.pool, storeID, productID)
}

func (s *productService) GetProductStock(ctx context.Context, storeID, productID uuid.UUID) (*ProductStock, error) {
	var ps ProductStock
	p := &ps.Product
	err := s.pool.QueryRow(ctx, `
		SELECT `+productColumns+`,
		       COALESCE((SELECT SUM(l.quantity_in - l.quantity_out)
		                 FROM stock_lots l
		                 WHERE l.product_id = p.id AND l.store_id = p.store_id), 0)::bigint
		FROM products p
		WHERE p.id = $1 AND p.store_id = $2 AND p.archived_at IS NULL
	`, productID, storeID).Scan(&p.ID, &p.StoreID, &p.Name, &p.Brand, &p.Category, &p.Unit, &p.SalePriceGross,
		&p.IsPerishable, &p.DefaultShelfLifeDays, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt,
		&ps.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product stock: %w", err)
	}
	if p.Barcodes, err = loadBarcodes(ctx, s.pool, p.ID); err != nil {
		return nil, err
	}
	return &ps, nil
}

func getProduct(ctx context.Context, q db.Querier, storeID, productID uuid.UUID) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.id = $1 AND p.store_id = $2 AND p.archived_at IS NULL
	`, productID, storeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	if p.Barcodes, err = loadBarcodes(ctx, q, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func loadBarcodes(ctx context.Context, q db.Querier, productID uuid.UUID) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT code FROM product_barcodes WHERE product_id = $1 ORDER BY created_at, code`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query barcodes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan barcodes: %w", err)
	}
	return codes, nil
}

func (s *productService) ListProducts(ctx context.Context, storeID uuid.UUID, filter ProductFilter) ([]ProductStock, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`,
		       COALESCE((SELECT SUM(l.quantity_in - l.quantity_out)
		                 FROM stock_lots l
		                 WHERE l.product_id = p.id AND l.store_id = p.store_id), 0)::bigint
		FROM products p
		WHERE p.store_id = $1 AND p.archived_at IS NULL
		  AND ($2 = '' OR lower(p.name) LIKE '%' || lower($2) || '%' ESCAPE '\')
		ORDER BY p.name, p.id
		LIMIT $3
	`, storeID, escapeLike(strings.TrimSpace(filter.Search)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []ProductStock
	for rows.Next() {
		var ps ProductStock
		p := &ps.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Brand, &p.Category, &p.Unit, &p.SalePriceGross,
			&p.IsPerishable, &p.DefaultShelfLifeDays, &p.ArchivedAt, &p.CreatedAt, &p.UpdatedAt,
			&ps.Available); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

func (s *productService) CreateProduct(ctx context.Context, storeID uuid.UUID, in ProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if in.SalePriceGross < 0 {
		return nil, fmt.Errorf("sale price cannot be negative")
	}
	if in.Unit == "" {
		in.Unit = UnitUnit
	}

	var created *Product
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx, `
			INSERT INTO products AS p (store_id, name, brand, category, unit, sale_price_gross,
			                           is_perishable, default_shelf_life_days)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+productColumns,
			storeID, name, in.Brand, in.Category, in.Unit, in.SalePriceGross,
			in.IsPerishable, in.DefaultShelfLifeDays))
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		if err := insertBarcodesTx(ctx, tx, p.ID, in.Barcodes); err != nil {
			return err
		}
		p.Barcodes, err = loadBarcodes(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertBarcodesTx(ctx context.Context, tx pgx.Tx, productID uuid.UUID, codes []string) error {
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		var owner uuid.UUID
		err := tx.QueryRow(ctx, `SELECT product_id FROM product_barcodes WHERE code = $1`, code).Scan(&owner)
		switch {
		case err == nil && owner == productID:
			continue
		case err == nil:
			return fmt.Errorf("%w: %s", ErrBarcodeTaken, code)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("failed to check barcode %s: %w", code, err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO product_barcodes (code, product_id) VALUES ($1, $2)`, code, productID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", ErrBarcodeTaken, code)
			}
			return fmt.Errorf("failed to insert barcode %s: %w", code, err)
		}
	}
	return nil
}

func (s *productService) UpdateProduct(ctx context.Context, storeID, productID uuid.UUID, patch ProductPatch) (*Product, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("product name cannot be empty")
	}
	if patch.SalePriceGross != nil && *patch.SalePriceGross < 0 {
		return nil, fmt.Errorf("sale price cannot be negative")
	}
	var name *string
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		name = &trimmed
	}

	var updated *Product
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE products SET
				name                    = COALESCE($3, name),
				brand                   = COALESCE($4, brand),
				category                = COALESCE($5, category),
				unit                    = COALESCE($6, unit),
				sale_price_gross        = COALESCE($7, sale_price_gross),
				is_perishable           = COALESCE($8, is_perishable),
				default_shelf_life_days = COALESCE($9, default_shelf_life_days),
				updated_at              = NOW()
			WHERE id = $1 AND store_id = $2 AND archived_at IS NULL
		`, productID, storeID, name, patch.Brand, patch.Category, patch.Unit,
			patch.SalePriceGross, patch.IsPerishable, patch.DefaultShelfLifeDays)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrProductNotFound
		}
		if err := insertBarcodesTx(ctx, tx, productID, patch.AddBarcodes); err != nil {
			return err
		}
		updated, err = getProduct(ctx, tx, storeID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *productService) ArchiveProduct(ctx context.Context, storeID, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND store_id = $2 AND archived_at IS NULL
	`, productID, storeID)
	if err != nil {
		return fmt.Errorf("failed to archive product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
