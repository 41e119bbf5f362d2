package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"minimarket-copilot/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SupplierInput struct {
	Name  string
	TaxID *string
	Phone *string
	Email *string
}

type CustomerInput struct {
	Name  string
	Phone *string
	Email *string
}

// PartyService manages the store's suppliers and customers.
type PartyService interface {
	CreateSupplier(ctx context.Context, storeID uuid.UUID, in SupplierInput) (*Supplier, error)
	ListSuppliers(ctx context.Context, storeID uuid.UUID, search string) ([]Supplier, error)
	GetSupplier(ctx context.Context, storeID, supplierID uuid.UUID) (*Supplier, error)

	CreateCustomer(ctx context.Context, storeID uuid.UUID, in CustomerInput) (*Customer, error)
	ListCustomers(ctx context.Context, storeID uuid.UUID, search string) ([]Customer, error)
	GetCustomer(ctx context.Context, storeID, customerID uuid.UUID) (*Customer, error)
}

type partyService struct {
	pool *pgxpool.Pool
}

func NewPartyService(pool *pgxpool.Pool) PartyService {
	return &partyService{pool: pool}
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *partyService) CreateSupplier(ctx context.Context, storeID uuid.UUID, in SupplierInput) (*Supplier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("supplier name is required")
	}
	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (store_id, name, tax_id, phone, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, store_id, name, tax_id, phone, email, created_at
	`, storeID, name, in.TaxID, in.Phone, in.Email).Scan(
		&sup.ID, &sup.StoreID, &sup.Name, &sup.TaxID, &sup.Phone, &sup.Email, &sup.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return &sup, nil
}

func (s *partyService) ListSuppliers(ctx context.Context, storeID uuid.UUID, search string) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, store_id, name, tax_id, phone, email, created_at
		FROM suppliers
		WHERE store_id = $1
		  AND ($2 = '' OR lower(name) LIKE '%' || lower($2) || '%' ESCAPE '\')
		ORDER BY name, id
		LIMIT 50
	`, storeID, escapeLike(strings.TrimSpace(search)))
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.StoreID, &sup.Name, &sup.TaxID, &sup.Phone, &sup.Email, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *partyService) GetSupplier(ctx context.Context, storeID, supplierID uuid.UUID) (*Supplier, error) {
	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		SELECT id, store_id, name, tax_id, phone, email, created_at
		FROM suppliers WHERE id = $1 AND store_id = $2
	`, supplierID, storeID).Scan(&sup.ID, &sup.StoreID, &sup.Name, &sup.TaxID, &sup.Phone, &sup.Email, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("failed to fetch supplier: %w", err)
	}
	return &sup, nil
}

// ── Customers ─────────────────────────────────────────────────────────────────

func (s *partyService) CreateCustomer(ctx context.Context, storeID uuid.UUID, in CustomerInput) (*Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("customer name is required")
	}
	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (store_id, name, phone, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, store_id, name, phone, email, created_at
	`, storeID, name, in.Phone, in.Email).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return &c, nil
}

func (s *partyService) ListCustomers(ctx context.Context, storeID uuid.UUID, search string) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, store_id, name, phone, email, created_at
		FROM customers
		WHERE store_id = $1
		  AND ($2 = '' OR lower(name) LIKE '%' || lower($2) || '%' ESCAPE '\')
		ORDER BY name, id
		LIMIT 50
	`, storeID, escapeLike(strings.TrimSpace(search)))
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *partyService) GetCustomer(ctx context.Context, storeID, customerID uuid.UUID) (*Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, store_id, name, phone, email, created_at
		FROM customers WHERE id = $1 AND store_id = $2
	`, customerID, storeID).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to fetch customer: %w", err)
	}
	return &c, nil
}

// belongsToStore reports whether id exists in table for the store. table is
// always a package constant, never caller input.
func belongsToStore(ctx context.Context, q db.Querier, table string, storeID, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1 AND store_id = $2)`,
		id, storeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s ownership: %w", table, err)
	}
	return exists, nil
}
