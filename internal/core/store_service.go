package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AlertInput struct {
	ProductID uuid.UUID
	Kind      AlertKind
	Threshold int
}

// StoreService reads tenant data: store profile, membership and product alerts.
type StoreService interface {
	GetStore(ctx context.Context, storeID uuid.UUID) (*Store, error)
	// IsMember reports whether the user still belongs to the store.
	IsMember(ctx context.Context, storeID, userID uuid.UUID) (bool, error)

	CreateAlert(ctx context.Context, storeID uuid.UUID, in AlertInput) (*ProductAlert, error)
	ListAlerts(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]ProductAlert, error)
}

type storeService struct {
	pool *pgxpool.Pool
}

func NewStoreService(pool *pgxpool.Pool) StoreService {
	return &storeService{pool: pool}
}

func (s *storeService) GetStore(ctx context.Context, storeID uuid.UUID) (*Store, error) {
	var st Store
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, tax_id, timezone, currency, created_at
		FROM stores WHERE id = $1
	`, storeID).Scan(&st.ID, &st.Name, &st.TaxID, &st.Timezone, &st.Currency, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to fetch store: %w", err)
	}
	return &st, nil
}

func (s *storeService) IsMember(ctx context.Context, storeID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM store_members WHERE store_id = $1 AND user_id = $2)
	`, storeID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check store membership: %w", err)
	}
	return ok, nil
}

func (s *storeService) CreateAlert(ctx context.Context, storeID uuid.UUID, in AlertInput) (*ProductAlert, error) {
	if in.Kind != AlertLowStock && in.Kind != AlertExpiry {
		return nil, fmt.Errorf("unknown alert kind %q", in.Kind)
	}
	if in.Threshold < 0 {
		return nil, fmt.Errorf("alert threshold cannot be negative")
	}

	var a ProductAlert
	err := s.pool.QueryRow(ctx, `
		INSERT INTO product_alerts (store_id, product_id, kind, threshold)
		SELECT $1, p.id, $3, $4
		FROM products p
		WHERE p.id = $2 AND p.store_id = $1 AND p.archived_at IS NULL
		RETURNING id, store_id, product_id, (SELECT name FROM products WHERE id = $2), kind, threshold, is_active, created_at
	`, storeID, in.ProductID, in.Kind, in.Threshold).Scan(
		&a.ID, &a.StoreID, &a.ProductID, &a.ProductName, &a.Kind, &a.Threshold, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to insert product alert: %w", err)
	}
	return &a, nil
}

func (s *storeService) ListAlerts(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]ProductAlert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.store_id, a.product_id, p.name, a.kind, a.threshold, a.is_active, a.created_at
		FROM product_alerts a
		JOIN products p ON p.id = a.product_id
		WHERE a.store_id = $1 AND (NOT $2 OR a.is_active)
		ORDER BY p.name, a.kind
	`, storeID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query product alerts: %w", err)
	}
	defer rows.Close()

	var out []ProductAlert
	for rows.Next() {
		var a ProductAlert
		if err := rows.Scan(&a.ID, &a.StoreID, &a.ProductID, &a.ProductName, &a.Kind, &a.Threshold, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
