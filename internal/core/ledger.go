package core

import (
	"context"
	"fmt"
	"slices"
	"time"

	"minimarket-copilot/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Reference identifies the event that consumed stock. It is written to every
// stock_allocations row produced by the consumption.
type Reference struct {
	Type string
	ID   uuid.UUID
}

// LotInput describes a new lot. Quantity must be positive.
type LotInput struct {
	StoreID       uuid.UUID
	ProductID     uuid.UUID
	Quantity      int64
	Source        LotSource
	UnitCostGross *int64
	ExpiresAt     *time.Time
	PurchaseID    *uuid.UUID
}

// ConsumeResult reports what a FIFO consumption actually took.
// Shortfall is the part of the requested quantity no lot could cover.
type ConsumeResult struct {
	Allocations []Allocation
	Consumed    int64
	Shortfall   int64
}

// StockLedger owns every read and write of stock_lots and stock_allocations.
// Mutating methods take the caller's transaction so lot updates commit together
// with the sale item, adjustment or purchase row that caused them.
type StockLedger interface {
	// AvailableStock sums quantity_in - quantity_out over every lot of the product.
	AvailableStock(ctx context.Context, q db.Querier, storeID, productID uuid.UUID) (int64, error)
	// ListLots returns the product's lots in FIFO order. Exhausted lots are
	// included only when includeEmpty is set.
	ListLots(ctx context.Context, q db.Querier, storeID, productID uuid.UUID, includeEmpty bool) ([]StockLot, error)

	// LockLotsTx row-locks the product's lots that still have stock, in FIFO order.
	LockLotsTx(ctx context.Context, tx pgx.Tx, storeID, productID uuid.UUID) ([]StockLot, error)
	// ConsumeFIFOTx drains up to quantity units from the product's lots in FIFO
	// order and writes one allocation row per touched lot. A shortfall is not an
	// error; the caller decides what it means.
	ConsumeFIFOTx(ctx context.Context, tx pgx.Tx, storeID, productID uuid.UUID, quantity int64, ref Reference) (*ConsumeResult, error)
	// AddLotTx appends a new lot with quantity_out = 0.
	AddLotTx(ctx context.Context, tx pgx.Tx, in LotInput) (*StockLot, error)
}

type stockLedger struct{}

func NewStockLedger() StockLedger {
	return &stockLedger{}
}

const lotColumns = `id, store_id, product_id, source, quantity_in, quantity_out,
	unit_cost_gross, expires_at, purchase_id, created_at`

// fifoOrder must stay in sync with SortLotsFIFO.
const fifoOrder = `expires_at ASC NULLS LAST, created_at ASC, id ASC`

func scanLot(row pgx.Row) (StockLot, error) {
	var l StockLot
	err := row.Scan(&l.ID, &l.StoreID, &l.ProductID, &l.Source, &l.QuantityIn, &l.QuantityOut,
		&l.UnitCostGross, &l.ExpiresAt, &l.PurchaseID, &l.CreatedAt)
	return l, err
}

func collectLots(rows pgx.Rows) ([]StockLot, error) {
	defer rows.Close()
	var lots []StockLot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock lot: %w", err)
		}
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock lots: %w", err)
	}
	return lots, nil
}

func (l *stockLedger) AvailableStock(ctx context.Context, q db.Querier, storeID, productID uuid.UUID) (int64, error) {
	var available int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_in - quantity_out), 0)::bigint
		FROM stock_lots
		WHERE store_id = $1 AND product_id = $2
	`, storeID, productID).Scan(&available)
	if err != nil {
		return 0, fmt.Errorf("failed to compute available stock: %w", err)
	}
	return available, nil
}

func (l *stockLedger) ListLots(ctx context.Context, q db.Querier, storeID, productID uuid.UUID, includeEmpty bool) ([]StockLot, error) {
	rows, err := q.Query(ctx, `
		SELECT `+lotColumns+`
		FROM stock_lots
		WHERE store_id = $1 AND product_id = $2
		  AND ($3 OR quantity_out < quantity_in)
		ORDER BY `+fifoOrder,
		storeID, productID, includeEmpty)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock lots: %w", err)
	}
	return collectLots(rows)
}

func (l *stockLedger) LockLotsTx(ctx context.Context, tx pgx.Tx, storeID, productID uuid.UUID) ([]StockLot, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+lotColumns+`
		FROM stock_lots
		WHERE store_id = $1 AND product_id = $2 AND quantity_out < quantity_in
		ORDER BY `+fifoOrder+`
		FOR UPDATE`,
		storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock lots: %w", err)
	}
	return collectLots(rows)
}

func (l *stockLedger) ConsumeFIFOTx(ctx context.Context, tx pgx.Tx, storeID, productID uuid.UUID, quantity int64, ref Reference) (*ConsumeResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("consume quantity must be positive, got %d", quantity)
	}

	lots, err := l.LockLotsTx(ctx, tx, storeID, productID)
	if err != nil {
		return nil, err
	}

	allocations, shortfall := PlanFIFO(lots, quantity)
	result := &ConsumeResult{Allocations: allocations, Shortfall: shortfall}

	for _, a := range allocations {
		tag, err := tx.Exec(ctx, `
			UPDATE stock_lots
			SET quantity_out = quantity_out + $1
			WHERE id = $2 AND store_id = $3 AND quantity_out + $1 <= quantity_in
		`, a.Quantity, a.LotID, storeID)
		if err != nil {
			return nil, fmt.Errorf("failed to consume lot %s: %w", a.LotID, err)
		}
		if tag.RowsAffected() != 1 {
			return nil, fmt.Errorf("lot %s no longer has %d units available", a.LotID, a.Quantity)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_allocations (store_id, lot_id, quantity, reference_type, reference_id)
			VALUES ($1, $2, $3, $4, $5)
		`, storeID, a.LotID, a.Quantity, ref.Type, ref.ID); err != nil {
			return nil, fmt.Errorf("failed to record allocation for lot %s: %w", a.LotID, err)
		}
		result.Consumed += a.Quantity
	}

	return result, nil
}

func (l *stockLedger) AddLotTx(ctx context.Context, tx pgx.Tx, in LotInput) (*StockLot, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("lot quantity must be positive, got %d", in.Quantity)
	}
	if in.Source == "" {
		in.Source = LotSourceManual
	}

	lot, err := scanLot(tx.QueryRow(ctx, `
		INSERT INTO stock_lots (store_id, product_id, source, quantity_in, unit_cost_gross, expires_at, purchase_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+lotColumns,
		in.StoreID, in.ProductID, in.Source, in.Quantity, in.UnitCostGross, in.ExpiresAt, in.PurchaseID))
	if err != nil {
		return nil, fmt.Errorf("failed to insert stock lot: %w", err)
	}
	return &lot, nil
}

// SortLotsFIFO orders lots soonest-expiring first, lots without expiry after
// every dated lot, then oldest-created first.
func SortLotsFIFO(lots []StockLot) {
	slices.SortStableFunc(lots, func(a, b StockLot) int {
		switch {
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return -1
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return 1
		case a.ExpiresAt != nil && b.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Compare(*b.ExpiresAt)
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}

// PlanFIFO walks lots in FIFO order and returns how much to take from each to
// satisfy quantity. The input slice is not modified.
func PlanFIFO(lots []StockLot, quantity int64) ([]Allocation, int64) {
	ordered := slices.Clone(lots)
	SortLotsFIFO(ordered)

	remaining := quantity
	var allocations []Allocation
	for _, lot := range ordered {
		if remaining <= 0 {
			break
		}
		available := lot.Available()
		if available <= 0 {
			continue
		}
		take := min(available, remaining)
		allocations = append(allocations, Allocation{LotID: lot.ID, Quantity: take})
		remaining -= take
	}
	return allocations, max(remaining, 0)
}

func sumAvailable(lots []StockLot) int64 {
	var total int64
	for _, l := range lots {
		total += l.Available()
	}
	return total
}
