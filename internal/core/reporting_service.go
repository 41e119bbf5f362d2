package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReportingService answers the read-only metric questions a store owner asks.
// It never writes.
type ReportingService interface {
	// StockTotal counts products with stock and the units across all of them.
	StockTotal(ctx context.Context, storeID uuid.UUID) (*StockTotals, error)

	// StockByProduct reports one product's available units and their valuation.
	// AverageUnitCost is weighted by remaining units over lots that carry a cost.
	StockByProduct(ctx context.Context, storeID uuid.UUID, product string) (*ProductStockReport, error)

	// StockLots lists a product's lots that still hold stock, in FIFO order.
	StockLots(ctx context.Context, storeID uuid.UUID, product string) (*Product, []StockLot, error)

	// SalesBetween aggregates sales with occurred_at in [from, to).
	SalesBetween(ctx context.Context, storeID uuid.UUID, from, to time.Time) (*SalesSummary, error)

	// SalesOn aggregates the calendar day containing at, in the store's time zone.
	SalesOn(ctx context.Context, storeID uuid.UUID, at time.Time) (*SalesSummary, error)

	// ExpiringSoon lists lots with stock whose expiry falls in [now, now+within],
	// soonest first, at most limit rows.
	ExpiringSoon(ctx context.Context, storeID uuid.UUID, now time.Time, within time.Duration, limit int) ([]ExpiringLot, error)
}

// ── Report types ──────────────────────────────────────────────────────────────

type StockTotals struct {
	Products int   `json:"products"`
	Units    int64 `json:"units"`
}

type ProductStockReport struct {
	ProductID       uuid.UUID        `json:"productId"`
	ProductName     string           `json:"productName"`
	Available       int64            `json:"available"`
	Lots            int              `json:"lots"`
	AverageUnitCost *decimal.Decimal `json:"averageUnitCost,omitempty"`
	StockValue      decimal.Decimal  `json:"stockValue"`
}

type SalesSummary struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Count      int       `json:"count"`
	Units      int64     `json:"units"`
	TotalGross int64     `json:"totalGross"`
}

type ExpiringLot struct {
	LotID       uuid.UUID `json:"lotId"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Available   int64     `json:"available"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	pool     *pgxpool.Pool
	ledger   StockLedger
	resolver ProductResolver
	stores   StoreService
}

func NewReportingService(pool *pgxpool.Pool, ledger StockLedger, resolver ProductResolver, stores StoreService) ReportingService {
	return &reportingService{pool: pool, ledger: ledger, resolver: resolver, stores: stores}
}

func (s *reportingService) StockTotal(ctx context.Context, storeID uuid.UUID) (*StockTotals, error) {
	var t StockTotals
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT l.product_id), COALESCE(SUM(l.quantity_in - l.quantity_out), 0)::bigint
		FROM stock_lots l
		JOIN products p ON p.id = l.product_id AND p.archived_at IS NULL
		WHERE l.store_id = $1 AND l.quantity_out < l.quantity_in
	`, storeID).Scan(&t.Products, &t.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stock total: %w", err)
	}
	return &t, nil
}

func (s *reportingService) StockByProduct(ctx context.Context, storeID uuid.UUID, product string) (*ProductStockReport, error) {
	p, err := s.resolver.Resolve(ctx, s.pool, storeID, product)
	if err != nil {
		return nil, err
	}
	lots, err := s.ledger.ListLots(ctx, s.pool, storeID, p.ID, false)
	if err != nil {
		return nil, err
	}
	return valueLots(p, lots), nil
}

func (s *reportingService) StockLots(ctx context.Context, storeID uuid.UUID, product string) (*Product, []StockLot, error) {
	p, err := s.resolver.Resolve(ctx, s.pool, storeID, product)
	if err != nil {
		return nil, nil, err
	}
	lots, err := s.ledger.ListLots(ctx, s.pool, storeID, p.ID, false)
	if err != nil {
		return nil, nil, err
	}
	return p, lots, nil
}

// valueLots computes the weighted average cost and stock value of the remaining units.
func valueLots(p *Product, lots []StockLot) *ProductStockReport {
	r := &ProductStockReport{ProductID: p.ID, ProductName: p.Name, Lots: len(lots), StockValue: decimal.Zero}

	costedUnits := decimal.Zero
	for _, l := range lots {
		remaining := l.Available()
		r.Available += remaining
		if l.UnitCostGross == nil {
			continue
		}
		units := decimal.NewFromInt(remaining)
		r.StockValue = r.StockValue.Add(units.Mul(decimal.NewFromInt(*l.UnitCostGross)))
		costedUnits = costedUnits.Add(units)
	}
	if costedUnits.IsPositive() {
		avg := r.StockValue.DivRound(costedUnits, 2)
		r.AverageUnitCost = &avg
	}
	return r
}

func (s *reportingService) SalesBetween(ctx context.Context, storeID uuid.UUID, from, to time.Time) (*SalesSummary, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("sales range end must be after start")
	}
	sum := SalesSummary{From: from, To: to}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(s.total_gross), 0)::bigint,
		       COALESCE((SELECT SUM(i.quantity) FROM sale_items i
		                 JOIN sales s2 ON s2.id = i.sale_id
		                 WHERE s2.store_id = $1 AND s2.occurred_at >= $2 AND s2.occurred_at < $3), 0)::bigint
		FROM sales s
		WHERE s.store_id = $1 AND s.occurred_at >= $2 AND s.occurred_at < $3
	`, storeID, from, to).Scan(&sum.Count, &sum.TotalGross, &sum.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize sales: %w", err)
	}
	return &sum, nil
}

func (s *reportingService) SalesOn(ctx context.Context, storeID uuid.UUID, at time.Time) (*SalesSummary, error) {
	store, err := s.stores.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	from, to := DayBounds(at, store.Location())
	return s.SalesBetween(ctx, storeID, from, to)
}

// DayBounds returns the start of at's calendar day in loc and the start of the next one.
func DayBounds(at time.Time, loc *time.Location) (time.Time, time.Time) {
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *reportingService) ExpiringSoon(ctx context.Context, storeID uuid.UUID, now time.Time, within time.Duration, limit int) ([]ExpiringLot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.product_id, p.name, l.quantity_in - l.quantity_out, l.expires_at
		FROM stock_lots l
		JOIN products p ON p.id = l.product_id AND p.archived_at IS NULL
		WHERE l.store_id = $1
		  AND l.quantity_out < l.quantity_in
		  AND l.expires_at IS NOT NULL
		  AND l.expires_at >= $2 AND l.expires_at <= $3
		ORDER BY l.expires_at ASC, l.created_at ASC, l.id ASC
		LIMIT $4
	`, storeID, now, now.Add(within), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring lots: %w", err)
	}
	defer rows.Close()

	var out []ExpiringLot
	for rows.Next() {
		var e ExpiringLot
		if err := rows.Scan(&e.LotID, &e.ProductID, &e.ProductName, &e.Available, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan expiring lot: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
