package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"minimarket-copilot/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AddStockInput adds a MANUAL lot. A perishable product without ExpiresAt gets
// now + its default shelf life.
type AddStockInput struct {
	Product       string
	Quantity      int64
	ExpiresAt     *time.Time
	UnitCostGross *int64
}

type AddStockResult struct {
	Product   Product  `json:"product"`
	Lot       StockLot `json:"lot"`
	Available int64    `json:"available"`
}

// MarkExpiredInput expires Quantity units, or everything available when nil.
type MarkExpiredInput struct {
	Product  string
	Quantity *int64
}

type AdjustStockInput struct {
	Product       string
	QuantityDelta int64
	Reason        AdjustmentReason
	Note          *string
}

// StockChangeResult reports an expiry or adjustment. Applied may be smaller in
// magnitude than Requested when a decrease hits the available stock ceiling.
type StockChangeResult struct {
	Product     Product             `json:"product"`
	Requested   int64               `json:"requested"`
	Applied     int64               `json:"applied"`
	Available   int64               `json:"available"`
	Adjustment  InventoryAdjustment `json:"adjustment"`
	Allocations []Allocation        `json:"allocations,omitempty"`
}

type SaleLineInput struct {
	Product        string
	Quantity       int64
	UnitPriceGross *int64
}

type SaleInput struct {
	Items         []SaleLineInput
	PaymentMethod PaymentMethod
	CustomerID    *uuid.UUID
	OccurredAt    *time.Time
}

type PurchaseLineInput struct {
	Product       string
	Quantity      int64
	UnitCostGross *int64
	ExpiresAt     *time.Time
}

type PurchaseInput struct {
	Items      []PurchaseLineInput
	SupplierID *uuid.UUID
	Notes      *string
	OccurredAt *time.Time
}

// InventoryService runs every stock-moving operation. Each method opens one
// transaction; product references are resolved inside it so lot selection is
// never based on a stale read.
type InventoryService interface {
	AddStock(ctx context.Context, storeID uuid.UUID, in AddStockInput) (*AddStockResult, error)
	SetPrice(ctx context.Context, storeID uuid.UUID, product string, salePriceGross int64) (*Product, error)
	// MarkExpired consumes FIFO and records an EXPIRED adjustment. Requests above
	// the available stock expire what exists. No stock at all returns ErrNoStock.
	MarkExpired(ctx context.Context, storeID uuid.UUID, in MarkExpiredInput) (*StockChangeResult, error)
	// AdjustStock adds an ADJUSTMENT lot for positive deltas and consumes FIFO for
	// negative ones, capped at the available stock like MarkExpired.
	AdjustStock(ctx context.Context, storeID uuid.UUID, in AdjustStockInput) (*StockChangeResult, error)
	// CreateSale is all-or-nothing: every line is resolved and checked against
	// available stock before anything is written.
	CreateSale(ctx context.Context, storeID uuid.UUID, in SaleInput) (*Sale, error)
	// CreatePurchase writes one PURCHASE lot per line.
	CreatePurchase(ctx context.Context, storeID uuid.UUID, in PurchaseInput) (*Purchase, error)
}

type inventoryService struct {
	pool     *pgxpool.Pool
	ledger   StockLedger
	resolver ProductResolver
	now      func() time.Time
}

func NewInventoryService(pool *pgxpool.Pool, ledger StockLedger, resolver ProductResolver) InventoryService {
	return &inventoryService{pool: pool, ledger: ledger, resolver: resolver, now: time.Now}
}

func (s *inventoryService) AddStock(ctx context.Context, storeID uuid.UUID, in AddStockInput) (*AddStockResult, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", in.Quantity)
	}

	var result AddStockResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.resolver.Resolve(ctx, tx, storeID, in.Product)
		if err != nil {
			return err
		}

		expiresAt := in.ExpiresAt
		if expiresAt == nil && p.IsPerishable && p.DefaultShelfLifeDays != nil {
			t := s.now().AddDate(0, 0, *p.DefaultShelfLifeDays)
			expiresAt = &t
		}

		lot, err := s.ledger.AddLotTx(ctx, tx, LotInput{
			StoreID:       storeID,
			ProductID:     p.ID,
			Quantity:      in.Quantity,
			Source:        LotSourceManual,
			UnitCostGross: in.UnitCostGross,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			return err
		}
		available, err := s.ledger.AvailableStock(ctx, tx, storeID, p.ID)
		if err != nil {
			return err
		}
		result = AddStockResult{Product: *p, Lot: *lot, Available: available}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *inventoryService) SetPrice(ctx context.Context, storeID uuid.UUID, product string, salePriceGross int64) (*Product, error) {
	if salePriceGross < 0 {
		return nil, fmt.Errorf("sale price cannot be negative")
	}

	var updated *Product
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.resolver.Resolve(ctx, tx, storeID, product)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET sale_price_gross = $1, updated_at = NOW()
			WHERE id = $2 AND store_id = $3
		`, salePriceGross, p.ID, storeID); err != nil {
			return fmt.Errorf("failed to update price: %w", err)
		}
		p.SalePriceGross = salePriceGross
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *inventoryService) MarkExpired(ctx context.Context, storeID uuid.UUID, in MarkExpiredInput) (*StockChangeResult, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", *in.Quantity)
	}

	var result *StockChangeResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.resolver.Resolve(ctx, tx, storeID, in.Product)
		if err != nil {
			return err
		}
		lots, err := s.ledger.LockLotsTx(ctx, tx, storeID, p.ID)
		if err != nil {
			return err
		}
		available := sumAvailable(lots)
		if available == 0 {
			return ErrNoStock
		}

		requested := available
		if in.Quantity != nil {
			requested = *in.Quantity
		}
		result, err = s.decreaseTx(ctx, tx, storeID, p, min(requested, available), ReasonExpired, nil, RefExpiry)
		if err != nil {
			return err
		}
		result.Requested = requested
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, storeID uuid.UUID, in AdjustStockInput) (*StockChangeResult, error) {
	if in.QuantityDelta == 0 {
		return nil, fmt.Errorf("quantity delta cannot be zero")
	}
	if in.Reason == "" {
		in.Reason = ReasonCountCorrection
	}

	var result *StockChangeResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.resolver.Resolve(ctx, tx, storeID, in.Product)
		if err != nil {
			return err
		}

		if in.QuantityDelta > 0 {
			adj, err := insertAdjustmentTx(ctx, tx, storeID, p.ID, in.Reason, in.QuantityDelta, in.Note)
			if err != nil {
				return err
			}
			if _, err := s.ledger.AddLotTx(ctx, tx, LotInput{
				StoreID:   storeID,
				ProductID: p.ID,
				Quantity:  in.QuantityDelta,
				Source:    LotSourceAdjustment,
			}); err != nil {
				return err
			}
			available, err := s.ledger.AvailableStock(ctx, tx, storeID, p.ID)
			if err != nil {
				return err
			}
			result = &StockChangeResult{
				Product:    *p,
				Requested:  in.QuantityDelta,
				Applied:    in.QuantityDelta,
				Available:  available,
				Adjustment: *adj,
			}
			return nil
		}

		lots, err := s.ledger.LockLotsTx(ctx, tx, storeID, p.ID)
		if err != nil {
			return err
		}
		available := sumAvailable(lots)
		if available == 0 {
			return ErrNoStock
		}
		result, err = s.decreaseTx(ctx, tx, storeID, p, min(-in.QuantityDelta, available), in.Reason, in.Note, RefAdjustment)
		if err != nil {
			return err
		}
		result.Requested = in.QuantityDelta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decreaseTx records a negative adjustment of quantity units and consumes them FIFO.
// quantity must already be capped at the available stock.
func (s *inventoryService) decreaseTx(ctx context.Context, tx pgx.Tx, storeID uuid.UUID, p *Product,
	quantity int64, reason AdjustmentReason, note *string, refType string) (*StockChangeResult, error) {

	adj, err := insertAdjustmentTx(ctx, tx, storeID, p.ID, reason, -quantity, note)
	if err != nil {
		return nil, err
	}
	consumed, err := s.ledger.ConsumeFIFOTx(ctx, tx, storeID, p.ID, quantity, Reference{Type: refType, ID: adj.ID})
	if err != nil {
		return nil, err
	}
	if consumed.Shortfall > 0 {
		return nil, fmt.Errorf("stock for %s changed during adjustment: short by %d", p.Name, consumed.Shortfall)
	}
	available, err := s.ledger.AvailableStock(ctx, tx, storeID, p.ID)
	if err != nil {
		return nil, err
	}
	return &StockChangeResult{
		Product:     *p,
		Applied:     -consumed.Consumed,
		Available:   available,
		Adjustment:  *adj,
		Allocations: consumed.Allocations,
	}, nil
}

func insertAdjustmentTx(ctx context.Context, tx pgx.Tx, storeID, productID uuid.UUID,
	reason AdjustmentReason, delta int64, note *string) (*InventoryAdjustment, error) {

	var a InventoryAdjustment
	err := tx.QueryRow(ctx, `
		INSERT INTO inventory_adjustments (store_id, product_id, reason, quantity_delta, note)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, store_id, product_id, reason, quantity_delta, note, occurred_at
	`, storeID, productID, reason, delta, note).Scan(
		&a.ID, &a.StoreID, &a.ProductID, &a.Reason, &a.QuantityDelta, &a.Note, &a.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert inventory adjustment: %w", err)
	}
	return &a, nil
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *inventoryService) CreateSale(ctx context.Context, storeID uuid.UUID, in SaleInput) (*Sale, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("sale must have at least one item")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive, got %d", i+1, item.Quantity)
		}
		if item.UnitPriceGross != nil && *item.UnitPriceGross < 0 {
			return nil, fmt.Errorf("item %d: unit price cannot be negative", i+1)
		}
	}
	method := in.PaymentMethod
	if method == "" {
		method = PaymentCash
	}
	occurredAt := s.now()
	if in.OccurredAt != nil {
		occurredAt = *in.OccurredAt
	}

	var sale *Sale
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if in.CustomerID != nil {
			ok, err := belongsToStore(ctx, tx, "customers", storeID, *in.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrCustomerNotFound
			}
		}

		// Resolve and pre-check every line before the first write.
		products := make([]*Product, len(in.Items))
		requested := make(map[uuid.UUID]int64)
		for i, item := range in.Items {
			p, err := s.resolver.Resolve(ctx, tx, storeID, item.Product)
			if err != nil {
				return err
			}
			products[i] = p
			requested[p.ID] += item.Quantity
		}
		checked := make(map[uuid.UUID]bool)
		for _, p := range products {
			if checked[p.ID] {
				continue
			}
			checked[p.ID] = true
			lots, err := s.ledger.LockLotsTx(ctx, tx, storeID, p.ID)
			if err != nil {
				return err
			}
			if available := sumAvailable(lots); available < requested[p.ID] {
				return &InsufficientStockError{ProductName: p.Name, Available: available, Requested: requested[p.ID]}
			}
		}

		sale = &Sale{StoreID: storeID, CustomerID: in.CustomerID, PaymentMethod: method, Channel: "VOICE", OccurredAt: occurredAt}
		for i, item := range in.Items {
			price := products[i].SalePriceGross
			if item.UnitPriceGross != nil {
				price = *item.UnitPriceGross
			}
			line, err := mulAmount(price, item.Quantity)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			if sale.TotalGross, err = addAmount(sale.TotalGross, line); err != nil {
				return fmt.Errorf("sale total: %w", err)
			}
			sale.Items = append(sale.Items, SaleItem{
				ProductID:      products[i].ID,
				ProductName:    products[i].Name,
				Quantity:       item.Quantity,
				UnitPriceGross: price,
				LineTotalGross: line,
			})
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO sales (store_id, customer_id, total_gross, payment_method, channel, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, storeID, in.CustomerID, sale.TotalGross, sale.PaymentMethod, sale.Channel, sale.OccurredAt).Scan(&sale.ID); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		for i := range sale.Items {
			item := &sale.Items[i]
			item.SaleID = sale.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO sale_items (sale_id, product_id, quantity, unit_price_gross, line_total_gross)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, sale.ID, item.ProductID, item.Quantity, item.UnitPriceGross, item.LineTotalGross).Scan(&item.ID); err != nil {
				return fmt.Errorf("failed to insert sale item for %s: %w", item.ProductName, err)
			}

			consumed, err := s.ledger.ConsumeFIFOTx(ctx, tx, storeID, item.ProductID, item.Quantity,
				Reference{Type: RefSaleItem, ID: item.ID})
			if err != nil {
				return err
			}
			if consumed.Shortfall > 0 {
				return &InsufficientStockError{
					ProductName: item.ProductName,
					Available:   consumed.Consumed,
					Requested:   item.Quantity,
				}
			}
			for _, a := range consumed.Allocations {
				if _, err := tx.Exec(ctx, `
					INSERT INTO sale_item_lots (sale_item_id, lot_id, quantity) VALUES ($1, $2, $3)
				`, item.ID, a.LotID, a.Quantity); err != nil {
					return fmt.Errorf("failed to insert sale item lot: %w", err)
				}
			}
			item.Lots = consumed.Allocations
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// mulAmount multiplies two non-negative amounts, failing instead of wrapping.
func mulAmount(a, b int64) (int64, error) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, ErrAmountTooLarge
	}
	return a * b, nil
}

func addAmount(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, ErrAmountTooLarge
	}
	return a + b, nil
}

// ── Purchases ─────────────────────────────────────────────────────────────────

func (s *inventoryService) CreatePurchase(ctx context.Context, storeID uuid.UUID, in PurchaseInput) (*Purchase, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("purchase must have at least one item")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: quantity must be positive, got %d", i+1, item.Quantity)
		}
		if item.UnitCostGross != nil && *item.UnitCostGross < 0 {
			return nil, fmt.Errorf("item %d: unit cost cannot be negative", i+1)
		}
	}
	occurredAt := s.now()
	if in.OccurredAt != nil {
		occurredAt = *in.OccurredAt
	}

	var purchase *Purchase
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if in.SupplierID != nil {
			ok, err := belongsToStore(ctx, tx, "suppliers", storeID, *in.SupplierID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrSupplierNotFound
			}
		}

		products := make([]*Product, len(in.Items))
		var total int64
		for i, item := range in.Items {
			p, err := s.resolver.Resolve(ctx, tx, storeID, item.Product)
			if err != nil {
				return err
			}
			products[i] = p
			if item.UnitCostGross != nil {
				line, err := mulAmount(*item.UnitCostGross, item.Quantity)
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				if total, err = addAmount(total, line); err != nil {
					return fmt.Errorf("purchase total: %w", err)
				}
			}
		}

		purchase = &Purchase{StoreID: storeID, SupplierID: in.SupplierID, Notes: in.Notes, TotalGross: total, OccurredAt: occurredAt}
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchases (store_id, supplier_id, notes, total_gross, occurred_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, storeID, in.SupplierID, in.Notes, total, occurredAt).Scan(&purchase.ID); err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

		for i, item := range in.Items {
			p := products[i]
			expiresAt := item.ExpiresAt
			if expiresAt == nil && p.IsPerishable && p.DefaultShelfLifeDays != nil {
				t := occurredAt.AddDate(0, 0, *p.DefaultShelfLifeDays)
				expiresAt = &t
			}
			lot, err := s.ledger.AddLotTx(ctx, tx, LotInput{
				StoreID:       storeID,
				ProductID:     p.ID,
				Quantity:      item.Quantity,
				Source:        LotSourcePurchase,
				UnitCostGross: item.UnitCostGross,
				ExpiresAt:     expiresAt,
				PurchaseID:    &purchase.ID,
			})
			if err != nil {
				return err
			}

			pi := PurchaseItem{
				PurchaseID:    purchase.ID,
				ProductID:     p.ID,
				ProductName:   p.Name,
				Quantity:      item.Quantity,
				UnitCostGross: item.UnitCostGross,
				LotID:         lot.ID,
			}
			if err := tx.QueryRow(ctx, `
				INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost_gross, lot_id)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id
			`, purchase.ID, p.ID, item.Quantity, item.UnitCostGross, lot.ID).Scan(&pi.ID); err != nil {
				return fmt.Errorf("failed to insert purchase item for %s: %w", p.Name, err)
			}
			purchase.Items = append(purchase.Items, pi)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// IsNotFound reports whether err is one of the store-scoped lookup misses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrSupplierNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrStoreNotFound)
}
