package core_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestInventory_AddThenSell(t *testing.T) {
	f := setupTestDB(t)
	coke := f.createProduct(t, "Coke", 1200)

	added, err := f.inventory.AddStock(f.ctx, f.storeID, core.AddStockInput{Product: "Coke", Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(10), added.Available)

	sale, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "Coke", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), sale.TotalGross)
	assert.Equal(t, core.PaymentCash, sale.PaymentMethod)

	assert.Equal(t, int64(7), f.available(t, coke.ID))

	var lotID uuid.UUID
	var qty int64
	require.NoError(t, f.pool.QueryRow(f.ctx, `SELECT lot_id, quantity FROM sale_item_lots`).Scan(&lotID, &qty))
	assert.Equal(t, added.Lot.ID, lotID)
	assert.Equal(t, int64(3), qty)
	assert.Equal(t, 1, f.count(t, "sale_item_lots"))
}

func TestInventory_SaleIsAtomicOnShortfall(t *testing.T) {
	f := setupTestDB(t)
	a := f.createProduct(t, "A", 1000)
	b := f.createProduct(t, "B", 500)
	f.addLot(t, a.ID, 5, nil)
	f.addLot(t, b.ID, 20, nil)

	_, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "B", Quantity: 2}, {Product: "A", Quantity: 10}},
	})
	var insufficient *core.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(5), insufficient.Available)
	assert.Equal(t, int64(10), insufficient.Requested)
	assert.Contains(t, err.Error(), "5")
	assert.Contains(t, err.Error(), "10")

	assert.Zero(t, f.count(t, "sales"))
	assert.Zero(t, f.count(t, "sale_items"))
	assert.Zero(t, f.count(t, "stock_allocations"))
	assert.Equal(t, int64(5), f.available(t, a.ID))
	assert.Equal(t, int64(20), f.available(t, b.ID))
}

func TestInventory_SaleTotalOverflowIsRejected(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Caviar", 1000)
	f.addLot(t, p.ID, 10, nil)

	_, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "Caviar", Quantity: 3, UnitPriceGross: i64(math.MaxInt64 / 2)}},
	})
	assert.ErrorIs(t, err, core.ErrAmountTooLarge)
	assert.Zero(t, f.count(t, "sales"))
	assert.Equal(t, int64(10), f.available(t, p.ID))
}

func TestInventory_SaleAggregatesRepeatedProduct(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Pan Amasado", 200)
	f.addLot(t, p.ID, 5, nil)

	_, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "Pan Amasado", Quantity: 3}, {Product: "pan amasado", Quantity: 3}},
	})
	var insufficient *core.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(6), insufficient.Requested)
	assert.Equal(t, int64(5), f.available(t, p.ID))
}

func TestInventory_MultiLotSale(t *testing.T) {
	f := setupTestDB(t)
	bread := f.createProduct(t, "Bread", 300)
	tomorrow := time.Now().Add(24 * time.Hour)
	nextWeek := time.Now().Add(7 * 24 * time.Hour)
	lot2 := f.addLot(t, bread.ID, 5, &nextWeek)
	lot1 := f.addLot(t, bread.ID, 2, &tomorrow)

	sale, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "Bread", Quantity: 4, UnitPriceGross: i64(250)}},
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, int64(1000), sale.TotalGross)
	assert.Equal(t, []core.Allocation{{LotID: lot1.ID, Quantity: 2}, {LotID: lot2.ID, Quantity: 2}}, sale.Items[0].Lots)
	assert.Equal(t, 2, f.count(t, "sale_item_lots"))

	lots, err := f.ledger.ListLots(f.ctx, f.pool, f.storeID, bread.ID, true)
	require.NoError(t, err)
	for _, l := range lots {
		assert.LessOrEqual(t, l.QuantityOut, l.QuantityIn)
	}
	assert.Equal(t, int64(3), f.available(t, bread.ID))
}

func TestInventory_SaleRejectsForeignCustomer(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Chicle", 100)
	f.addLot(t, p.ID, 10, nil)

	stranger := uuid.New()
	_, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items:      []core.SaleLineInput{{Product: "Chicle", Quantity: 1}},
		CustomerID: &stranger,
	})
	assert.ErrorIs(t, err, core.ErrCustomerNotFound)
	assert.Equal(t, int64(10), f.available(t, p.ID))
}

func TestInventory_ConcurrentSalesNeverOverAllocate(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Helado", 1500)
	f.addLot(t, p.ID, 6, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
				Items: []core.SaleLineInput{{Product: "Helado", Quantity: 5}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var shortfall *core.InsufficientStockError
		assert.ErrorAs(t, err, &shortfall)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.available(t, p.ID))
}

func TestInventory_ConcurrentSalesThatFitAllSucceed(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Paleta", 800)
	f.addLot(t, p.ID, 6, nil)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
				Items: []core.SaleLineInput{{Product: "Paleta", Quantity: 2}},
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(0), f.available(t, p.ID))
}

func TestInventory_MarkExpiredDefaultsToAllAvailable(t *testing.T) {
	f := setupTestDB(t)
	milk := f.createProduct(t, "Milk", 1100)
	f.addLot(t, milk.ID, 4, nil)

	res, err := f.inventory.MarkExpired(f.ctx, f.storeID, core.MarkExpiredInput{Product: "Milk"})
	require.NoError(t, err)
	assert.Equal(t, int64(-4), res.Applied)
	assert.Equal(t, core.ReasonExpired, res.Adjustment.Reason)
	assert.Equal(t, int64(-4), res.Adjustment.QuantityDelta)
	assert.Zero(t, res.Available)

	_, err = f.inventory.MarkExpired(f.ctx, f.storeID, core.MarkExpiredInput{Product: "Milk"})
	assert.ErrorIs(t, err, core.ErrNoStock)
}

func TestInventory_MarkExpiredCapsAtAvailable(t *testing.T) {
	f := setupTestDB(t)
	milk := f.createProduct(t, "Milk", 1100)
	f.addLot(t, milk.ID, 3, nil)

	res, err := f.inventory.MarkExpired(f.ctx, f.storeID, core.MarkExpiredInput{Product: "milk", Quantity: i64(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Requested)
	assert.Equal(t, int64(-3), res.Applied)
}

func TestInventory_AdjustStock(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Aceite", 2500)
	f.addLot(t, p.ID, 2, nil)

	up, err := f.inventory.AdjustStock(f.ctx, f.storeID, core.AdjustStockInput{
		Product: "Aceite", QuantityDelta: 3, Reason: core.ReasonCountCorrection,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), up.Available)

	var source string
	require.NoError(t, f.pool.QueryRow(f.ctx,
		`SELECT source FROM stock_lots WHERE product_id = $1 ORDER BY created_at DESC LIMIT 1`, p.ID).Scan(&source))
	assert.Equal(t, string(core.LotSourceAdjustment), source)

	down, err := f.inventory.AdjustStock(f.ctx, f.storeID, core.AdjustStockInput{
		Product: "Aceite", QuantityDelta: -8, Reason: core.ReasonDamage,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-8), down.Requested)
	assert.Equal(t, int64(-5), down.Applied)
	assert.Equal(t, int64(-5), down.Adjustment.QuantityDelta)
	assert.Zero(t, f.available(t, p.ID))

	_, err = f.inventory.AdjustStock(f.ctx, f.storeID, core.AdjustStockInput{Product: "Aceite", QuantityDelta: -1})
	assert.ErrorIs(t, err, core.ErrNoStock)
	assert.Equal(t, 2, f.count(t, "inventory_adjustments"))
}

func TestInventory_UnknownProductCausesNoMutation(t *testing.T) {
	f := setupTestDB(t)

	_, err := f.inventory.AddStock(f.ctx, f.storeID, core.AddStockInput{Product: "Pisco Mistral", Quantity: 3})
	var nf *core.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Pisco Mistral", nf.Query)
	assert.Zero(t, f.count(t, "stock_lots"))
}

func TestInventory_PerishableDefaultExpiry(t *testing.T) {
	f := setupTestDB(t)
	days := 5
	_, err := f.products.CreateProduct(f.ctx, f.storeID, core.ProductInput{
		Name: "Pan Integral", SalePriceGross: 1800, IsPerishable: true, DefaultShelfLifeDays: &days,
	})
	require.NoError(t, err)

	res, err := f.inventory.AddStock(f.ctx, f.storeID, core.AddStockInput{Product: "Pan Integral", Quantity: 4})
	require.NoError(t, err)
	require.NotNil(t, res.Lot.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 5), *res.Lot.ExpiresAt, time.Minute)
}

func TestInventory_CreatePurchase(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Fideos", 900)
	sup, err := f.parties.CreateSupplier(f.ctx, f.storeID, core.SupplierInput{Name: "Distribuidora Sur"})
	require.NoError(t, err)

	purchase, err := f.inventory.CreatePurchase(f.ctx, f.storeID, core.PurchaseInput{
		SupplierID: &sup.ID,
		Items: []core.PurchaseLineInput{
			{Product: "Fideos", Quantity: 12, UnitCostGross: i64(600)},
			{Product: "Fideos", Quantity: 6},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7200), purchase.TotalGross)
	require.Len(t, purchase.Items, 2)
	assert.NotEqual(t, purchase.Items[0].LotID, purchase.Items[1].LotID)
	assert.Equal(t, int64(18), f.available(t, p.ID))

	report, err := f.reports.StockByProduct(f.ctx, f.storeID, "fideos")
	require.NoError(t, err)
	assert.Equal(t, int64(18), report.Available)
	require.NotNil(t, report.AverageUnitCost)
	assert.Equal(t, "600", report.AverageUnitCost.String())
}

func TestInventory_PurchaseRejectsForeignSupplier(t *testing.T) {
	f := setupTestDB(t)
	f.createProduct(t, "Azúcar", 1200)

	foreign := uuid.New()
	_, err := f.inventory.CreatePurchase(f.ctx, f.storeID, core.PurchaseInput{
		SupplierID: &foreign,
		Items:      []core.PurchaseLineInput{{Product: "Azúcar", Quantity: 3}},
	})
	assert.ErrorIs(t, err, core.ErrSupplierNotFound)
	assert.Zero(t, f.count(t, "purchases"))
	assert.Zero(t, f.count(t, "stock_lots"))
}

func TestReporting_SalesAndExpiry(t *testing.T) {
	f := setupTestDB(t)
	p := f.createProduct(t, "Queso", 3000)
	soon := time.Now().Add(48 * time.Hour)
	later := time.Now().Add(30 * 24 * time.Hour)
	f.addLot(t, p.ID, 2, &soon)
	f.addLot(t, p.ID, 2, &later)

	_, err := f.inventory.CreateSale(f.ctx, f.storeID, core.SaleInput{
		Items: []core.SaleLineInput{{Product: "Queso", Quantity: 1}},
	})
	require.NoError(t, err)

	today, err := f.reports.SalesOn(f.ctx, f.storeID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, today.Count)
	assert.Equal(t, int64(3000), today.TotalGross)
	assert.Equal(t, int64(1), today.Units)

	expiring, err := f.reports.ExpiringSoon(f.ctx, f.storeID, time.Now(), 7*24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, int64(1), expiring[0].Available)

	totals, err := f.reports.StockTotal(f.ctx, f.storeID)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Products)
	assert.Equal(t, int64(3), totals.Units)
}
