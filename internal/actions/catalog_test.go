package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fakes embed the service interface so any method a test does not stub panics.

type fakeInventory struct {
	core.InventoryService
	addStock    func(core.AddStockInput) (*core.AddStockResult, error)
	markExpired func(core.MarkExpiredInput) (*core.StockChangeResult, error)
	adjust      func(core.AdjustStockInput) (*core.StockChangeResult, error)
	createSale  func(core.SaleInput) (*core.Sale, error)
}

func (f *fakeInventory) AddStock(_ context.Context, _ uuid.UUID, in core.AddStockInput) (*core.AddStockResult, error) {
	return f.addStock(in)
}

func (f *fakeInventory) MarkExpired(_ context.Context, _ uuid.UUID, in core.MarkExpiredInput) (*core.StockChangeResult, error) {
	return f.markExpired(in)
}

func (f *fakeInventory) AdjustStock(_ context.Context, _ uuid.UUID, in core.AdjustStockInput) (*core.StockChangeResult, error) {
	return f.adjust(in)
}

func (f *fakeInventory) CreateSale(_ context.Context, _ uuid.UUID, in core.SaleInput) (*core.Sale, error) {
	return f.createSale(in)
}

type fakeProducts struct {
	core.ProductService
	created  []core.ProductInput
	failOn   string
	resolved *core.Product
	stockFor []uuid.UUID
}

func (f *fakeProducts) CreateProduct(_ context.Context, storeID uuid.UUID, in core.ProductInput) (*core.Product, error) {
	if in.Name == f.failOn {
		return nil, fmt.Errorf("%w: 123", core.ErrBarcodeTaken)
	}
	f.created = append(f.created, in)
	return &core.Product{ID: uuid.New(), StoreID: storeID, Name: in.Name, SalePriceGross: in.SalePriceGross}, nil
}

func (f *fakeProducts) Resolve(_ context.Context, storeID uuid.UUID, query string) (*core.Product, error) {
	if f.resolved == nil {
		return nil, &core.ProductNotFoundError{Query: query}
	}
	return f.resolved, nil
}

func (f *fakeProducts) GetProductStock(_ context.Context, _ uuid.UUID, productID uuid.UUID) (*core.ProductStock, error) {
	f.stockFor = append(f.stockFor, productID)
	return &core.ProductStock{Product: *f.resolved, Available: 9}, nil
}

type fakeReports struct {
	core.ReportingService
	from, to time.Time
}

func (f *fakeReports) SalesBetween(_ context.Context, _ uuid.UUID, from, to time.Time) (*core.SalesSummary, error) {
	f.from, f.to = from, to
	return &core.SalesSummary{From: from, To: to, Count: 3, TotalGross: 15990}, nil
}

func (f *fakeReports) StockByProduct(_ context.Context, _ uuid.UUID, product string) (*core.ProductStockReport, error) {
	avg := decimal.NewFromInt(1000)
	return &core.ProductStockReport{ProductName: product, Available: 12, AverageUnitCost: &avg, StockValue: decimal.NewFromInt(12000)}, nil
}

type fakeStores struct {
	core.StoreService
	timezone string
}

func (f *fakeStores) GetStore(_ context.Context, storeID uuid.UUID) (*core.Store, error) {
	return &core.Store{ID: storeID, Name: "Almacén Don Pepe", Timezone: f.timezone}, nil
}

func newTestCatalog(t *testing.T, svc Services) *Catalog {
	t.Helper()
	c, err := NewCatalog(svc, nil)
	require.NoError(t, err)
	return c
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

var store = uuid.New()

func TestNewCatalog_DefinesEveryName(t *testing.T) {
	c := newTestCatalog(t, Services{})

	defs := c.Definitions()
	require.Len(t, defs, len(AllNames()))
	for i, n := range AllNames() {
		assert.Equal(t, n, defs[i].Name)
		assert.NotEmpty(t, defs[i].Description, n)
		assert.Equal(t, "object", defs[i].Schema["type"], n)
		assert.NotContains(t, defs[i].Schema, "$schema")
	}

	props := c.defs[CreateSale].Schema["properties"].(map[string]any)
	items := props["items"].(map[string]any)
	assert.EqualValues(t, MaxBatch, items["maxItems"])
	assert.Equal(t, []any{"items"}, c.defs[CreateSale].Schema["required"])
}

func TestParseName(t *testing.T) {
	n, ok := ParseName("create_sale")
	assert.True(t, ok)
	assert.Equal(t, CreateSale, n)

	n, ok = ParseName("launch_rocket")
	assert.False(t, ok)
	assert.Equal(t, Other, n)

	assert.True(t, CreateSale.Mutates())
	assert.False(t, AskMetric.Mutates())
}

func TestExecute_BatchCapRejectsBeforeCreating(t *testing.T) {
	products := &fakeProducts{}
	c := newTestCatalog(t, Services{Products: products})

	items := make([]ProductParams, MaxBatch+1)
	for i := range items {
		items[i] = ProductParams{Name: fmt.Sprintf("Producto %d", i)}
	}
	res := c.Execute(context.Background(), store, CreateManyProducts, raw(t, CreateManyProductsParams{Products: items}))

	assert.False(t, res.OK)
	assert.Equal(t, "Parámetros inválidos para la acción create_many_products.", res.Message)
	assert.Empty(t, products.created)

	res = c.Execute(context.Background(), store, CreateManyProducts, raw(t, CreateManyProductsParams{Products: items[:MaxBatch]}))
	assert.True(t, res.OK)
	assert.Len(t, products.created, MaxBatch)
}

func TestExecute_CreateManyProductsReportsPerItem(t *testing.T) {
	products := &fakeProducts{failOn: "Agua"}
	c := newTestCatalog(t, Services{Products: products})

	res := c.Execute(context.Background(), store, CreateManyProducts,
		json.RawMessage(`{"products":[{"name":"Jugo","salePriceGross":900},{"name":"Agua"}]}`))

	require.True(t, res.OK)
	assert.Contains(t, res.Message, "1 de 2")
	assert.Contains(t, res.Message, "Agua")
	outcomes := res.Data.([]ItemOutcome)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.Contains(t, outcomes[1].Message, "código de barras")
}

func TestExecute_ValidationFailures(t *testing.T) {
	c := newTestCatalog(t, Services{Inventory: &fakeInventory{}})

	cases := map[string]struct {
		name Name
		body string
	}{
		"zero quantity":      {AddStock, `{"product":"Coca","quantity":0}`},
		"missing product":    {AddStock, `{"quantity":3}`},
		"unknown field":      {AddStock, `{"product":"Coca","quantity":3,"color":"red"}`},
		"bad date":           {AddStock, `{"product":"Coca","quantity":3,"expiresAt":"mañana"}`},
		"zero delta":         {AdjustStock, `{"product":"Coca","quantityDelta":0,"reason":"DAMAGE"}`},
		"bad reason":         {AdjustStock, `{"product":"Coca","quantityDelta":-1,"reason":"LOST"}`},
		"empty sale":         {CreateSale, `{"items":[]}`},
		"bad payment":        {CreateSale, `{"items":[{"product":"Coca","quantity":1}],"paymentMethod":"BITCOIN"}`},
		"bad customer":       {CreateSale, `{"items":[{"product":"Coca","quantity":1}],"customerId":"abc"}`},
		"metric w/o product": {AskMetric, `{"metric":"stock_by_product"}`},
		"range w/o dates":    {AskMetric, `{"metric":"sales_range"}`},
		"not json":           {SetPrice, `price 1990`},
		"huge price":         {CreateSale, `{"items":[{"product":"Coca","quantity":2,"unitPriceGross":9223372036854775807}]}`},
		"huge quantity":      {AddStock, `{"product":"Coca","quantity":1000001}`},
		"huge cost":          {CreatePurchase, `{"items":[{"product":"Coca","quantity":1,"unitCostGross":1000000001}]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Validate(tc.name, json.RawMessage(tc.body))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			res := c.Execute(context.Background(), store, tc.name, json.RawMessage(tc.body))
			assert.False(t, res.OK)
			assert.True(t, strings.HasPrefix(res.Message, "Parámetros inválidos"), res.Message)
		})
	}
}

func TestValidate_ReportsFieldPaths(t *testing.T) {
	c := newTestCatalog(t, Services{})
	_, err := c.Validate(CreateSale, json.RawMessage(`{"items":[{"product":"Coca","quantity":-2}]}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].quantity")
}

func TestExecute_UnresolvedProductQuotesQuery(t *testing.T) {
	inv := &fakeInventory{addStock: func(in core.AddStockInput) (*core.AddStockResult, error) {
		return nil, &core.ProductNotFoundError{Query: in.Product}
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, AddStock, json.RawMessage(`{"product":"Pisco Mistral","quantity":2}`))
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "Pisco Mistral")
}

func TestExecute_SaleShortfallNamesQuantities(t *testing.T) {
	inv := &fakeInventory{createSale: func(in core.SaleInput) (*core.Sale, error) {
		return nil, &core.InsufficientStockError{ProductName: "A", Available: 5, Requested: in.Items[0].Quantity}
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, CreateSale, json.RawMessage(`{"items":[{"product":"A","quantity":10}]}`))
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "5")
	assert.Contains(t, res.Message, "10")
}

func TestExecute_SaleTotalOutOfRange(t *testing.T) {
	inv := &fakeInventory{createSale: func(core.SaleInput) (*core.Sale, error) {
		return nil, fmt.Errorf("item 1: %w", core.ErrAmountTooLarge)
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, CreateSale,
		json.RawMessage(`{"items":[{"product":"Coca","quantity":1000000,"unitPriceGross":1000000000}]}`))
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "monto")
}

func TestExecute_SaleDefaultsAndMessage(t *testing.T) {
	var got core.SaleInput
	inv := &fakeInventory{createSale: func(in core.SaleInput) (*core.Sale, error) {
		got = in
		return &core.Sale{TotalGross: 3600, Items: []core.SaleItem{{ProductName: "Coke", Quantity: 3}}}, nil
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, CreateSale, json.RawMessage(`{"items":[{"product":"Coke","quantity":3}]}`))
	require.True(t, res.OK)
	assert.Equal(t, "Venta registrada: 3 x Coke. Total $3.600.", res.Message)
	assert.Empty(t, got.PaymentMethod, "service applies the CASH default")
	assert.Nil(t, got.CustomerID)
}

func TestExecute_MarkExpiredReportsCount(t *testing.T) {
	inv := &fakeInventory{markExpired: func(in core.MarkExpiredInput) (*core.StockChangeResult, error) {
		assert.Nil(t, in.Quantity)
		return &core.StockChangeResult{Product: core.Product{Name: "Milk"}, Requested: 4, Applied: -4}, nil
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, MarkExpired, json.RawMessage(`{"product":"Milk"}`))
	require.True(t, res.OK)
	assert.Equal(t, "Marqué 4 unidades de Milk como vencidas.", res.Message)
}

func TestExecute_MarkExpiredWithoutStock(t *testing.T) {
	inv := &fakeInventory{markExpired: func(core.MarkExpiredInput) (*core.StockChangeResult, error) {
		return nil, core.ErrNoStock
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, MarkExpired, json.RawMessage(`{"product":"Milk","quantity":2}`))
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "No hay stock")
}

func TestExecute_AdjustStockReportsCap(t *testing.T) {
	inv := &fakeInventory{adjust: func(in core.AdjustStockInput) (*core.StockChangeResult, error) {
		assert.Equal(t, core.ReasonDamage, in.Reason)
		return &core.StockChangeResult{Product: core.Product{Name: "Aceite"}, Requested: -8, Applied: -5}, nil
	}}
	c := newTestCatalog(t, Services{Inventory: inv})

	res := c.Execute(context.Background(), store, AdjustStock,
		json.RawMessage(`{"product":"Aceite","quantityDelta":-8,"reason":"DAMAGE"}`))
	require.True(t, res.OK)
	assert.Contains(t, res.Message, "Solo había 5 unidades")
}

func TestExecute_SalesRangeDateOnlyEndIsInclusive(t *testing.T) {
	santiago, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	reports := &fakeReports{}
	c := newTestCatalog(t, Services{Reports: reports, Stores: &fakeStores{timezone: "America/Santiago"}})

	res := c.Execute(context.Background(), store, AskMetric,
		json.RawMessage(`{"metric":"sales_range","from":"2024-03-01","to":"2024-03-31"}`))
	require.True(t, res.OK, res.Message)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, santiago).Equal(reports.from), "from=%s", reports.from)
	assert.True(t, time.Date(2024, 4, 1, 0, 0, 0, 0, santiago).Equal(reports.to), "to=%s", reports.to)

	lateSale := time.Date(2024, 3, 31, 22, 0, 0, 0, santiago)
	assert.True(t, lateSale.Before(reports.to))
	earlyUTC := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC) // still Feb 29 in Santiago
	assert.True(t, earlyUTC.Before(reports.from))

	assert.Contains(t, res.Message, "01-03-2024")
	assert.Contains(t, res.Message, "31-03-2024")
	assert.Contains(t, res.Message, "$15.990")
}

func TestExecute_SalesRangeTimestampsAreKept(t *testing.T) {
	reports := &fakeReports{}
	c := newTestCatalog(t, Services{Reports: reports, Stores: &fakeStores{}})

	res := c.Execute(context.Background(), store, AskMetric,
		json.RawMessage(`{"metric":"sales_range","from":"2024-03-01T10:00:00Z","to":"2024-03-01T18:00:00Z"}`))
	require.True(t, res.OK, res.Message)
	assert.Equal(t, time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC), reports.to.UTC())
}

func TestExecute_StockByProductIncludesValuation(t *testing.T) {
	c := newTestCatalog(t, Services{Reports: &fakeReports{}})

	res := c.Execute(context.Background(), store, AskMetric, json.RawMessage(`{"metric":"stock_by_product","product":"Coca"}`))
	require.True(t, res.OK)
	assert.Equal(t, "Quedan 12 unidades de Coca. Costo promedio $1.000, valor en stock $12.000.", res.Message)
}

func TestExecute_GetProductReadsStockOfResolvedProduct(t *testing.T) {
	cola := &core.Product{ID: uuid.New(), StoreID: store, Name: "Coca-Cola 1.5L", SalePriceGross: 1990}
	products := &fakeProducts{resolved: cola}
	c := newTestCatalog(t, Services{Products: products})

	res := c.Execute(context.Background(), store, GetProduct, json.RawMessage(`{"product":"coca"}`))
	require.True(t, res.OK, res.Message)
	assert.Equal(t, []uuid.UUID{cola.ID}, products.stockFor)
	assert.Equal(t, "Coca-Cola 1.5L: precio $1.990, stock disponible 9.", res.Message)
	assert.Equal(t, int64(9), res.Data.(core.ProductStock).Available)
}

func TestExecute_GetProductUnknown(t *testing.T) {
	products := &fakeProducts{}
	c := newTestCatalog(t, Services{Products: products})

	res := c.Execute(context.Background(), store, GetProduct, json.RawMessage(`{"product":"fanta"}`))
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "fanta")
	assert.Empty(t, products.stockFor)
}

func TestExecute_OtherIsAClarifyingFailure(t *testing.T) {
	c := newTestCatalog(t, Services{})
	res := c.Execute(context.Background(), store, Other, nil)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Message)
}

func TestCLP(t *testing.T) {
	assert.Equal(t, "$0", FormatCLP(0))
	assert.Equal(t, "$990", FormatCLP(990))
	assert.Equal(t, "$1.990", FormatCLP(1990))
	assert.Equal(t, "$1.234.567", FormatCLP(1234567))
	assert.Equal(t, "-$5.000", FormatCLP(-5000))
}
