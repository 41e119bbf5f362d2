package actions

// Name identifies one catalog operation. The set is closed: the model can only
// reach the executors listed here.
type Name string

const (
	AddStock           Name = "add_stock"
	SetPrice           Name = "set_price"
	MarkExpired        Name = "mark_expired"
	AdjustStock        Name = "adjust_stock"
	AskMetric          Name = "ask_metric"
	CreateSale         Name = "create_sale"
	CreatePurchase     Name = "create_purchase"
	CreateProduct      Name = "create_product"
	CreateManyProducts Name = "create_many_products"
	UpdateProduct      Name = "update_product"
	DeleteManyProducts Name = "delete_many_products"
	GetProduct         Name = "get_product"
	ListProducts       Name = "list_products"
	ListStockLots      Name = "list_stock_lots"
	CreateSupplier     Name = "create_supplier"
	ListSuppliers      Name = "list_suppliers"
	CreateCustomer     Name = "create_customer"
	ListCustomers      Name = "list_customers"
	CreateProductAlert Name = "create_product_alert"
	ListProductAlerts  Name = "list_product_alerts"
	Other              Name = "other"
)

var allNames = []Name{
	AddStock, SetPrice, MarkExpired, AdjustStock, AskMetric,
	CreateSale, CreatePurchase,
	CreateProduct, CreateManyProducts, UpdateProduct, DeleteManyProducts, GetProduct, ListProducts,
	ListStockLots,
	CreateSupplier, ListSuppliers, CreateCustomer, ListCustomers,
	CreateProductAlert, ListProductAlerts,
	Other,
}

// AllNames returns every catalog name in a stable order.
func AllNames() []Name {
	return append([]Name(nil), allNames...)
}

// ParseName maps model output onto the closed set. Anything unknown becomes Other.
func ParseName(s string) (Name, bool) {
	for _, n := range allNames {
		if string(n) == s {
			return n, true
		}
	}
	return Other, false
}

// Mutates reports whether the action writes store data.
func (n Name) Mutates() bool {
	switch n {
	case AskMetric, GetProduct, ListProducts, ListStockLots, ListSuppliers, ListCustomers, ListProductAlerts, Other:
		return false
	}
	return true
}
