package actions

// Parameter structs double as the JSON Schema the model sees (jsonschema tags)
// and the validation rules applied before any executor runs (validate tags).
// Dates accept RFC3339 or YYYY-MM-DD.

const MaxBatch = 50

// Amounts are capped at 1e9 and quantities at 1e6 so line totals stay well inside int64.

type AddStockParams struct {
	Product       string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	Quantity      int64  `json:"quantity" validate:"gt=0,max=1000000" jsonschema:"minimum=1,maximum=1000000"`
	ExpiresAt     string `json:"expiresAt,omitempty" validate:"omitempty,isodate" jsonschema:"description=Expiry date (YYYY-MM-DD or RFC3339)"`
	UnitCostGross *int64 `json:"unitCostGross,omitempty" validate:"omitempty,gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000"`
}

type SetPriceParams struct {
	Product        string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	SalePriceGross int64  `json:"salePriceGross" validate:"gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000,description=New gross sale price in whole currency units"`
}

type MarkExpiredParams struct {
	Product  string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	Quantity *int64 `json:"quantity,omitempty" validate:"omitempty,gt=0" jsonschema:"minimum=1,description=Units to expire; omit to expire all available stock"`
}

type AdjustStockParams struct {
	Product       string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	QuantityDelta int64  `json:"quantityDelta" validate:"ne=0" jsonschema:"description=Signed change: positive adds stock and negative removes it"`
	Reason        string `json:"reason" validate:"required,oneof=COUNT_CORRECTION DAMAGE EXPIRED THEFT TRANSFER_OUT TRANSFER_IN OTHER" jsonschema:"enum=COUNT_CORRECTION,enum=DAMAGE,enum=EXPIRED,enum=THEFT,enum=TRANSFER_OUT,enum=TRANSFER_IN,enum=OTHER"`
	Note          string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type AskMetricParams struct {
	Metric  string `json:"metric" validate:"required,oneof=stock_total stock_by_product sales_today sales_range expiring_soon" jsonschema:"enum=stock_total,enum=stock_by_product,enum=sales_today,enum=sales_range,enum=expiring_soon"`
	Product string `json:"product,omitempty" validate:"required_if=Metric stock_by_product" jsonschema:"description=Required for stock_by_product"`
	From    string `json:"from,omitempty" validate:"required_if=Metric sales_range,omitempty,isodate" jsonschema:"description=Required for sales_range (inclusive)"`
	To      string `json:"to,omitempty" validate:"required_if=Metric sales_range,omitempty,isodate" jsonschema:"description=Required for sales_range (exclusive when a datetime and inclusive when a date)"`
}

type SaleItemParams struct {
	Product        string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	Quantity       int64  `json:"quantity" validate:"gt=0,max=1000000" jsonschema:"minimum=1,maximum=1000000"`
	UnitPriceGross *int64 `json:"unitPriceGross,omitempty" validate:"omitempty,gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000,description=Overrides the catalog price"`
}

type CreateSaleParams struct {
	Items         []SaleItemParams `json:"items" validate:"required,min=1,max=50,dive" jsonschema:"minItems=1,maxItems=50"`
	PaymentMethod string           `json:"paymentMethod,omitempty" validate:"omitempty,oneof=CASH DEBIT CREDIT TRANSFER OTHER" jsonschema:"enum=CASH,enum=DEBIT,enum=CREDIT,enum=TRANSFER,enum=OTHER"`
	CustomerID    string           `json:"customerId,omitempty" validate:"omitempty,uuid"`
}

type PurchaseItemParams struct {
	Product       string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	Quantity      int64  `json:"quantity" validate:"gt=0,max=1000000" jsonschema:"minimum=1,maximum=1000000"`
	UnitCostGross *int64 `json:"unitCostGross,omitempty" validate:"omitempty,gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000"`
	ExpiresAt     string `json:"expiresAt,omitempty" validate:"omitempty,isodate"`
}

type CreatePurchaseParams struct {
	Items      []PurchaseItemParams `json:"items" validate:"required,min=1,max=50,dive" jsonschema:"minItems=1,maxItems=50"`
	SupplierID string               `json:"supplierId,omitempty" validate:"omitempty,uuid"`
	Notes      string               `json:"notes,omitempty" validate:"omitempty,max=500"`
}

type ProductParams struct {
	Name                 string   `json:"name" validate:"required,max=200"`
	Brand                string   `json:"brand,omitempty" validate:"omitempty,max=100"`
	Category             string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Unit                 string   `json:"unit,omitempty" validate:"omitempty,oneof=UNIT GRAM KILOGRAM MILLILITER LITER" jsonschema:"enum=UNIT,enum=GRAM,enum=KILOGRAM,enum=MILLILITER,enum=LITER"`
	SalePriceGross       int64    `json:"salePriceGross,omitempty" validate:"gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000"`
	IsPerishable         bool     `json:"isPerishable,omitempty"`
	DefaultShelfLifeDays *int     `json:"defaultShelfLifeDays,omitempty" validate:"omitempty,gt=0" jsonschema:"minimum=1"`
	Barcodes             []string `json:"barcodes,omitempty" validate:"omitempty,max=10,dive,required,max=64"`
}

type CreateManyProductsParams struct {
	Products []ProductParams `json:"products" validate:"required,min=1,max=50,dive" jsonschema:"minItems=1,maxItems=50"`
}

type UpdateProductParams struct {
	Product              string   `json:"product" validate:"required" jsonschema:"description=Current product name or barcode"`
	Name                 *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Brand                *string  `json:"brand,omitempty" validate:"omitempty,max=100"`
	Category             *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Unit                 *string  `json:"unit,omitempty" validate:"omitempty,oneof=UNIT GRAM KILOGRAM MILLILITER LITER" jsonschema:"enum=UNIT,enum=GRAM,enum=KILOGRAM,enum=MILLILITER,enum=LITER"`
	SalePriceGross       *int64   `json:"salePriceGross,omitempty" validate:"omitempty,gte=0,max=1000000000" jsonschema:"minimum=0,maximum=1000000000"`
	IsPerishable         *bool    `json:"isPerishable,omitempty"`
	DefaultShelfLifeDays *int     `json:"defaultShelfLifeDays,omitempty" validate:"omitempty,gt=0" jsonschema:"minimum=1"`
	AddBarcodes          []string `json:"addBarcodes,omitempty" validate:"omitempty,max=10,dive,required,max=64"`
}

type DeleteManyProductsParams struct {
	Products []string `json:"products" validate:"required,min=1,max=50,dive,required" jsonschema:"minItems=1,maxItems=50,description=Product names or barcodes to remove from the store"`
}

type ProductRefParams struct {
	Product string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
}

type ListParams struct {
	Search string `json:"search,omitempty" validate:"omitempty,max=100"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100" jsonschema:"minimum=1,maximum=100"`
}

type CreateSupplierParams struct {
	Name  string `json:"name" validate:"required,max=200"`
	TaxID string `json:"taxId,omitempty" validate:"omitempty,max=20"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type CreateCustomerParams struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

type CreateProductAlertParams struct {
	Product   string `json:"product" validate:"required" jsonschema:"description=Product name or barcode"`
	Kind      string `json:"kind" validate:"required,oneof=LOW_STOCK EXPIRY" jsonschema:"enum=LOW_STOCK,enum=EXPIRY"`
	Threshold int    `json:"threshold" validate:"gte=0" jsonschema:"minimum=0,description=Units for LOW_STOCK or days before expiry for EXPIRY"`
}

type ListProductAlertsParams struct {
	ActiveOnly bool `json:"activeOnly,omitempty"`
}

type OtherParams struct {
	Reason string `json:"reason,omitempty"`
}
