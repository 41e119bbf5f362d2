package core

import (
	"time"

	"github.com/google/uuid"
)

type Unit string

const (
	UnitUnit       Unit = "UNIT"
	UnitGram       Unit = "GRAM"
	UnitKilogram   Unit = "KILOGRAM"
	UnitMilliliter Unit = "MILLILITER"
	UnitLiter      Unit = "LITER"
)

type LotSource string

const (
	LotSourceManual     LotSource = "MANUAL"
	LotSourcePurchase   LotSource = "PURCHASE"
	LotSourceAdjustment LotSource = "ADJUSTMENT"
)

type AdjustmentReason string

const (
	ReasonCountCorrection AdjustmentReason = "COUNT_CORRECTION"
	ReasonDamage          AdjustmentReason = "DAMAGE"
	ReasonExpired         AdjustmentReason = "EXPIRED"
	ReasonTheft           AdjustmentReason = "THEFT"
	ReasonTransferOut     AdjustmentReason = "TRANSFER_OUT"
	ReasonTransferIn      AdjustmentReason = "TRANSFER_IN"
	ReasonOther           AdjustmentReason = "OTHER"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentDebit    PaymentMethod = "DEBIT"
	PaymentCredit   PaymentMethod = "CREDIT"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentOther    PaymentMethod = "OTHER"
)

type AlertKind string

const (
	AlertLowStock AlertKind = "LOW_STOCK"
	AlertExpiry   AlertKind = "EXPIRY"
)

// Reference types recorded on stock_allocations rows.
const (
	RefSaleItem   = "SALE_ITEM"
	RefAdjustment = "INVENTORY_ADJUSTMENT"
	RefExpiry     = "EXPIRY"
)

// Store is the tenant boundary.
type Store struct {
	ID        uuid.UUID
	Name      string
	TaxID     *string
	Timezone  string
	Currency  string
	CreatedAt time.Time
}

// Location returns the store's time zone, falling back to UTC when unknown.
func (s Store) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Product struct {
	ID                   uuid.UUID  `json:"id"`
	StoreID              uuid.UUID  `json:"storeId"`
	Name                 string     `json:"name"`
	Brand                *string    `json:"brand,omitempty"`
	Category             *string    `json:"category,omitempty"`
	Unit                 Unit       `json:"unit"`
	SalePriceGross       int64      `json:"salePriceGross"`
	IsPerishable         bool       `json:"isPerishable"`
	DefaultShelfLifeDays *int       `json:"defaultShelfLifeDays,omitempty"`
	Barcodes             []string   `json:"barcodes,omitempty"`
	ArchivedAt           *time.Time `json:"archivedAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// StockLot is an append-only batch of incoming stock. Only QuantityOut ever changes.
type StockLot struct {
	ID            uuid.UUID  `json:"id"`
	StoreID       uuid.UUID  `json:"storeId"`
	ProductID     uuid.UUID  `json:"productId"`
	Source        LotSource  `json:"source"`
	QuantityIn    int64      `json:"quantityIn"`
	QuantityOut   int64      `json:"quantityOut"`
	UnitCostGross *int64     `json:"unitCostGross,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	PurchaseID    *uuid.UUID `json:"purchaseId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (l StockLot) Available() int64 {
	return l.QuantityIn - l.QuantityOut
}

// Allocation is the quantity taken from one lot by a consumption event.
type Allocation struct {
	LotID    uuid.UUID `json:"lotId"`
	Quantity int64     `json:"quantity"`
}

type InventoryAdjustment struct {
	ID            uuid.UUID        `json:"id"`
	StoreID       uuid.UUID        `json:"storeId"`
	ProductID     uuid.UUID        `json:"productId"`
	Reason        AdjustmentReason `json:"reason"`
	QuantityDelta int64            `json:"quantityDelta"`
	Note          *string          `json:"note,omitempty"`
	OccurredAt    time.Time        `json:"occurredAt"`
}

type Sale struct {
	ID            uuid.UUID     `json:"id"`
	StoreID       uuid.UUID     `json:"storeId"`
	CustomerID    *uuid.UUID    `json:"customerId,omitempty"`
	TotalGross    int64         `json:"totalGross"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Channel       string        `json:"channel"`
	OccurredAt    time.Time     `json:"occurredAt"`
	Items         []SaleItem    `json:"items"`
}

type SaleItem struct {
	ID             uuid.UUID    `json:"id"`
	SaleID         uuid.UUID    `json:"saleId"`
	ProductID      uuid.UUID    `json:"productId"`
	ProductName    string       `json:"productName"`
	Quantity       int64        `json:"quantity"`
	UnitPriceGross int64        `json:"unitPriceGross"`
	LineTotalGross int64        `json:"lineTotalGross"`
	Lots           []Allocation `json:"lots"`
}

type Purchase struct {
	ID         uuid.UUID      `json:"id"`
	StoreID    uuid.UUID      `json:"storeId"`
	SupplierID *uuid.UUID     `json:"supplierId,omitempty"`
	Notes      *string        `json:"notes,omitempty"`
	TotalGross int64          `json:"totalGross"`
	OccurredAt time.Time      `json:"occurredAt"`
	Items      []PurchaseItem `json:"items"`
}

type PurchaseItem struct {
	ID            uuid.UUID `json:"id"`
	PurchaseID    uuid.UUID `json:"purchaseId"`
	ProductID     uuid.UUID `json:"productId"`
	ProductName   string    `json:"productName"`
	Quantity      int64     `json:"quantity"`
	UnitCostGross *int64    `json:"unitCostGross,omitempty"`
	LotID         uuid.UUID `json:"lotId"`
}

type Supplier struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"storeId"`
	Name      string    `json:"name"`
	TaxID     *string   `json:"taxId,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Customer struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"storeId"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ProductAlert struct {
	ID          uuid.UUID `json:"id"`
	StoreID     uuid.UUID `json:"storeId"`
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Kind        AlertKind `json:"kind"`
	Threshold   int       `json:"threshold"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}
