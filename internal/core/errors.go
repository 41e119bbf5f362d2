package core

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrSupplierNotFound = errors.New("supplier not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrStoreNotFound    = errors.New("store not found")
	ErrNoStock          = errors.New("no stock available")
	ErrAmountTooLarge   = errors.New("amount exceeds the supported range")
)

// ProductNotFoundError keeps the text the caller searched for so user-facing
// messages can quote it back.
type ProductNotFoundError struct {
	Query string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.Query)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError rejects a sale line whose product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, required %d",
		e.ProductName, e.Available, e.Requested)
}
