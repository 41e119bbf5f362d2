package actions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"minimarket-copilot/internal/core"
)

// FormatCLP renders whole currency units with dot thousands separators: 1990 -> "$1.990".
func FormatCLP(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

func units(n int64) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d unidad", n)
	}
	return fmt.Sprintf("%d unidades", n)
}

func ok(message string, data any) Result {
	return Result{OK: true, Message: message, Data: data}
}

func fail(message string) Result {
	return Result{OK: false, Message: message}
}

// failure turns a service error into a user-facing result. Lookup misses and
// stock shortfalls get specific messages; anything else is logged and reported
// generically.
func (c *Catalog) failure(ctx context.Context, action Name, err error) Result {
	var notFound *core.ProductNotFoundError
	var insufficient *core.InsufficientStockError
	switch {
	case errors.As(err, &notFound):
		return fail(fmt.Sprintf("No encontré el producto \"%s\".", notFound.Query))
	case errors.As(err, &insufficient):
		return Result{
			OK: false,
			Message: fmt.Sprintf("Stock insuficiente para %s: disponible %d, solicitado %d.",
				insufficient.ProductName, insufficient.Available, insufficient.Requested),
			Data: map[string]any{
				"product":   insufficient.ProductName,
				"available": insufficient.Available,
				"requested": insufficient.Requested,
			},
		}
	case errors.Is(err, core.ErrProductNotFound):
		return fail("No encontré ese producto en tu tienda.")
	case errors.Is(err, core.ErrSupplierNotFound):
		return fail("No encontré ese proveedor en tu tienda.")
	case errors.Is(err, core.ErrCustomerNotFound):
		return fail("No encontré ese cliente en tu tienda.")
	case errors.Is(err, core.ErrAmountTooLarge):
		return fail("El monto total es demasiado grande. Revisa precios y cantidades.")
	case errors.Is(err, core.ErrBarcodeTaken):
		return fail("Ese código de barras ya está registrado en otro producto.")
	}
	c.log.Error(c.log.WithField(ctx, "action", string(action)), "action execution failed", err)
	return fail("No pude completar la acción. Intenta nuevamente.")
}
