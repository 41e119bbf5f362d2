package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
)

func optionalDate(s string) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalUUID(s string) *uuid.UUID {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &id
}

func (c *Catalog) addStock(ctx context.Context, storeID uuid.UUID, p *AddStockParams) Result {
	res, err := c.svc.Inventory.AddStock(ctx, storeID, core.AddStockInput{
		Product:       p.Product,
		Quantity:      p.Quantity,
		ExpiresAt:     optionalDate(p.ExpiresAt),
		UnitCostGross: p.UnitCostGross,
	})
	if err != nil {
		return c.failure(ctx, AddStock, err)
	}
	msg := fmt.Sprintf("Agregué %s de %s. Stock disponible: %d.", units(p.Quantity), res.Product.Name, res.Available)
	if res.Lot.ExpiresAt != nil {
		msg = fmt.Sprintf("Agregué %s de %s con vencimiento el %s. Stock disponible: %d.",
			units(p.Quantity), res.Product.Name, res.Lot.ExpiresAt.Format("02-01-2006"), res.Available)
	}
	return ok(msg, res)
}

func (c *Catalog) setPrice(ctx context.Context, storeID uuid.UUID, p *SetPriceParams) Result {
	product, err := c.svc.Inventory.SetPrice(ctx, storeID, p.Product, p.SalePriceGross)
	if err != nil {
		return c.failure(ctx, SetPrice, err)
	}
	return ok(fmt.Sprintf("Precio de %s actualizado a %s.", product.Name, FormatCLP(product.SalePriceGross)), product)
}

func (c *Catalog) markExpired(ctx context.Context, storeID uuid.UUID, p *MarkExpiredParams) Result {
	res, err := c.svc.Inventory.MarkExpired(ctx, storeID, core.MarkExpiredInput{Product: p.Product, Quantity: p.Quantity})
	if errors.Is(err, core.ErrNoStock) {
		return fail(fmt.Sprintf("No hay stock disponible de %s para marcar como vencido.", p.Product))
	}
	if err != nil {
		return c.failure(ctx, MarkExpired, err)
	}

	expired := -res.Applied
	if p.Quantity != nil && *p.Quantity > expired {
		return ok(fmt.Sprintf("Solo había %s de %s; marqué %d como vencidas.",
			units(expired), res.Product.Name, expired), res)
	}
	return ok(fmt.Sprintf("Marqué %s de %s como vencidas.", units(expired), res.Product.Name), res)
}

func (c *Catalog) adjustStock(ctx context.Context, storeID uuid.UUID, p *AdjustStockParams) Result {
	res, err := c.svc.Inventory.AdjustStock(ctx, storeID, core.AdjustStockInput{
		Product:       p.Product,
		QuantityDelta: p.QuantityDelta,
		Reason:        core.AdjustmentReason(p.Reason),
		Note:          optionalString(p.Note),
	})
	if errors.Is(err, core.ErrNoStock) {
		return fail(fmt.Sprintf("No hay stock disponible de %s para descontar.", p.Product))
	}
	if err != nil {
		return c.failure(ctx, AdjustStock, err)
	}

	if res.Applied != res.Requested {
		return ok(fmt.Sprintf("Solo había %s de %s; desconté %d. Stock disponible: %d.",
			units(-res.Applied), res.Product.Name, -res.Applied, res.Available), res)
	}
	return ok(fmt.Sprintf("Ajusté el stock de %s en %+d. Stock disponible: %d.",
		res.Product.Name, res.Applied, res.Available), res)
}

func (c *Catalog) createSale(ctx context.Context, storeID uuid.UUID, p *CreateSaleParams) Result {
	in := core.SaleInput{
		PaymentMethod: core.PaymentMethod(p.PaymentMethod),
		CustomerID:    optionalUUID(p.CustomerID),
	}
	for _, item := range p.Items {
		in.Items = append(in.Items, core.SaleLineInput{
			Product:        item.Product,
			Quantity:       item.Quantity,
			UnitPriceGross: item.UnitPriceGross,
		})
	}

	sale, err := c.svc.Inventory.CreateSale(ctx, storeID, in)
	if err != nil {
		return c.failure(ctx, CreateSale, err)
	}

	lines := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, fmt.Sprintf("%d x %s", item.Quantity, item.ProductName))
	}
	return ok(fmt.Sprintf("Venta registrada: %s. Total %s.", strings.Join(lines, ", "), FormatCLP(sale.TotalGross)), sale)
}

func (c *Catalog) createPurchase(ctx context.Context, storeID uuid.UUID, p *CreatePurchaseParams) Result {
	in := core.PurchaseInput{
		SupplierID: optionalUUID(p.SupplierID),
		Notes:      optionalString(p.Notes),
	}
	for _, item := range p.Items {
		in.Items = append(in.Items, core.PurchaseLineInput{
			Product:       item.Product,
			Quantity:      item.Quantity,
			UnitCostGross: item.UnitCostGross,
			ExpiresAt:     optionalDate(item.ExpiresAt),
		})
	}

	purchase, err := c.svc.Inventory.CreatePurchase(ctx, storeID, in)
	if err != nil {
		return c.failure(ctx, CreatePurchase, err)
	}

	var total int64
	for _, item := range purchase.Items {
		total += item.Quantity
	}
	msg := fmt.Sprintf("Compra registrada: %d líneas, %s.", len(purchase.Items), units(total))
	if len(purchase.Items) == 1 {
		msg = fmt.Sprintf("Compra registrada: %s de %s.", units(total), purchase.Items[0].ProductName)
	}
	if purchase.TotalGross > 0 {
		msg = strings.TrimSuffix(msg, ".") + fmt.Sprintf(". Total %s.", FormatCLP(purchase.TotalGross))
	}
	return ok(msg, purchase)
}

func (c *Catalog) listStockLots(ctx context.Context, storeID uuid.UUID, p *ProductRefParams) Result {
	product, lots, err := c.svc.Reports.StockLots(ctx, storeID, p.Product)
	if err != nil {
		return c.failure(ctx, ListStockLots, err)
	}
	if len(lots) == 0 {
		return ok(fmt.Sprintf("%s no tiene lotes con stock.", product.Name), map[string]any{"product": product, "lots": lots})
	}

	parts := make([]string, 0, len(lots))
	for _, l := range lots {
		part := units(l.Available())
		if l.ExpiresAt != nil {
			part += " vence " + l.ExpiresAt.Format("02-01-2006")
		}
		parts = append(parts, part)
	}
	return ok(fmt.Sprintf("%s tiene %d lotes: %s.", product.Name, len(lots), strings.Join(parts, "; ")),
		map[string]any{"product": product, "lots": lots})
}
