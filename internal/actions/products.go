package actions

import (
	"context"
	"fmt"
	"strings"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
)

// ItemOutcome is the per-item report of a batch action.
type ItemOutcome struct {
	Item    string `json:"item"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	ID      string `json:"id,omitempty"`
}

func productInput(p ProductParams) core.ProductInput {
	return core.ProductInput{
		Name:                 p.Name,
		Brand:                optionalString(p.Brand),
		Category:             optionalString(p.Category),
		Unit:                 core.Unit(p.Unit),
		SalePriceGross:       p.SalePriceGross,
		IsPerishable:         p.IsPerishable,
		DefaultShelfLifeDays: p.DefaultShelfLifeDays,
		Barcodes:             p.Barcodes,
	}
}

func (c *Catalog) createProduct(ctx context.Context, storeID uuid.UUID, p *ProductParams) Result {
	product, err := c.svc.Products.CreateProduct(ctx, storeID, productInput(*p))
	if err != nil {
		return c.failure(ctx, CreateProduct, err)
	}
	return ok(fmt.Sprintf("Creé el producto %s con precio %s.", product.Name, FormatCLP(product.SalePriceGross)), product)
}

func (c *Catalog) createManyProducts(ctx context.Context, storeID uuid.UUID, p *CreateManyProductsParams) Result {
	outcomes := make([]ItemOutcome, 0, len(p.Products))
	var failed []string
	for _, item := range p.Products {
		product, err := c.svc.Products.CreateProduct(ctx, storeID, productInput(item))
		if err != nil {
			msg := c.failure(ctx, CreateManyProducts, err).Message
			outcomes = append(outcomes, ItemOutcome{Item: item.Name, OK: false, Message: msg})
			failed = append(failed, item.Name)
			continue
		}
		outcomes = append(outcomes, ItemOutcome{Item: item.Name, OK: true, ID: product.ID.String()})
	}
	return batchResult("Creé", outcomes, failed)
}

func (c *Catalog) updateProduct(ctx context.Context, storeID uuid.UUID, p *UpdateProductParams) Result {
	current, err := c.svc.Products.Resolve(ctx, storeID, p.Product)
	if err != nil {
		return c.failure(ctx, UpdateProduct, err)
	}
	patch := core.ProductPatch{
		Name:                 p.Name,
		Brand:                p.Brand,
		Category:             p.Category,
		SalePriceGross:       p.SalePriceGross,
		IsPerishable:         p.IsPerishable,
		DefaultShelfLifeDays: p.DefaultShelfLifeDays,
		AddBarcodes:          p.AddBarcodes,
	}
	if p.Unit != nil {
		u := core.Unit(*p.Unit)
		patch.Unit = &u
	}
	updated, err := c.svc.Products.UpdateProduct(ctx, storeID, current.ID, patch)
	if err != nil {
		return c.failure(ctx, UpdateProduct, err)
	}
	return ok(fmt.Sprintf("Actualicé el producto %s.", updated.Name), updated)
}

func (c *Catalog) deleteManyProducts(ctx context.Context, storeID uuid.UUID, p *DeleteManyProductsParams) Result {
	outcomes := make([]ItemOutcome, 0, len(p.Products))
	var failed []string
	for _, ref := range p.Products {
		product, err := c.svc.Products.Resolve(ctx, storeID, ref)
		if err == nil {
			err = c.svc.Products.ArchiveProduct(ctx, storeID, product.ID)
		}
		if err != nil {
			msg := c.failure(ctx, DeleteManyProducts, err).Message
			outcomes = append(outcomes, ItemOutcome{Item: ref, OK: false, Message: msg})
			failed = append(failed, ref)
			continue
		}
		outcomes = append(outcomes, ItemOutcome{Item: product.Name, OK: true, ID: product.ID.String()})
	}
	return batchResult("Eliminé", outcomes, failed)
}

// batchResult is OK when at least one item succeeded; failures are listed by name.
func batchResult(verb string, outcomes []ItemOutcome, failed []string) Result {
	done := len(outcomes) - len(failed)
	msg := fmt.Sprintf("%s %d de %d productos.", verb, done, len(outcomes))
	if len(failed) > 0 {
		msg += " Fallaron: " + strings.Join(failed, ", ") + "."
	}
	return Result{OK: done > 0, Message: msg, Data: outcomes}
}

func (c *Catalog) getProduct(ctx context.Context, storeID uuid.UUID, p *ProductRefParams) Result {
	found, err := c.svc.Products.Resolve(ctx, storeID, p.Product)
	if err != nil {
		return c.failure(ctx, GetProduct, err)
	}
	ps, err := c.svc.Products.GetProductStock(ctx, storeID, found.ID)
	if err != nil {
		return c.failure(ctx, GetProduct, err)
	}
	return ok(fmt.Sprintf("%s: precio %s, stock disponible %d.", ps.Name, FormatCLP(ps.SalePriceGross), ps.Available), *ps)
}

func (c *Catalog) listProducts(ctx context.Context, storeID uuid.UUID, p *ListParams) Result {
	products, err := c.svc.Products.ListProducts(ctx, storeID, core.ProductFilter{Search: p.Search, Limit: p.Limit})
	if err != nil {
		return c.failure(ctx, ListProducts, err)
	}
	if len(products) == 0 {
		return ok("No encontré productos.", products)
	}
	names := make([]string, 0, len(products))
	for _, ps := range products {
		names = append(names, fmt.Sprintf("%s (%d)", ps.Name, ps.Available))
	}
	return ok(fmt.Sprintf("Encontré %d productos: %s.", len(products), strings.Join(names, ", ")), products)
}
