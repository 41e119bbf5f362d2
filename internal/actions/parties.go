package actions

import (
	"context"
	"fmt"
	"strings"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
)

func (c *Catalog) createSupplier(ctx context.Context, storeID uuid.UUID, p *CreateSupplierParams) Result {
	s, err := c.svc.Parties.CreateSupplier(ctx, storeID, core.SupplierInput{
		Name:  p.Name,
		TaxID: optionalString(p.TaxID),
		Phone: optionalString(p.Phone),
		Email: optionalString(p.Email),
	})
	if err != nil {
		return c.failure(ctx, CreateSupplier, err)
	}
	return ok(fmt.Sprintf("Registré al proveedor %s.", s.Name), s)
}

func (c *Catalog) listSuppliers(ctx context.Context, storeID uuid.UUID, p *ListParams) Result {
	list, err := c.svc.Parties.ListSuppliers(ctx, storeID, p.Search)
	if err != nil {
		return c.failure(ctx, ListSuppliers, err)
	}
	if len(list) == 0 {
		return ok("No tienes proveedores registrados.", list)
	}
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	return ok(fmt.Sprintf("Tienes %d proveedores: %s.", len(list), strings.Join(names, ", ")), list)
}

func (c *Catalog) createCustomer(ctx context.Context, storeID uuid.UUID, p *CreateCustomerParams) Result {
	cu, err := c.svc.Parties.CreateCustomer(ctx, storeID, core.CustomerInput{
		Name:  p.Name,
		Phone: optionalString(p.Phone),
		Email: optionalString(p.Email),
	})
	if err != nil {
		return c.failure(ctx, CreateCustomer, err)
	}
	return ok(fmt.Sprintf("Registré al cliente %s.", cu.Name), cu)
}

func (c *Catalog) listCustomers(ctx context.Context, storeID uuid.UUID, p *ListParams) Result {
	list, err := c.svc.Parties.ListCustomers(ctx, storeID, p.Search)
	if err != nil {
		return c.failure(ctx, ListCustomers, err)
	}
	if len(list) == 0 {
		return ok("No tienes clientes registrados.", list)
	}
	names := make([]string, 0, len(list))
	for _, cu := range list {
		names = append(names, cu.Name)
	}
	return ok(fmt.Sprintf("Tienes %d clientes: %s.", len(list), strings.Join(names, ", ")), list)
}

func (c *Catalog) createProductAlert(ctx context.Context, storeID uuid.UUID, p *CreateProductAlertParams) Result {
	product, err := c.svc.Products.Resolve(ctx, storeID, p.Product)
	if err != nil {
		return c.failure(ctx, CreateProductAlert, err)
	}
	alert, err := c.svc.Stores.CreateAlert(ctx, storeID, core.AlertInput{
		ProductID: product.ID,
		Kind:      core.AlertKind(p.Kind),
		Threshold: p.Threshold,
	})
	if err != nil {
		return c.failure(ctx, CreateProductAlert, err)
	}
	if alert.Kind == core.AlertExpiry {
		return ok(fmt.Sprintf("Te avisaré cuando %s esté a %d días de vencer.", product.Name, alert.Threshold), alert)
	}
	return ok(fmt.Sprintf("Te avisaré cuando el stock de %s baje de %d.", product.Name, alert.Threshold), alert)
}

func (c *Catalog) listProductAlerts(ctx context.Context, storeID uuid.UUID, p *ListProductAlertsParams) Result {
	alerts, err := c.svc.Stores.ListAlerts(ctx, storeID, p.ActiveOnly)
	if err != nil {
		return c.failure(ctx, ListProductAlerts, err)
	}
	if len(alerts) == 0 {
		return ok("No tienes alertas configuradas.", alerts)
	}
	parts := make([]string, 0, len(alerts))
	for _, a := range alerts {
		parts = append(parts, fmt.Sprintf("%s (%s %d)", a.ProductName, strings.ToLower(string(a.Kind)), a.Threshold))
	}
	return ok(fmt.Sprintf("Tienes %d alertas: %s.", len(alerts), strings.Join(parts, ", ")), alerts)
}

func (c *Catalog) other(_ context.Context, _ uuid.UUID, _ *OtherParams) Result {
	return fail("No entendí qué acción quieres realizar. ¿Puedes decirlo de otra forma?")
}
