package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minimarket-copilot/internal/core"

	"github.com/google/uuid"
)

const (
	expiringWindow = 7 * 24 * time.Hour
	expiringLimit  = 10
)

func (c *Catalog) askMetric(ctx context.Context, storeID uuid.UUID, p *AskMetricParams) Result {
	switch p.Metric {
	case "stock_total":
		t, err := c.svc.Reports.StockTotal(ctx, storeID)
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		return ok(fmt.Sprintf("Tienes %s en stock entre %d productos.", units(t.Units), t.Products), t)

	case "stock_by_product":
		r, err := c.svc.Reports.StockByProduct(ctx, storeID, p.Product)
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		msg := fmt.Sprintf("Quedan %s de %s.", units(r.Available), r.ProductName)
		if r.AverageUnitCost != nil {
			msg += fmt.Sprintf(" Costo promedio %s, valor en stock %s.",
				FormatCLP(r.AverageUnitCost.Round(0).IntPart()), FormatCLP(r.StockValue.Round(0).IntPart()))
		}
		return ok(msg, r)

	case "sales_today":
		s, err := c.svc.Reports.SalesOn(ctx, storeID, c.now())
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		return ok(fmt.Sprintf("Hoy llevas %d ventas por %s.", s.Count, FormatCLP(s.TotalGross)), s)

	case "sales_range":
		st, err := c.svc.Stores.GetStore(ctx, storeID)
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		loc := st.Location()
		from, err := parseDateIn(p.From, loc)
		if err != nil {
			return fail("La fecha de inicio no es válida.")
		}
		to, err := parseDateIn(p.To, loc)
		if err != nil {
			return fail("La fecha de término no es válida.")
		}
		// A plain date as the end means the whole day is included.
		if isDateOnly(p.To) {
			_, to = core.DayBounds(to, loc)
		}
		if !to.After(from) {
			return fail("La fecha de término debe ser posterior a la de inicio.")
		}
		s, err := c.svc.Reports.SalesBetween(ctx, storeID, from, to)
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		return ok(fmt.Sprintf("Entre %s y %s hubo %d ventas por %s.",
			from.In(loc).Format("02-01-2006"), to.Add(-time.Nanosecond).In(loc).Format("02-01-2006"), s.Count, FormatCLP(s.TotalGross)), s)

	case "expiring_soon":
		lots, err := c.svc.Reports.ExpiringSoon(ctx, storeID, c.now(), expiringWindow, expiringLimit)
		if err != nil {
			return c.failure(ctx, AskMetric, err)
		}
		if len(lots) == 0 {
			return ok("No hay productos por vencer en los próximos 7 días.", lots)
		}
		parts := make([]string, 0, len(lots))
		for _, l := range lots {
			parts = append(parts, fmt.Sprintf("%s (%d, vence %s)", l.ProductName, l.Available, l.ExpiresAt.Format("02-01")))
		}
		return ok("Por vencer en los próximos 7 días: "+strings.Join(parts, ", ")+".", lots)
	}
	return fail(fmt.Sprintf("No conozco la métrica %q.", p.Metric))
}
