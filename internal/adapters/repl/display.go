package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"minimarket-copilot/internal/actions"
	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/voice"
)

func printResponse(out io.Writer, r voice.Response) {
	switch r.Type {
	case voice.DecisionClarification:
		fmt.Fprintf(out, "\n[%s]: %s\n", responseLabel(r.Type), r.Question)
	case voice.DecisionAction:
		status := "FALLÓ"
		if r.OK != nil && *r.OK {
			status = "OK"
		}
		fmt.Fprintf(out, "\n[%s %s] %s\n", responseLabel(r.Type), r.Action, status)
		if len(r.Parameters) > 0 && string(r.Parameters) != "{}" {
			fmt.Fprintf(out, "  params: %s\n", compactJSON(r.Parameters))
		}
		for _, s := range r.Steps {
			fmt.Fprintf(out, "  - %s\n", s)
		}
		if r.Message != "" {
			fmt.Fprintf(out, "  %s\n", r.Message)
		}
	default:
		if r.Message == "" {
			fmt.Fprintln(out, "\n(no se escuchó nada)")
			return
		}
		fmt.Fprintf(out, "\n[%s]: %s\n", responseLabel(r.Type), r.Message)
	}
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func printProducts(out io.Writer, result *app.ProductListResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  %-70s\n", "PRODUCTOS")
	fmt.Fprintln(out, strings.Repeat("=", 72))
	if len(result.Products) == 0 {
		fmt.Fprintln(out, "  No se encontraron productos.")
		fmt.Fprintln(out, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(out, "  %-34s %-8s %12s %12s\n", "NOMBRE", "UNIDAD", "PRECIO", "DISPONIBLE")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, p := range result.Products {
		name := p.Name
		if len(name) > 34 {
			name = name[:31] + "..."
		}
		fmt.Fprintf(out, "  %-34s %-8s %12s %12d\n", name, p.Unit, actions.FormatCLP(p.SalePriceGross), p.Available)
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
}

func printStockSummary(out io.Writer, result *app.StockSummaryResult) {
	fmt.Fprintf(out, "\nProductos con stock: %d  |  Unidades disponibles: %d\n", result.Products, result.Units)
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  <texto>                   run a voice turn from typed text")
	fmt.Fprintln(out, "  /products [search] [n]    list products with available stock")
	fmt.Fprintln(out, "  /stock                    store-wide stock totals")
	fmt.Fprintln(out, "  /new                      start a new conversation session")
	fmt.Fprintln(out, "  /session                  show the current session id")
	fmt.Fprintln(out, "  /exit                     quit")
}
