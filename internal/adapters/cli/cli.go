package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"minimarket-copilot/internal/app"
)

// Run executes a one-shot command and writes JSON to out.
// args are the positional arguments; the first is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, store app.StoreRequest, locale string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\nAvailable: say, products, stock")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	switch args[0] {
	case "say", "s":
		if len(args) < 2 {
			return fmt.Errorf("usage: app say \"<utterance>\"")
		}
		result, err := svc.HandleVoiceText(ctx, app.VoiceTextRequest{
			StoreRequest: store,
			Locale:       locale,
			Device:       "cli",
			Text:         strings.Join(args[1:], " "),
		})
		if err != nil {
			return fmt.Errorf("turn failed: %w", err)
		}
		return enc.Encode(result)

	case "products", "prod", "p":
		result, err := svc.ListProducts(ctx, app.ProductListRequest{
			StoreRequest: store,
			Search:       strings.Join(args[1:], " "),
		})
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		return enc.Encode(result)

	case "stock":
		result, err := svc.GetStockSummary(ctx, store)
		if err != nil {
			return fmt.Errorf("failed to get stock: %w", err)
		}
		return enc.Encode(result)

	default:
		return fmt.Errorf("unknown command: %s\nAvailable: say, products, stock", args[0])
	}
}
