// seed-demo creates a demo store with one member and a small stocked catalog,
// so the console and the HTTP API can be tried against a fresh database.
//
// Usage: go run ./cmd/seed-demo -user <uuid>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"minimarket-copilot/internal/config"
	"minimarket-copilot/internal/core"
	"minimarket-copilot/internal/db"
	"minimarket-copilot/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

type seedProduct struct {
	in       core.ProductInput
	quantity int64
	shelf    time.Duration
}

func intPtr(v int) *int { return &v }

var demoCatalog = []seedProduct{
	{in: core.ProductInput{Name: "Coca-Cola 1.5L", SalePriceGross: 1990, Barcodes: []string{"7801610001196"}}, quantity: 24},
	{in: core.ProductInput{Name: "Pan Hallulla", Unit: core.UnitKilogram, SalePriceGross: 2400, IsPerishable: true, DefaultShelfLifeDays: intPtr(2)}, quantity: 10},
	{in: core.ProductInput{Name: "Leche Entera 1L", SalePriceGross: 1190, IsPerishable: true}, quantity: 18, shelf: 10 * 24 * time.Hour},
	{in: core.ProductInput{Name: "Arroz Grado 1 1kg", SalePriceGross: 1590}, quantity: 12},
}

func main() {
	_ = godotenv.Load()
	userFlag := flag.String("user", "", "user id to add as store owner (random if empty)")
	name := flag.String("name", "Minimarket Demo", "store name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{ServiceName: "seed-demo", Format: "console"})
	ctx := context.Background()

	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			fmt.Fprintln(os.Stderr, "-user must be a valid id")
			os.Exit(2)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		os.Exit(1)
	}
	defer pool.Close()

	var storeID uuid.UUID
	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO stores (name, timezone, currency) VALUES ($1, 'America/Santiago', 'CLP') RETURNING id`,
			*name).Scan(&storeID); err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO store_members (store_id, user_id, role) VALUES ($1, $2, 'OWNER')`,
			storeID, userID); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	ctx = logg.WithStoreID(ctx, storeID.String())

	resolver := core.NewProductResolver()
	products := core.NewProductService(pool, resolver)
	inventory := core.NewInventoryService(pool, core.NewStockLedger(), resolver)

	for _, sp := range demoCatalog {
		p, err := products.CreateProduct(ctx, storeID, sp.in)
		if err != nil {
			logg.Error(ctx, "failed to create product "+sp.in.Name, err)
			os.Exit(1)
		}
		in := core.AddStockInput{Product: p.Name, Quantity: sp.quantity}
		if sp.shelf > 0 {
			exp := time.Now().Add(sp.shelf)
			in.ExpiresAt = &exp
		}
		if _, err := inventory.AddStock(ctx, storeID, in); err != nil {
			logg.Error(ctx, "failed to stock product "+sp.in.Name, err)
			os.Exit(1)
		}
	}

	logg.Info(logg.WithField(ctx, "products", len(demoCatalog)), "demo store seeded")
	fmt.Printf("COPILOT_CONSOLE_STORE_ID=%s\nCOPILOT_CONSOLE_USER_ID=%s\n", storeID, userID)
}
