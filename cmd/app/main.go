package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"minimarket-copilot/internal/adapters/cli"
	"minimarket-copilot/internal/adapters/repl"
	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/config"
	"minimarket-copilot/internal/db"
	"minimarket-copilot/internal/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	_ "time/tzdata"
)

// Usage:
//
//	app -store <uuid> -user <uuid>                    interactive console
//	app -store <uuid> -user <uuid> say "vendí 2 pan"  one-shot turn, JSON output
func main() {
	_ = godotenv.Load()

	storeFlag := flag.String("store", os.Getenv("COPILOT_CONSOLE_STORE_ID"), "store id")
	userFlag := flag.String("user", os.Getenv("COPILOT_CONSOLE_USER_ID"), "acting user id (must be a store member)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	storeID, err := uuid.Parse(*storeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-store must be a valid store id")
		os.Exit(2)
	}
	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-user must be a valid user id")
		os.Exit(2)
	}
	store := app.StoreRequest{StoreID: storeID, UserID: userID}

	// Console output owns stdout; logs go to stderr.
	logg := logger.New(logger.Options{
		ServiceName: "copilot-console",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
		Output:      os.Stderr,
	})
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.OpenAI.APIKey == "" {
		logg.Warn(ctx, "COPILOT_OPENAI_API_KEY is not set")
	}

	svc, err := app.Build(cfg, pool, logg, nil)
	if err != nil {
		logg.Error(ctx, "resource not working: application service", err)
		os.Exit(1)
	}

	if args := flag.Args(); len(args) > 0 {
		if err := cli.Run(ctx, svc, store, cfg.Voice.Locale, args, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			pool.Close()
			os.Exit(1)
		}
		return
	}

	repl.NewConsole(svc, store, cfg.Voice.Locale, os.Stdout).Run(ctx, bufio.NewReader(os.Stdin))
}
