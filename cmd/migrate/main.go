package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"minimarket-copilot/internal/config"
	"minimarket-copilot/internal/db"
	"minimarket-copilot/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|up-to|down-to")
	target := flag.String("version", "", "target version for up-to and down-to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "copilot-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	var args []string
	switch *cmd {
	case "up", "down", "status", "version", "redo":
	case "up-to", "down-to":
		if *target == "" {
			fmt.Fprintf(os.Stderr, "missing -version for %s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *target)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		logg.Error(ctx, "resource not working: database", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, *cmd, args...); err != nil {
		logg.Error(ctx, "migration failed", err)
		pool.Close()
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}
