package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "minimarket-copilot/internal/adapters/web"
	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/config"
	"minimarket-copilot/internal/db"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/metrics"
	"minimarket-copilot/internal/ratelimit"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "time/tzdata"
)

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "copilot-api"})

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "copilot-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)

	pool, err := db.NewPool(ctx, cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer pool.Close()

	if cfg.App.AutoMigrate {
		requireResource(ctx, logg, "migrations", db.Migrate(ctx, pool, "up"))
	}

	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled() {
		counter, err := ratelimit.NewRedisCounter(ctx, cfg.Redis)
		requireResource(ctx, logg, "redis", err)
		defer counter.Close()
		limiter = ratelimit.NewLimiter(counter, cfg.RateLimit)
	} else {
		logg.Warn(ctx, "COPILOT_REDIS_URL not set; voice rate limiting disabled")
	}

	if cfg.OpenAI.APIKey == "" {
		logg.Warn(ctx, "COPILOT_OPENAI_API_KEY is not set")
	}
	if cfg.Auth.JWTSecret == "" && cfg.App.IsProd() {
		logg.Warn(ctx, "COPILOT_JWT_SECRET is not set; trusting X-User-ID header")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	voiceMetrics := metrics.NewVoiceMetrics(reg)

	svc, err := app.Build(cfg, pool, logg, voiceMetrics)
	requireResource(ctx, logg, "application service", err)

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.App.AllowedOrigins,
		Log:            logg,
		Limiter:        limiter,
		Gatherer:       reg,
		JWTSecret:      cfg.Auth.JWTSecret,
		JWTIssuer:      cfg.Auth.JWTIssuer,
		MaxAudioBytes:  cfg.Voice.MaxAudioBytes,
		Ready:          pool.Ping,
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	case <-stop.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	logg.Info(ctx, "server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
