package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/etale-systems/tracehub/internal/api"
	"github.com/etale-systems/tracehub/internal/apikey"
	"github.com/etale-systems/tracehub/internal/config"
	"github.com/etale-systems/tracehub/internal/identity"
	"github.com/etale-systems/tracehub/internal/mail"
	"github.com/etale-systems/tracehub/internal/server"
	"github.com/etale-systems/tracehub/internal/storage/sqlite"
	"github.com/etale-systems/tracehub/internal/telemetry"
	"github.com/etale-systems/tracehub/internal/trace"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("tracehub", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Session.Secret == "" {
		log.Fatal("session.secret must be configured (TRACEHUB_SESSION__SECRET)")
	}

	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	keys := apikey.NewService(store, logger)
	traces := trace.NewService(store, logger)
	resolver := identity.NewResolver(store, logger)
	mailer := mail.NewSMTPMailer(cfg.SMTP, cfg.Contact.Recipient)

	srv := server.New(cfg.Server.Port, cfg.Server.AllowedOrigins, logger)

	handler := api.NewHandler(logger, keys, traces, resolver, mailer, cfg.Session.Secret)
	handler.Routes(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
