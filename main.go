package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-radar/internal/app/middleware"
	"github.com/FACorreiaa/go-radar/internal/pkg/config"
	"github.com/FACorreiaa/go-radar/internal/pkg/logger"
	"github.com/FACorreiaa/go-radar/internal/routes"
	"github.com/FACorreiaa/go-radar/internal/server"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), zap.String("service", "go-radar"), zap.String("version", version)); err != nil {
		return err
	}
	l := logger.Log
	defer func() { _ = l.Sync() }()
	zap.ReplaceGlobals(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := server.InitObservability(cfg, version, l)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			l.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	srv, err := server.New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer srv.Close()

	app, err := routes.SetupDependencies(ctx, cfg, srv.Pool(), l)
	if err != nil {
		return err
	}

	jwtCfg := middleware.JWTConfig{
		SecretKey:       cfg.Auth.JWTSecret,
		TokenExpiration: 24 * time.Hour,
		Logger:          l,
	}
	server.StartPprofServer(cfg.PprofAddr, l)

	if cfg.Backfill.Interval > 0 {
		go app.Backfill.Start(ctx, cfg.Backfill.Interval)
	}

	if err := srv.Serve(ctx, server.SetupRouter(app.Handlers, jwtCfg, l)); err != nil {
		l.Error("Server error", zap.Error(err))
		return err
	}
	l.Info("Graceful shutdown complete")
	return nil
}
