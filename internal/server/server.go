package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	database "github.com/FACorreiaa/go-radar/internal/db"
	"github.com/FACorreiaa/go-radar/internal/pkg/config"
)

// Server owns the place store connection and the API listener.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

// New connects to Postgres, waits for it to accept queries and migrates the places schema.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	pool, err := openPlaceStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open place store: %w", err)
	}
	return &Server{cfg: cfg, logger: logger, pool: pool}, nil
}

func openPlaceStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	pg := cfg.Repositories.Postgres
	l := logger.With(zap.String("host", pg.Host), zap.String("port", pg.Port), zap.String("database", pg.DB))

	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.Init(dbConfig, logger)
	if err != nil {
		return nil, err
	}
	if !database.WaitForDB(ctx, pool, logger) {
		pool.Close()
		return nil, fmt.Errorf("database unreachable at %s:%s", pg.Host, pg.Port)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate places schema: %w", err)
	}
	l.Info("Place store ready")
	return pool, nil
}

// Pool is shared by the places and discover repositories and the backfill runner.
func (s *Server) Pool() *pgxpool.Pool {
	return s.pool
}

// Serve answers requests with handler until ctx is cancelled, then drains in-flight
// requests. It returns nil after a clean drain.
func (s *Server) Serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// URL imports fan out to the metadata fetcher and the places provider.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  time.Minute,
	}

	done := make(chan struct{})
	go GracefulShutdown(ctx, srv, s.logger, done)

	s.logger.Info("Server starting", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	<-done
	return nil
}

func (s *Server) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
