package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/usersvc/internal/db"
	"github.com/nkiryanov/usersvc/internal/executor"
	"github.com/nkiryanov/usersvc/internal/handlers"
	"github.com/nkiryanov/usersvc/internal/logger"
	"github.com/nkiryanov/usersvc/internal/repository"
	"github.com/nkiryanov/usersvc/internal/repository/postgres"
	"github.com/nkiryanov/usersvc/internal/repository/sqlite"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger     logger.Logger
	exec       *executor.Executor
	closeStore func()
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	mode, err := repository.ParseIdentityMode(c.IdentityMode)
	if err != nil {
		return nil, err
	}

	// Connect to the database, run migrations and initialize repository
	repo, closeStore, err := openStore(ctx, c.DatabaseDSN, c.DatabaseMaxConns, mode)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	exec := executor.New(executor.Config{Workers: c.Workers, QueueSize: c.QueueSize}, logger)

	mux := handlers.NewRouter(
		handlers.RouterConfig{RateLimit: c.RateLimit, RateBurst: c.RateBurst},
		repo,
		exec,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     logger,
		exec:       exec,
		closeStore: closeStore,
	}, nil
}

// openStore picks repository backend by DSN scheme
func openStore(ctx context.Context, dsn string, maxConns int, mode repository.IdentityMode) (repository.UserRepo, func(), error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := db.ConnectAndMigratePostgres(ctx, dsn, maxConns)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepo(pool, mode), pool.Close, nil

	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, nil, errors.New("sqlite DSN must contain file path")
		}
		sqlDB, err := db.OpenSQLite(ctx, path, maxConns)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepo(sqlDB, mode), func() { _ = sqlDB.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database DSN scheme, expected postgres:// or sqlite://")
	}
}

// Run starts http server and closes gracefully on context cancellation.
// Server stops first, then executor drains accepted work, then database is closed
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.closeStore()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Listen and serve until context is cancelled
	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err != nil {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...", "error", err)
		}
		s.logger.Info("HTTP server stopped")

		if err := s.exec.Close(timeoutCtx); err != nil {
			s.logger.Error("Executor did not drain in time", "error", err)
		}

		return nil
	})

	return g.Wait()
}
