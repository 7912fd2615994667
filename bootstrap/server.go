package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getnfig/nfig/backend"
	"github.com/getnfig/nfig/backend/filebackend"
	"github.com/getnfig/nfig/backend/memory"
	"github.com/getnfig/nfig/backend/sqlbackend"
)

// OpenBackend constructs the backend.Backend cfg.Backend selects.
func OpenBackend(cfg *Config, logger *slog.Logger) (backend.Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendFile:
		fb, err := filebackend.New(cfg.FileDir, filebackend.Options{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: opening file backend: %w", err)
		}
		return fb, nil
	case BackendSQL:
		switch cfg.SQLDriver {
		case "postgres":
			return sqlbackend.OpenPostgres(cfg.SQLDSN, logger)
		case "sqlite":
			return sqlbackend.OpenSQLite(cfg.SQLDSN, logger)
		default:
			return nil, fmt.Errorf("bootstrap: unknown NFIG_SQL_DRIVER %q", cfg.SQLDriver)
		}
	default:
		return nil, fmt.Errorf("bootstrap: unknown NFIG_BACKEND %q", cfg.Backend)
	}
}

// Run serves handler on cfg.ListenAddr until ctx is canceled or a
// SIGINT/SIGTERM arrives, then drains in-flight requests with a 10-second
// shutdown timeout.
func Run(ctx context.Context, cfg *Config, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "nfigd: starting HTTP server", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "nfigd: server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.InfoContext(ctx, "nfigd: received shutdown signal")
	case <-ctx.Done():
		logger.InfoContext(ctx, "nfigd: context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "nfigd: server forced to shutdown", "error", err)
		return err
	}

	logger.InfoContext(shutdownCtx, "nfigd: server stopped gracefully")
	return nil
}
