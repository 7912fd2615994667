// Command nfigd is the NFig server: it loads a Backend per the
// NFIG_BACKEND environment variable, exposes it over httpapi's admin HTTP
// surface with pubsub's websocket push feed, and serves until a
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/getnfig/nfig/bootstrap"
	"github.com/getnfig/nfig/httpapi"
	"github.com/getnfig/nfig/pubsub"
	"github.com/getnfig/nfig/store"
	"github.com/getnfig/nfig/tier"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "nfigd:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := bootstrap.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := bootstrap.SetupLogger(cfg)
	logger.Info("nfigd: starting", "backend", cfg.Backend, "tier", cfg.Tier, "dataCenter", cfg.DataCenter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := bootstrap.OpenBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}

	s := store.New(be, store.Options{
		Tier:       tier.Tier(cfg.Tier),
		DataCenter: tier.DataCenter(cfg.DataCenter),
		Logger:     logger,
		OnBackgroundError: func(err error) {
			logger.Error("nfigd: background error", "error", err)
		},
	})
	defer s.Close()

	mgr := pubsub.NewManager(s, logger)

	router := httpapi.New(s, mgr, httpapi.Options{
		AdminSecret:    []byte(cfg.AdminSecret),
		AdminUser:      cfg.AdminUser,
		AdminPassword:  cfg.AdminPassword,
		TokenTTL:       12 * time.Hour,
		AllowedOrigins: cfg.Origins(),
		Logger:         logger,
	})

	return bootstrap.Run(ctx, cfg, router, logger)
}
