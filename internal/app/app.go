// Package app assembles the execution core: store, market data, venue
// gateway, managers, risk monitor and the HTTP server, and runs the
// background loops under one errgroup.
package app

import (
	"context"
	"fmt"

	"tradecore/internal/config"
	"tradecore/internal/config/loader"
	"tradecore/internal/logger"
	"tradecore/internal/order"
	"tradecore/internal/risk"
	"tradecore/internal/store"
	tradehttp "tradecore/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *config.Config
	store    store.Store
	policies *loader.PolicyLoader
	orders   *order.Manager
	monitor  *risk.Monitor
	httpSrv  *tradehttp.Server
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg)
}

// Run starts the HTTP server and the three loops (status monitor,
// reconciliation, risk monitor) and blocks until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	if err := a.monitor.Restore(ctx); err != nil {
		return fmt.Errorf("restore risk state: %w", err)
	}
	if err := a.policies.Watch(); err != nil {
		logger.Warnf("risk policy hot reload disabled: %v", err)
	}
	defer a.policies.Close()
	defer a.store.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.orders.RunStatusMonitor(ctx)
		return nil
	})
	group.Go(func() error {
		a.orders.RunReconciliation(ctx)
		return nil
	})
	group.Go(func() error {
		a.monitor.Run(ctx)
		return nil
	})

	logger.Infof("tradecore running: venue=%s http=%s store=%s",
		a.cfg.Venue.Name, a.cfg.App.HTTPAddr, a.cfg.Store.Path)
	return group.Wait()
}
