// Package app wires the watcher's dependencies together and runs its
// long-lived loops: the wallet poller, the Telegram bot, the scheduled audit
// export and the operations API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/walletwatch/internal/config"
	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and blocks until ctx is cancelled or one of the
// loops fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting walletwatch",
		slog.String("ledger", a.cfg.Ledger.Driver),
		slog.Bool("trading", a.cfg.Trading.Enabled),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := seedWallets(ctx, deps.Ledger, a.cfg.Watch.Wallets); err != nil {
		return err
	}
	return a.serve(ctx, deps)
}

func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Poller.Run(gctx)
	})
	if deps.Telegram != nil {
		g.Go(func() error {
			return deps.Telegram.Run(gctx)
		})
	}
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.RunCron(gctx, a.cfg.Archive.Cron)
		})
	}
	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Run(gctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seedWallets adds configured wallets to the watch list. Wallets added over
// chat stay; removing one from the config does not unwatch it.
func seedWallets(ctx context.Context, store domain.WalletStore, wallets []string) error {
	for _, w := range wallets {
		if err := store.AddWallet(ctx, w); err != nil {
			return fmt.Errorf("app: seed wallet %s: %w", w, err)
		}
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
