package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/platform/polymarket"
)

const (
	defaultPageSize     = 100
	defaultPollInterval = 15 * time.Second
)

// ActivityFetcher returns a page of a wallet's trade activity.
type ActivityFetcher interface {
	UserActivity(ctx context.Context, q polymarket.ActivityQuery) ([]domain.TradeEvent, error)
}

// MetaResolver resolves market metadata; absent results are not errors.
type MetaResolver interface {
	Resolve(ctx context.Context, conditionID string) (domain.MarketMeta, bool)
}

// TradeFilter decides whether a trade is worth an alert.
type TradeFilter interface {
	Matches(ev domain.TradeEvent, category string) bool
}

// TradeNotifier delivers a trade alert. meta is nil when unresolved.
type TradeNotifier interface {
	NotifyTrade(ctx context.Context, ev domain.TradeEvent, meta *domain.MarketMeta) error
}

// PollLocker hands out per-wallet leases. Acquire returns
// domain.ErrLockHeld when another process holds the lease.
type PollLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// PollerStore is the slice of the ledger the poller touches.
type PollerStore interface {
	domain.StateStore
	domain.TradeStore
	ListWallets(ctx context.Context) ([]string, error)
}

// WalletPollerConfig tunes the polling loop.
type WalletPollerConfig struct {
	PageSize     int
	PollInterval time.Duration
}

// PollStats summarises one PollWallet call.
type PollStats struct {
	Fetched  int
	Rejected int
	Seen     int
	Filtered int
	Stored   int
	Notified int
	Cursor   int64
}

// WalletPoller walks each watched wallet's activity from its cursor,
// records new matching trades and sends one alert per trade.
type WalletPoller struct {
	fetcher  ActivityFetcher
	store    PollerStore
	resolver MetaResolver
	filter   TradeFilter
	notifier TradeNotifier
	locker   PollLocker
	trigger  chan struct{}
	cfg      WalletPollerConfig
	logger   *slog.Logger
}

// NewWalletPoller creates a WalletPoller.
func NewWalletPoller(
	fetcher ActivityFetcher,
	store PollerStore,
	resolver MetaResolver,
	filter TradeFilter,
	notifier TradeNotifier,
	cfg WalletPollerConfig,
	logger *slog.Logger,
) *WalletPoller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &WalletPoller{
		fetcher:  fetcher,
		store:    store,
		resolver: resolver,
		filter:   filter,
		notifier: notifier,
		trigger:  make(chan struct{}, 1),
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "wallet_poller")),
	}
}

// WithLocker makes the poller take a lease per wallet before polling it, so
// that replicas sharing one ledger split the work instead of racing.
func (p *WalletPoller) WithLocker(l PollLocker) *WalletPoller {
	p.locker = l
	return p
}

// Trigger asks Run to start the next cycle without waiting for the poll
// interval. It never blocks; a pending trigger absorbs further calls.
func (p *WalletPoller) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run polls every watched wallet in turn, then sleeps, until ctx is done.
// A wallet already being polled when ctx is cancelled is finished first.
func (p *WalletPoller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "wallet poller started",
		slog.Duration("interval", p.cfg.PollInterval),
		slog.Int("page_size", p.cfg.PageSize),
	)

	for {
		p.pollAll(ctx)

		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "wallet poller stopped")
			return nil
		case <-time.After(p.cfg.PollInterval):
		case <-p.trigger:
			p.logger.DebugContext(ctx, "poll cycle triggered")
		}
	}
}

func (p *WalletPoller) pollAll(ctx context.Context) {
	wallets, err := p.store.ListWallets(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "list wallets failed", slog.String("error", err.Error()))
		return
	}

	work := context.WithoutCancel(ctx)
	for _, w := range wallets {
		if ctx.Err() != nil {
			return
		}
		stats, err := p.pollLeased(work, w)
		if errors.Is(err, domain.ErrLockHeld) {
			p.logger.DebugContext(ctx, "wallet leased elsewhere, skipping", slog.String("wallet", w))
			continue
		}
		if err != nil {
			p.logger.WarnContext(ctx, "poll wallet failed",
				slog.String("wallet", w),
				slog.String("error", err.Error()),
			)
			continue
		}
		if stats.Stored > 0 {
			p.logger.InfoContext(ctx, "new trades recorded",
				slog.String("wallet", w),
				slog.Int("stored", stats.Stored),
				slog.Int("notified", stats.Notified),
				slog.Int64("cursor", stats.Cursor),
			)
		}
	}
}

func (p *WalletPoller) pollLeased(ctx context.Context, wallet string) (PollStats, error) {
	if p.locker == nil {
		return p.PollWallet(ctx, wallet)
	}
	release, err := p.locker.Acquire(ctx, "poll:"+domain.NormalizeWallet(wallet), p.leaseTTL())
	if err != nil {
		return PollStats{}, err
	}
	defer release()
	return p.PollWallet(ctx, wallet)
}

// leaseTTL bounds a lease left behind by a crashed holder.
func (p *WalletPoller) leaseTTL() time.Duration {
	return max(2*p.cfg.PollInterval, time.Minute)
}

// PollWallet processes one page of wallet activity newer than its cursor.
func (p *WalletPoller) PollWallet(ctx context.Context, wallet string) (PollStats, error) {
	wallet = domain.NormalizeWallet(wallet)
	var stats PollStats

	lastTs, err := p.readCursor(ctx, wallet)
	if err != nil {
		return stats, err
	}
	stats.Cursor = lastTs

	q := polymarket.ActivityQuery{User: wallet, Limit: p.cfg.PageSize}
	if lastTs > 0 {
		q.Start = lastTs + 1
	}
	events, err := p.fetcher.UserActivity(ctx, q)
	if err != nil {
		return stats, fmt.Errorf("pipeline: fetch activity: %w", err)
	}
	stats.Fetched = len(events)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	maxTs := lastTs
	for _, ev := range events {
		if ev.Timestamp > maxTs {
			maxTs = ev.Timestamp
		}
		if !ev.IsGenuineFill() {
			stats.Rejected++
			continue
		}
		if ev.Wallet == "" {
			ev.Wallet = wallet
		}

		seen, err := p.store.HasTrade(ctx, ev.TxHash)
		if err != nil {
			return stats, fmt.Errorf("pipeline: check trade %s: %w", ev.TxHash, err)
		}
		if seen {
			stats.Seen++
			continue
		}

		var metaPtr *domain.MarketMeta
		category := ""
		if meta, ok := p.resolver.Resolve(ctx, ev.ConditionID); ok {
			metaPtr = &meta
			category = meta.Category
		}

		if !p.filter.Matches(ev, category) {
			stats.Filtered++
			continue
		}

		inserted, err := p.store.InsertTrade(ctx, ev, category)
		if err != nil {
			return stats, fmt.Errorf("pipeline: insert trade %s: %w", ev.TxHash, err)
		}
		if !inserted {
			stats.Seen++
			continue
		}
		stats.Stored++

		if err := p.notifier.NotifyTrade(ctx, ev, metaPtr); err != nil {
			p.logger.DebugContext(ctx, "trade notification failed",
				slog.String("tx_hash", ev.TxHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := p.store.MarkNotified(ctx, ev.TxHash); err != nil {
			p.logger.WarnContext(ctx, "mark notified failed",
				slog.String("tx_hash", ev.TxHash),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.Notified++
	}

	if maxTs > lastTs {
		if err := p.writeCursor(ctx, wallet, maxTs); err != nil {
			return stats, err
		}
		stats.Cursor = maxTs
	}
	return stats, nil
}

func (p *WalletPoller) readCursor(ctx context.Context, wallet string) (int64, error) {
	raw, err := p.store.GetState(ctx, domain.CursorKey(wallet))
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("pipeline: read cursor: %w", err)
	}

	var c domain.WatchCursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		p.logger.WarnContext(ctx, "unreadable cursor, restarting from zero",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return 0, nil
	}
	return c.LastTs, nil
}

func (p *WalletPoller) writeCursor(ctx context.Context, wallet string, ts int64) error {
	b, err := json.Marshal(domain.WatchCursor{LastTs: ts})
	if err != nil {
		return fmt.Errorf("pipeline: encode cursor: %w", err)
	}
	if err := p.store.SetState(ctx, domain.CursorKey(wallet), string(b)); err != nil {
		return fmt.Errorf("pipeline: write cursor: %w", err)
	}
	return nil
}
