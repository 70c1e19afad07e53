package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/walletwatch/internal/blob/s3"
	"github.com/alanyoungcy/walletwatch/internal/cache/redis"
	"github.com/alanyoungcy/walletwatch/internal/config"
	"github.com/alanyoungcy/walletwatch/internal/crypto"
	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/filter"
	"github.com/alanyoungcy/walletwatch/internal/idgen"
	"github.com/alanyoungcy/walletwatch/internal/metadata"
	"github.com/alanyoungcy/walletwatch/internal/notify"
	"github.com/alanyoungcy/walletwatch/internal/pipeline"
	"github.com/alanyoungcy/walletwatch/internal/platform/polymarket"
	"github.com/alanyoungcy/walletwatch/internal/pricing"
	"github.com/alanyoungcy/walletwatch/internal/server"
	"github.com/alanyoungcy/walletwatch/internal/server/handler"
	"github.com/alanyoungcy/walletwatch/internal/service"
	"github.com/alanyoungcy/walletwatch/internal/store/postgres"
	"github.com/alanyoungcy/walletwatch/internal/store/sqlite"
)

// Dependencies bundles the long-running components built by Wire.
type Dependencies struct {
	Ledger   domain.Ledger
	Poller   *pipeline.WalletPoller
	Notifier *notify.Notifier
	Mirror   *service.MirrorService
	Session  *service.TradingSession

	// Telegram is nil when no bot token is configured.
	Telegram *notify.TelegramChannel
	// Archiver is nil when the action export is disabled.
	Archiver *pipeline.ActionArchiver
	// Server is nil when the operations API is disabled.
	Server *server.Server
}

// Wire constructs every dependency from cfg and returns them with a cleanup
// function that releases resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// ── Ledger ──
	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLedger)
	deps.Ledger = ledger

	// ── Metadata cache ──
	var (
		metaCache domain.MetaCache = metadata.NewStoreCache(ledger)
		locker    pipeline.PollLocker
	)
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		metaCache = redis.NewMetaCache(rc, ledger, cfg.Redis.MetaTTL.Duration, logger)
		locker = redis.NewLockManager(rc)
	}

	// ── Polymarket clients ──
	opts := polymarket.ClientOptions{
		Timeout:           cfg.Polymarket.RequestTimeout.Duration,
		RequestsPerSecond: cfg.Polymarket.RequestsPerSecond,
	}
	signer, err := loadSigner(cfg, logger)
	if err != nil {
		return fail(err)
	}
	dataClient, err := polymarket.NewDataClient(cfg.Polymarket.DataHost, opts)
	if err != nil {
		return fail(fmt.Errorf("wire: data client: %w", err))
	}
	gammaClient, err := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, opts)
	if err != nil {
		return fail(fmt.Errorf("wire: gamma client: %w", err))
	}
	clobClient, err := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, opts)
	if err != nil {
		return fail(fmt.Errorf("wire: clob client: %w", err))
	}

	resolver := metadata.NewResolver(metaCache, gammaClient, logger)
	filt := filter.New(cfg.Filter.MinUSDC, cfg.Filter.Categories, cfg.Filter.Keywords, cfg.Filter.CopySides)

	// ── Trading ──
	deps.Session = service.NewTradingSession(clobClient, signer, service.SessionConfig{
		Enabled: cfg.Trading.Enabled,
		Credentials: crypto.Credentials{
			Key:        cfg.API.Key,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		},
		FunderAddress: cfg.Wallet.FunderAddress,
		SignatureType: cfg.Polymarket.SignatureType,
	}, logger)

	pricer := pricing.New(pricing.Config{
		MaxUSDCPerTrade: decimal.NewFromFloat(cfg.Trading.MaxUSDCPerTrade),
		SlippageTicks:   cfg.Trading.SlippageTicks,
	})

	// ── Notifications ──
	var (
		senders []notify.Sender
		cmds    *notify.Commands
	)
	if cfg.Notify.TelegramToken != "" {
		var chatID int64
		if cfg.Notify.TelegramChatID != "" {
			chatID, _ = strconv.ParseInt(cfg.Notify.TelegramChatID, 10, 64)
		}
		// The mirror is attached below; Commands only calls it on updates,
		// which start flowing in Run.
		cmds = notify.NewCommands(ledger, nil, notify.StatusInfo{
			Criteria:       filt.Criteria(),
			TradingEnabled: cfg.Trading.Enabled,
		}, chatID, logger)
		tg, err := notify.NewTelegramChannel(cfg.Notify.TelegramToken, cmds, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Telegram = tg
		senders = append(senders, tg)
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		logger.WarnContext(ctx, "no notification channel configured; trades will be recorded but not alerted")
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Mirror = service.NewMirrorService(
		ledger, resolver, clobClient, deps.Session, pricer, filt,
		deps.Notifier, idgen.UUID{},
		service.MirrorConfig{CopyUSDC: decimal.NewFromFloat(cfg.Trading.CopyUSDC)},
		logger,
	)
	if cmds != nil {
		cmds.SetMirror(deps.Mirror)
	}

	// ── Watcher ──
	deps.Poller = pipeline.NewWalletPoller(dataClient, ledger, resolver, filt, deps.Notifier,
		pipeline.WalletPollerConfig{
			PageSize:     cfg.Watch.PageSize,
			PollInterval: cfg.Watch.PollInterval.Duration,
		}, logger)
	if locker != nil {
		deps.Poller.WithLocker(locker)
	}

	// ── Audit export ──
	if cfg.Archive.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3c.Health(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket not reachable; exports will retry on schedule",
				slog.String("error", err.Error()))
		}
		deps.Archiver = pipeline.NewActionArchiver(ledger, s3blob.NewWriter(s3c), cfg.Archive.Prefix, logger)
	}

	// ── Operations API ──
	if cfg.Server.Enabled {
		var chatID func() int64
		if cmds != nil {
			chatID = cmds.ChatID
		}
		deps.Server = server.NewServer(server.Config{
			Port:   cfg.Server.Port,
			APIKey: cfg.Server.APIKey,
		}, server.Handlers{
			Health:   handler.NewHealthHandler(ledger, logger),
			Status:   handler.NewStatusHandler(ledger, filt.Criteria(), cfg.Trading.Enabled, chatID, logger),
			Wallets:  handler.NewWalletHandler(ledger, logger),
			Actions:  handler.NewActionHandler(ledger, logger),
			Pipeline: handler.NewPipelineHandler(deps.Poller, logger),
		}, logger)
	}

	return deps, cleanup, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (domain.Ledger, func(), error) {
	switch strings.ToLower(cfg.Ledger.Driver) {
	case "postgres":
		pc, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := pc.RunMigrations(ctx); err != nil {
				pc.Close()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		return postgres.NewLedger(pc.Pool()), pc.Close, nil

	default:
		l, err := sqlite.Open(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		return l, func() { _ = l.Close() }, nil
	}
}

// loadSigner returns nil without error when no key is configured; trading
// then fails per order with domain.ErrNoSigningKey.
func loadSigner(cfg *config.Config, logger *slog.Logger) (*crypto.Signer, error) {
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if errors.Is(err, domain.ErrNoSigningKey) {
		if cfg.Trading.Enabled {
			logger.Warn("trading is enabled but no signing key is configured")
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wire: signing key: %w", err)
	}

	signer, err := crypto.NewSigner(keyHex, int64(cfg.Polymarket.ChainID))
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	logger.Info("signing key loaded", slog.String("address", signer.Address().Hex()))
	return signer, nil
}
