package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration: defaults, then the TOML file at path (if
// path is non-empty), then a .env file if present, then environment
// overrides. The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	normalize(&cfg)

	return &cfg, nil
}

// applyEnvOverrides applies the legacy variable names first and the
// WALLETWATCH_* names second, so the namespaced form wins when both are set.
func applyEnvOverrides(cfg *Config) {
	applyLegacyEnv(cfg)

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "WALLETWATCH_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "WALLETWATCH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "WALLETWATCH_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.FunderAddress, "WALLETWATCH_WALLET_FUNDER_ADDRESS")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "WALLETWATCH_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "WALLETWATCH_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "WALLETWATCH_POLYMARKET_DATA_HOST")
	setInt(&cfg.Polymarket.ChainID, "WALLETWATCH_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "WALLETWATCH_POLYMARKET_SIGNATURE_TYPE")
	setDuration(&cfg.Polymarket.RequestTimeout, "WALLETWATCH_POLYMARKET_REQUEST_TIMEOUT")
	setFloat64(&cfg.Polymarket.RequestsPerSecond, "WALLETWATCH_POLYMARKET_REQUESTS_PER_SECOND")

	// ── API ──
	setStr(&cfg.API.Key, "WALLETWATCH_API_KEY")
	setStr(&cfg.API.Secret, "WALLETWATCH_API_SECRET")
	setStr(&cfg.API.Passphrase, "WALLETWATCH_API_PASSPHRASE")

	// ── Watch ──
	setStringSlice(&cfg.Watch.Wallets, "WALLETWATCH_WATCH_WALLETS")
	setDuration(&cfg.Watch.PollInterval, "WALLETWATCH_WATCH_POLL_INTERVAL")
	setInt(&cfg.Watch.PageSize, "WALLETWATCH_WATCH_PAGE_SIZE")

	// ── Filter ──
	setFloat64(&cfg.Filter.MinUSDC, "WALLETWATCH_FILTER_MIN_USDC")
	setStringSlice(&cfg.Filter.Categories, "WALLETWATCH_FILTER_CATEGORIES")
	setStringSlice(&cfg.Filter.Keywords, "WALLETWATCH_FILTER_KEYWORDS")
	setStringSlice(&cfg.Filter.CopySides, "WALLETWATCH_FILTER_COPY_SIDES")

	// ── Trading ──
	setBool(&cfg.Trading.Enabled, "WALLETWATCH_TRADING_ENABLED")
	setFloat64(&cfg.Trading.CopyUSDC, "WALLETWATCH_TRADING_COPY_USDC")
	setFloat64(&cfg.Trading.MaxUSDCPerTrade, "WALLETWATCH_TRADING_MAX_USDC_PER_TRADE")
	setInt(&cfg.Trading.SlippageTicks, "WALLETWATCH_TRADING_SLIPPAGE_TICKS")

	// ── Ledger ──
	setStr(&cfg.Ledger.Driver, "WALLETWATCH_LEDGER_DRIVER")
	setStr(&cfg.Ledger.SQLitePath, "WALLETWATCH_LEDGER_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WALLETWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WALLETWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WALLETWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WALLETWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WALLETWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WALLETWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WALLETWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WALLETWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WALLETWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WALLETWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "WALLETWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "WALLETWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WALLETWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WALLETWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WALLETWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WALLETWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WALLETWATCH_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.MetaTTL, "WALLETWATCH_REDIS_META_TTL")
	setStr(&cfg.Redis.KeyPrefix, "WALLETWATCH_REDIS_KEY_PREFIX")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WALLETWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WALLETWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "WALLETWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WALLETWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WALLETWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WALLETWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WALLETWATCH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WALLETWATCH_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "WALLETWATCH_ARCHIVE_CRON")
	setStr(&cfg.Archive.Prefix, "WALLETWATCH_ARCHIVE_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WALLETWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WALLETWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WALLETWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WALLETWATCH_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WALLETWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WALLETWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "WALLETWATCH_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "WALLETWATCH_LOG_LEVEL")
}

// applyLegacyEnv accepts the variable names of existing .env files.
func applyLegacyEnv(cfg *Config) {
	setStringSlice(&cfg.Watch.Wallets, "WATCH_WALLETS")
	setMillis(&cfg.Watch.PollInterval, "POLL_INTERVAL_MS")
	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "FUNDER_ADDRESS")
	setStr(&cfg.API.Key, "API_KEY")
	setStr(&cfg.API.Secret, "SECRET")
	setStr(&cfg.API.Passphrase, "PASSPHRASE")
	setFloat64(&cfg.Filter.MinUSDC, "MIN_USDC_SIZE")
	setStringSlice(&cfg.Filter.Categories, "FILTER_CATEGORIES")
	setStringSlice(&cfg.Filter.Keywords, "FILTER_KEYWORDS")
	setStringSlice(&cfg.Filter.CopySides, "COPY_SIDES")
	setFloat64(&cfg.Trading.CopyUSDC, "COPY_USDC")
	setFloat64(&cfg.Trading.MaxUSDCPerTrade, "MAX_USDC_PER_TRADE")
	setInt(&cfg.Trading.SlippageTicks, "COPY_SLIPPAGE_TICKS")
	setBool(&cfg.Trading.Enabled, "TRADING_ENABLED")
	setStr(&cfg.Ledger.SQLitePath, "SQLITE_PATH")
	setInt(&cfg.Polymarket.ChainID, "CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ClobHost, "CLOB_HOST")
}

// normalize lowercases wallets and filter terms and uppercases copy sides.
func normalize(cfg *Config) {
	cfg.Ledger.Driver = strings.ToLower(strings.TrimSpace(cfg.Ledger.Driver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Watch.Wallets = mapNonEmpty(cfg.Watch.Wallets, strings.ToLower)
	cfg.Filter.Categories = mapNonEmpty(cfg.Filter.Categories, strings.ToLower)
	cfg.Filter.Keywords = mapNonEmpty(cfg.Filter.Keywords, strings.ToLower)
	cfg.Filter.CopySides = mapNonEmpty(cfg.Filter.CopySides, strings.ToUpper)
	cfg.Wallet.FunderAddress = strings.ToLower(strings.TrimSpace(cfg.Wallet.FunderAddress))
}

func mapNonEmpty(in []string, f func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = f(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the variable is
// present, non-empty and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

// setBool also accepts yes/y/on and no/n/off.
func setBool(dst *bool, key string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
	case "yes", "y", "on":
		*dst = true
	case "no", "n", "off":
		*dst = false
	default:
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			dst.Duration = d
		}
	}
}

func setMillis(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && ms > 0 {
			dst.Duration = time.Duration(ms) * time.Millisecond
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
