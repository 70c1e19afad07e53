// Package config defines the walletwatch configuration and its validation.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then overridden by environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	API        APIConfig        `toml:"api"`
	Watch      WatchConfig      `toml:"watch"`
	Filter     FilterConfig     `toml:"filter"`
	Trading    TradingConfig    `toml:"trading"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the signing key sources and the funding address.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// FunderAddress is the proxy wallet that holds the funds. Empty means
	// the signer address.
	FunderAddress string `toml:"funder_address"`
}

// PolymarketConfig holds API roots and chain parameters.
type PolymarketConfig struct {
	ClobHost          string   `toml:"clob_host"`
	GammaHost         string   `toml:"gamma_host"`
	DataHost          string   `toml:"data_host"`
	ChainID           int      `toml:"chain_id"`
	SignatureType     int      `toml:"signature_type"`
	RequestTimeout    duration `toml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// APIConfig holds pre-provisioned CLOB L2 credentials.
type APIConfig struct {
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
	Passphrase string `toml:"passphrase"`
}

// Provisioned reports whether all three credentials are set.
func (a APIConfig) Provisioned() bool {
	return a.Key != "" && a.Secret != "" && a.Passphrase != ""
}

// WatchConfig holds the seed wallets and polling cadence.
type WatchConfig struct {
	Wallets      []string `toml:"wallets"`
	PollInterval duration `toml:"poll_interval"`
	PageSize     int      `toml:"page_size"`
}

// FilterConfig holds the alert criteria.
type FilterConfig struct {
	MinUSDC    float64  `toml:"min_usdc"`
	Categories []string `toml:"categories"`
	Keywords   []string `toml:"keywords"`
	CopySides  []string `toml:"copy_sides"`
}

// TradingConfig holds mirror order parameters.
type TradingConfig struct {
	Enabled         bool    `toml:"enabled"`
	CopyUSDC        float64 `toml:"copy_usdc"`
	MaxUSDCPerTrade float64 `toml:"max_usdc_per_trade"`
	SlippageTicks   int     `toml:"slippage_ticks"`
}

// LedgerConfig selects the persistent store.
type LedgerConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional metadata cache connection.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	MetaTTL    duration `toml:"meta_ttl"`
	KeyPrefix  string   `toml:"key_prefix"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig schedules the action log export.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
	Prefix  string `toml:"prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ServerConfig holds the operations HTTP API settings.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
	// APIKey guards every route except the health check. Empty disables
	// authentication.
	APIKey string `toml:"api_key"`
}

// duration wraps time.Duration for TOML string decoding ("15s", "5m").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:          "https://clob.polymarket.com",
			GammaHost:         "https://gamma-api.polymarket.com",
			DataHost:          "https://data-api.polymarket.com",
			ChainID:           137,
			SignatureType:     0,
			RequestTimeout:    duration{12 * time.Second},
			RequestsPerSecond: 5,
		},
		Watch: WatchConfig{
			PollInterval: duration{15 * time.Second},
			PageSize:     100,
		},
		Filter: FilterConfig{
			CopySides: []string{"BUY"},
		},
		Trading: TradingConfig{
			CopyUSDC:        5,
			MaxUSDCPerTrade: 5,
			SlippageTicks:   2,
		},
		Ledger: LedgerConfig{
			Driver:     "sqlite",
			SQLitePath: "./walletwatch.sqlite",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "walletwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   5,
			MaxRetries: 3,
			MetaTTL:    duration{6 * time.Hour},
			KeyPrefix:  "walletwatch:",
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Cron:   "0 3 * * *",
			Prefix: "walletwatch/actions",
		},
		Notify: NotifyConfig{
			Events: []string{EventTrade, EventMirrorExecuted, EventMirrorFailed},
		},
		Server: ServerConfig{
			Port: 8080,
		},
		LogLevel: "info",
	}
}

// Notifier event names.
const (
	EventTrade          = "trade"
	EventMirrorExecuted = "mirror_executed"
	EventMirrorFailed   = "mirror_failed"
)

var validEvents = map[string]bool{
	EventTrade:          true,
	EventMirrorExecuted: true,
	EventMirrorFailed:   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.FunderAddress != "" && !isHexAddress(c.Wallet.FunderAddress) {
		errs = append(errs, fmt.Sprintf("wallet: funder_address %q is not a 0x address", c.Wallet.FunderAddress))
	}

	// Polymarket
	for name, host := range map[string]string{
		"clob_host":  c.Polymarket.ClobHost,
		"gamma_host": c.Polymarket.GammaHost,
		"data_host":  c.Polymarket.DataHost,
	} {
		if !isHTTPURL(host) {
			errs = append(errs, fmt.Sprintf("polymarket: %s must be an http(s) url, got %q", name, host))
		}
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	if c.Polymarket.RequestTimeout.Duration <= 0 {
		errs = append(errs, "polymarket: request_timeout must be positive")
	}
	if c.Polymarket.RequestsPerSecond < 0 {
		errs = append(errs, "polymarket: requests_per_second must be >= 0")
	}

	// API creds go together or not at all.
	ak, as, ap := c.API.Key != "", c.API.Secret != "", c.API.Passphrase != ""
	if (ak || as || ap) && !(ak && as && ap) {
		errs = append(errs, "api: key, secret and passphrase must all be set together")
	}

	// Watch
	for _, w := range c.Watch.Wallets {
		if !isHexAddress(w) {
			errs = append(errs, fmt.Sprintf("watch: wallet %q is not a 0x address", w))
		}
	}
	if c.Watch.PollInterval.Duration <= 0 {
		errs = append(errs, "watch: poll_interval must be positive")
	}
	if c.Watch.PageSize < 1 || c.Watch.PageSize > 500 {
		errs = append(errs, fmt.Sprintf("watch: page_size must be 1-500, got %d", c.Watch.PageSize))
	}

	// Filter
	if c.Filter.MinUSDC < 0 {
		errs = append(errs, "filter: min_usdc must be >= 0")
	}
	for _, s := range c.Filter.CopySides {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "BUY", "SELL":
		default:
			errs = append(errs, fmt.Sprintf("filter: copy_sides entry %q must be BUY or SELL", s))
		}
	}

	// Trading
	if c.Trading.CopyUSDC <= 0 {
		errs = append(errs, "trading: copy_usdc must be > 0")
	}
	if c.Trading.MaxUSDCPerTrade <= 0 {
		errs = append(errs, "trading: max_usdc_per_trade must be > 0")
	}
	if c.Trading.SlippageTicks < 0 {
		errs = append(errs, "trading: slippage_ticks must be >= 0")
	}

	// Ledger
	switch strings.ToLower(c.Ledger.Driver) {
	case "sqlite":
		if c.Ledger.SQLitePath == "" {
			errs = append(errs, "ledger: sqlite_path must not be empty")
		}
	case "postgres":
		errs = append(errs, c.Postgres.validate()...)
	default:
		errs = append(errs, fmt.Sprintf("ledger: unknown driver %q (valid: sqlite, postgres)", c.Ledger.Driver))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.MetaTTL.Duration < 0 {
			errs = append(errs, "redis: meta_ttl must be >= 0")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archive is enabled")
		}
		if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("archive: invalid cron %q: %v", c.Archive.Cron, err))
		}
	}

	// Notify
	if c.Notify.TelegramChatID != "" {
		if _, err := strconv.ParseInt(c.Notify.TelegramChatID, 10, 64); err != nil {
			errs = append(errs, fmt.Sprintf("notify: telegram_chat_id %q is not an integer", c.Notify.TelegramChatID))
		}
	}
	if c.Notify.DiscordWebhookURL != "" && !isHTTPURL(c.Notify.DiscordWebhookURL) {
		errs = append(errs, "notify: discord_webhook_url must be an http(s) url")
	}
	for _, e := range c.Notify.Events {
		if !validEvents[e] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", e))
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (p PostgresConfig) validate() []string {
	var errs []string
	if strings.TrimSpace(p.DSN) == "" {
		if p.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if p.Port <= 0 || p.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", p.Port))
		}
		if p.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if p.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if p.PoolMinConns < 0 || p.PoolMinConns > p.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}
	return errs
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	for _, ch := range s[2:] {
		switch {
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'f', ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
