// Package sqlite implements the walletwatch ledger in a single SQLite file,
// for deployments without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Ledger implements domain.Ledger on SQLite.
type Ledger struct {
	db *sql.DB
}

var _ domain.Ledger = (*Ledger)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS app_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS watched_wallets (
		wallet   TEXT PRIMARY KEY,
		added_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observed_trades (
		tx_hash       TEXT PRIMARY KEY,
		wallet        TEXT NOT NULL,
		ts            INTEGER NOT NULL,
		condition_id  TEXT NOT NULL,
		side          TEXT NOT NULL,
		price         REAL NOT NULL,
		size          REAL NOT NULL,
		usdc_size     REAL NOT NULL,
		outcome       TEXT,
		outcome_index INTEGER,
		asset         TEXT,
		slug          TEXT,
		title         TEXT,
		raw_json      TEXT NOT NULL,
		category      TEXT,
		notified      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS market_meta (
		condition_id TEXT PRIMARY KEY,
		meta_json    TEXT NOT NULL,
		updated_at   INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS actions (
		id          TEXT PRIMARY KEY,
		tx_hash     TEXT NOT NULL,
		action      TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		result_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at)`,
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory ledger.
func Open(path string) (*Ledger, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// ── State ──

func (l *Ledger) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: get state %s: %w", key, err)
	}
	return v, nil
}

func (l *Ledger) SetState(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO app_state(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: set state %s: %w", key, err)
	}
	return nil
}

// ── Wallets ──

func (l *Ledger) AddWallet(ctx context.Context, addr string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watched_wallets(wallet, added_at) VALUES(?, ?)`,
		domain.NormalizeWallet(addr), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: add wallet: %w", err)
	}
	return nil
}

func (l *Ledger) RemoveWallet(ctx context.Context, addr string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM watched_wallets WHERE wallet = ?`, domain.NormalizeWallet(addr)); err != nil {
		return fmt.Errorf("sqlite: remove wallet: %w", err)
	}
	return nil
}

func (l *Ledger) ListWallets(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT wallet FROM watched_wallets ORDER BY added_at, wallet`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list wallets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("sqlite: scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ── Trades ──

func (l *Ledger) HasTrade(ctx context.Context, txHash string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, `SELECT 1 FROM observed_trades WHERE tx_hash = ?`, txHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: has trade %s: %w", txHash, err)
	}
	return true, nil
}

func (l *Ledger) InsertTrade(ctx context.Context, ev domain.TradeEvent, category string) (bool, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("sqlite: marshal trade: %w", err)
	}
	var outcomeIdx sql.NullInt64
	if ev.OutcomeIndex != nil {
		outcomeIdx = sql.NullInt64{Int64: int64(*ev.OutcomeIndex), Valid: true}
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO observed_trades(
			tx_hash, wallet, ts, condition_id, side, price, size, usdc_size,
			outcome, outcome_index, asset, slug, title, raw_json, category, notified
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		ev.TxHash, domain.NormalizeWallet(ev.Wallet), ev.Timestamp, ev.ConditionID,
		string(ev.Side), ev.Price, ev.Size, ev.USDCSize,
		nullString(ev.Outcome), outcomeIdx, nullString(ev.Asset),
		nullString(ev.Slug), nullString(ev.Title), string(raw), nullString(category),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: insert trade %s: %w", ev.TxHash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: insert trade %s: %w", ev.TxHash, err)
	}
	return n == 1, nil
}

func (l *Ledger) MarkNotified(ctx context.Context, txHash string) error {
	res, err := l.db.ExecContext(ctx, `UPDATE observed_trades SET notified = 1 WHERE tx_hash = ?`, txHash)
	if err != nil {
		return fmt.Errorf("sqlite: mark notified %s: %w", txHash, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: mark notified %s: %w", txHash, domain.ErrNotFound)
	}
	return nil
}

func (l *Ledger) GetTrade(ctx context.Context, txHash string) (domain.ObservedTrade, error) {
	var (
		raw      string
		category sql.NullString
		notified int
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT raw_json, category, notified FROM observed_trades WHERE tx_hash = ?`, txHash,
	).Scan(&raw, &category, &notified)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ObservedTrade{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ObservedTrade{}, fmt.Errorf("sqlite: get trade %s: %w", txHash, err)
	}

	out := domain.ObservedTrade{
		Category: category.String,
		Notified: notified != 0,
		RawJSON:  []byte(raw),
	}
	if err := json.Unmarshal([]byte(raw), &out.Event); err != nil {
		return out, fmt.Errorf("sqlite: trade %s: %w: %v", txHash, domain.ErrBadPayload, err)
	}
	return out, nil
}

// ── Market metadata ──

func (l *Ledger) GetMeta(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	var raw string
	err := l.db.QueryRowContext(ctx, `SELECT meta_json FROM market_meta WHERE condition_id = ?`, conditionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MarketMeta{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MarketMeta{}, fmt.Errorf("sqlite: get meta %s: %w", conditionID, err)
	}
	var m domain.MarketMeta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.MarketMeta{}, fmt.Errorf("sqlite: meta %s: %w: %v", conditionID, domain.ErrBadPayload, err)
	}
	return m, nil
}

func (l *Ledger) PutMeta(ctx context.Context, meta domain.MarketMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sqlite: marshal meta: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO market_meta(condition_id, meta_json, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET meta_json = excluded.meta_json, updated_at = excluded.updated_at`,
		meta.ConditionID, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: put meta %s: %w", meta.ConditionID, err)
	}
	return nil
}

// ── Actions ──

// AppendAction stores a with millisecond precision on CreatedAt.
func (l *Ledger) AppendAction(ctx context.Context, a domain.MirrorAction) error {
	var result sql.NullString
	if len(a.Result) > 0 {
		result = sql.NullString{String: string(a.Result), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO actions(id, tx_hash, action, created_at, result_json) VALUES(?, ?, ?, ?, ?)`,
		a.ID, a.TxHash, string(a.Kind), a.CreatedAt.UnixMilli(), result)
	if err != nil {
		return fmt.Errorf("sqlite: append action %s: %w", a.ID, err)
	}
	return nil
}

// ListActionsSince returns actions created strictly after since, oldest
// first. limit <= 0 means no limit.
func (l *Ledger) ListActionsSince(ctx context.Context, since time.Time, limit int) ([]domain.MirrorAction, error) {
	var q strings.Builder
	q.WriteString(`SELECT id, tx_hash, action, created_at, result_json FROM actions WHERE created_at > ? ORDER BY created_at, id`)
	args := []any{since.UnixMilli()}
	if limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list actions: %w", err)
	}
	defer rows.Close()

	var out []domain.MirrorAction
	for rows.Next() {
		var (
			a      domain.MirrorAction
			kind   string
			ms     int64
			result sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.TxHash, &kind, &ms, &result); err != nil {
			return nil, fmt.Errorf("sqlite: scan action: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		a.CreatedAt = time.UnixMilli(ms).UTC()
		if result.Valid {
			a.Result = json.RawMessage(result.String)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
