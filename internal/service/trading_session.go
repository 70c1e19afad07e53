// Package service holds the mirror-trading services: the authenticated CLOB
// session and the operator-driven mirror flow.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/crypto"
	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/platform/polymarket"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// usdcDecimals is the fixed-point precision of both collateral and
// conditional-token amounts on the exchange.
const usdcDecimals = 6

// ClobAPI is the subset of the CLOB client used by the trading session.
type ClobAPI interface {
	DeriveAPIKey(ctx context.Context) (crypto.Credentials, error)
	CreateAPIKey(ctx context.Context) (crypto.Credentials, error)
	PostOrder(ctx context.Context, creds crypto.Credentials, order polymarket.SignedOrder, orderType domain.OrderType) (domain.OrderResult, error)
}

// SessionConfig configures a TradingSession.
type SessionConfig struct {
	Enabled bool
	// Credentials are pre-provisioned L2 credentials; when incomplete they
	// are derived from the signing key on first use.
	Credentials   crypto.Credentials
	FunderAddress string
	SignatureType int
}

// TradingSession owns the authenticated CLOB session. Credentials are
// resolved once per process and reused; a failed resolution is retried on
// the next call.
type TradingSession struct {
	clob   ClobAPI
	signer *crypto.Signer
	cfg    SessionConfig
	logger *slog.Logger

	mu    sync.Mutex
	creds *crypto.Credentials
}

// NewTradingSession creates a TradingSession. signer is nil when no signing
// key is configured.
func NewTradingSession(clob ClobAPI, signer *crypto.Signer, cfg SessionConfig, logger *slog.Logger) *TradingSession {
	return &TradingSession{
		clob:   clob,
		signer: signer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "trading_session")),
	}
}

// Enabled reports whether mirror trading is switched on.
func (s *TradingSession) Enabled() bool {
	return s.cfg.Enabled
}

// Ensure returns the L2 credentials, deriving them on first use.
func (s *TradingSession) Ensure(ctx context.Context) (crypto.Credentials, error) {
	if !s.cfg.Enabled {
		return crypto.Credentials{}, domain.ErrTradingDisabled
	}
	if s.signer == nil {
		return crypto.Credentials{}, domain.ErrNoSigningKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds != nil {
		return *s.creds, nil
	}
	if s.cfg.Credentials.Complete() {
		creds := s.cfg.Credentials
		s.creds = &creds
		return creds, nil
	}

	creds, err := s.clob.DeriveAPIKey(ctx)
	if err != nil || !creds.Complete() {
		s.logger.InfoContext(ctx, "derive api key failed, creating one",
			slog.String("error", errString(err)),
		)
		creds, err = s.clob.CreateAPIKey(ctx)
		if err != nil {
			return crypto.Credentials{}, fmt.Errorf("service: create api key: %w", err)
		}
		if !creds.Complete() {
			return crypto.Credentials{}, fmt.Errorf("service: create api key: incomplete credentials: %w", domain.ErrUnauthorized)
		}
	}

	// Printed once so the operator can pin them and skip the handshake.
	s.logger.WarnContext(ctx, "derived CLOB API credentials; add them to the environment to skip derivation",
		slog.String("address", s.signer.Address().Hex()),
		slog.String("env", fmt.Sprintf("WALLETWATCH_API_KEY=%s WALLETWATCH_API_SECRET=%s WALLETWATCH_API_PASSPHRASE=%s",
			creds.Key, creds.Secret, creds.Passphrase)),
	)

	s.creds = &creds
	return creds, nil
}

// Submit signs req against the exchange selected by req.NegRisk and posts
// it.
func (s *TradingSession) Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	creds, err := s.Ensure(ctx)
	if err != nil {
		return domain.OrderResult{}, err
	}

	payload, err := s.buildPayload(req)
	if err != nil {
		return domain.OrderResult{}, err
	}
	sig, err := s.signer.SignOrder(payload, req.NegRisk)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("service: sign order: %w", err)
	}

	result, err := s.clob.PostOrder(ctx, creds, polymarket.SignedOrder{OrderPayload: payload, Signature: sig}, req.Type)
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "order submitted",
		slog.String("order_id", result.OrderID),
		slog.String("token_id", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.String("price", req.Price.String()),
		slog.String("size", req.Size.String()),
		slog.String("type", string(req.Type)),
		slog.String("status", result.Status),
	)
	return result, nil
}

// buildPayload converts a priced request into the signed order struct. A
// BUY gives price*size USDC for size shares; a SELL gives size shares for
// price*size USDC.
func (s *TradingSession) buildPayload(req domain.OrderRequest) (crypto.OrderPayload, error) {
	if !req.Side.Valid() {
		return crypto.OrderPayload{}, fmt.Errorf("service: side %q: %w", req.Side, domain.ErrInvalidOrder)
	}
	if !req.Price.IsPositive() || !req.Size.IsPositive() {
		return crypto.OrderPayload{}, fmt.Errorf("service: price %s size %s: %w", req.Price, req.Size, domain.ErrInvalidSize)
	}
	if strings.TrimSpace(req.TokenID) == "" {
		return crypto.OrderPayload{}, domain.ErrTokenUnresolved
	}

	shares := toBaseUnits(req.Size)
	notional := toBaseUnits(req.Price.Mul(req.Size))

	signer := s.signer.Address().Hex()
	maker := signer
	if s.cfg.FunderAddress != "" {
		maker = s.cfg.FunderAddress
	}

	p := crypto.OrderPayload{
		// Kept below 2^53 so it survives JSON number handling server side.
		Salt:          fmt.Sprintf("%d", rand.Int64N(1<<53)),
		Maker:         maker,
		Signer:        signer,
		Taker:         zeroAddress,
		TokenID:       req.TokenID,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		SignatureType: s.cfg.SignatureType,
	}
	if req.Side == domain.SideBuy {
		p.Side = crypto.OrderSideBuy
		p.MakerAmount, p.TakerAmount = notional, shares
	} else {
		p.Side = crypto.OrderSideSell
		p.MakerAmount, p.TakerAmount = shares, notional
	}
	return p, nil
}

func toBaseUnits(d decimal.Decimal) string {
	return d.Shift(usdcDecimals).Truncate(0).String()
}

func errString(err error) string {
	if err == nil {
		return "incomplete credentials"
	}
	return err.Error()
}
