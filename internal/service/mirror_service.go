package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/crypto"
	"github.com/alanyoungcy/walletwatch/internal/domain"
	"github.com/alanyoungcy/walletwatch/internal/pricing"
)

// Notifier event names published by the mirror flow.
const (
	EventMirrorExecuted = "mirror_executed"
	EventMirrorFailed   = "mirror_failed"
)

// MirrorStore is the slice of the ledger the mirror flow touches.
type MirrorStore interface {
	GetTrade(ctx context.Context, txHash string) (domain.ObservedTrade, error)
	AppendAction(ctx context.Context, action domain.MirrorAction) error
}

// MetaResolver resolves market metadata; absent results are not errors.
type MetaResolver interface {
	Resolve(ctx context.Context, conditionID string) (domain.MarketMeta, bool)
}

// BookReader fetches the top of a token's order book.
type BookReader interface {
	OrderBookTop(ctx context.Context, tokenID string) (domain.OrderBookTop, error)
}

// Session is the authenticated order path.
type Session interface {
	Ensure(ctx context.Context) (crypto.Credentials, error)
	Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)
}

// SideChecker reports whether a trade side may be mirrored.
type SideChecker interface {
	CopySide(side domain.Side) bool
}

// EventPublisher forwards mirror results to the notification channels.
type EventPublisher interface {
	NotifyEvent(ctx context.Context, event, text string) error
}

// MirrorConfig holds the mirror sizing parameters.
type MirrorConfig struct {
	CopyUSDC decimal.Decimal
}

// MirrorOutcome describes a submitted mirror order.
type MirrorOutcome struct {
	TxHash   string
	Mode     domain.MirrorMode
	TokenID  string
	Side     domain.Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	TickSize decimal.Decimal
	NegRisk  bool
	Type     domain.OrderType
	Result   domain.OrderResult
}

// MirrorService turns an operator's FOLLOW or IGNORE decision on an alerted
// trade into an audited action and, for FOLLOW, a priced exchange order.
type MirrorService struct {
	store     MirrorStore
	resolver  MetaResolver
	book      BookReader
	session   Session
	pricer    *pricing.Engine
	sides     SideChecker
	publisher EventPublisher
	ids       domain.IDGenerator
	cfg       MirrorConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewMirrorService creates a MirrorService. publisher may be nil.
func NewMirrorService(
	store MirrorStore,
	resolver MetaResolver,
	book BookReader,
	session Session,
	pricer *pricing.Engine,
	sides SideChecker,
	publisher EventPublisher,
	ids domain.IDGenerator,
	cfg MirrorConfig,
	logger *slog.Logger,
) *MirrorService {
	return &MirrorService{
		store:     store,
		resolver:  resolver,
		book:      book,
		session:   session,
		pricer:    pricer,
		sides:     sides,
		publisher: publisher,
		ids:       ids,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "mirror_service")),
	}
}

// Ignore records that the operator dismissed the trade.
func (s *MirrorService) Ignore(ctx context.Context, txHash string) error {
	if _, err := s.store.GetTrade(ctx, txHash); err != nil {
		return fmt.Errorf("service: load trade %s: %w", txHash, err)
	}
	if err := s.audit(ctx, txHash, domain.ActionIgnore, map[string]any{"ok": true}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "trade ignored", slog.String("tx_hash", txHash))
	return nil
}

// Follow mirrors the stored trade txHash in the given mode. Lookup and
// eligibility failures are returned without an audit record; once an order
// is attempted, success and failure are both audited and published.
func (s *MirrorService) Follow(ctx context.Context, txHash string, mode domain.MirrorMode) (MirrorOutcome, error) {
	if !mode.Valid() {
		return MirrorOutcome{}, fmt.Errorf("service: mode %q: %w", mode, domain.ErrBadCallback)
	}
	trade, err := s.store.GetTrade(ctx, txHash)
	if err != nil {
		return MirrorOutcome{}, fmt.Errorf("service: load trade %s: %w", txHash, err)
	}
	ev := trade.Event

	side := ev.Side
	if side == "" {
		side = domain.SideBuy
	}
	if !s.sides.CopySide(side) {
		return MirrorOutcome{}, fmt.Errorf("service: copy side %s: %w", side, domain.ErrSideDisabled)
	}

	tokenID, err := s.resolveToken(ctx, ev)
	if err != nil {
		return MirrorOutcome{}, err
	}

	out := MirrorOutcome{TxHash: txHash, Mode: mode, TokenID: tokenID, Side: side}
	out, err = s.execute(ctx, out)
	if err != nil {
		s.logger.WarnContext(ctx, "mirror order failed",
			slog.String("tx_hash", txHash),
			slog.String("mode", string(mode)),
			slog.String("error", err.Error()),
		)
		if aerr := s.audit(ctx, txHash, domain.FollowAction(mode, true), map[string]any{"error": err.Error()}); aerr != nil {
			s.logger.ErrorContext(ctx, "audit failed", slog.String("tx_hash", txHash), slog.String("error", aerr.Error()))
		}
		s.publish(ctx, EventMirrorFailed, fmt.Sprintf("Mirror %s of %s failed: %v", mode, txHash, err))
		return out, err
	}

	if aerr := s.audit(ctx, txHash, domain.FollowAction(mode, false), outcomeRecord(out)); aerr != nil {
		s.logger.ErrorContext(ctx, "audit failed", slog.String("tx_hash", txHash), slog.String("error", aerr.Error()))
	}
	s.publish(ctx, EventMirrorExecuted, fmt.Sprintf("Mirror %s of %s: %s %s @ %s (%s)",
		mode, txHash, side, out.Size, out.Price, out.Type))
	return out, nil
}

func (s *MirrorService) execute(ctx context.Context, out MirrorOutcome) (MirrorOutcome, error) {
	if _, err := s.session.Ensure(ctx); err != nil {
		return out, err
	}

	book, err := s.book.OrderBookTop(ctx, out.TokenID)
	if err != nil {
		return out, fmt.Errorf("service: order book %s: %w", out.TokenID, err)
	}
	q, err := s.pricer.Quote(out.Side, out.Mode, s.cfg.CopyUSDC, book)
	if err != nil {
		return out, err
	}
	out.Price, out.Size, out.TickSize, out.NegRisk, out.Type = q.Price, q.Size, q.TickSize, q.NegRisk, q.Type

	res, err := s.session.Submit(ctx, domain.OrderRequest{
		TokenID:  out.TokenID,
		Side:     out.Side,
		Price:    q.Price,
		Size:     q.Size,
		TickSize: q.TickSize,
		NegRisk:  q.NegRisk,
		Type:     q.Type,
	})
	out.Result = res
	return out, err
}

// resolveToken maps the trade's outcome to a CLOB token id, preferring the
// market registry and falling back to the asset recorded on the trade.
func (s *MirrorService) resolveToken(ctx context.Context, ev domain.TradeEvent) (string, error) {
	if ev.OutcomeIndex != nil {
		if meta, ok := s.resolver.Resolve(ctx, ev.ConditionID); ok {
			if tok, ok := meta.TokenForOutcome(*ev.OutcomeIndex); ok {
				return tok, nil
			}
		}
	}
	if ev.Asset != "" {
		return ev.Asset, nil
	}
	return "", fmt.Errorf("service: trade %s: %w", ev.TxHash, domain.ErrTokenUnresolved)
}

func (s *MirrorService) audit(ctx context.Context, txHash string, kind domain.ActionKind, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("service: encode action result: %w", err)
	}
	err = s.store.AppendAction(ctx, domain.MirrorAction{
		ID:        s.ids.NextID(),
		TxHash:    txHash,
		Kind:      kind,
		CreatedAt: s.now().UTC(),
		Result:    raw,
	})
	if err != nil {
		return fmt.Errorf("service: append action: %w", err)
	}
	return nil
}

func (s *MirrorService) publish(ctx context.Context, event, text string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.NotifyEvent(ctx, event, text); err != nil {
		s.logger.DebugContext(ctx, "publish mirror event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func outcomeRecord(o MirrorOutcome) map[string]any {
	return map[string]any{
		"resp": o.Result,
		"used": map[string]any{
			"tokenId":   o.TokenID,
			"price":     o.Price.String(),
			"size":      o.Size.String(),
			"tick":      o.TickSize.String(),
			"negRisk":   o.NegRisk,
			"orderType": string(o.Type),
		},
	}
}
