// Package pricing converts a desired USDC spend and a top-of-book snapshot
// into a valid limit price and share size for a mirror order.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Rounding selects the direction RoundToTick quantises in.
type Rounding int

const (
	RoundNearest Rounding = iota
	RoundDown
	RoundUp
)

// SizeDecimals is the share-lot precision accepted by the exchange.
const SizeDecimals = 2

var (
	minPrice = decimal.RequireFromString("0.001")
	maxPrice = decimal.RequireFromString("0.999")
)

// Config bounds the engine.
type Config struct {
	// MaxUSDCPerTrade caps the spend of any single mirror order.
	MaxUSDCPerTrade decimal.Decimal
	// SlippageTicks is how many ticks an immediate order crosses past the
	// best opposite price.
	SlippageTicks int
}

// Quote is the outcome of pricing a mirror order.
type Quote struct {
	Price    decimal.Decimal
	Size     decimal.Decimal
	Spend    decimal.Decimal // effective (clamped) spend used for sizing
	Type     domain.OrderType
	TickSize decimal.Decimal
	NegRisk  bool
}

// Engine prices mirror orders. It is stateless apart from its config.
type Engine struct {
	cfg Config
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.SlippageTicks < 0 {
		cfg.SlippageTicks = 0
	}
	return &Engine{cfg: cfg}
}

// Quote computes price, size and order semantics for mirroring a side in the
// given mode. Passive orders rest at our side's best price (GTC); immediate
// orders cross the book by the configured slippage (FOK), rounded away from
// the touch so quantisation never makes them less aggressive.
func (e *Engine) Quote(side domain.Side, mode domain.MirrorMode, spend decimal.Decimal, book domain.OrderBookTop) (Quote, error) {
	book = book.Normalized()
	tick := book.TickSize
	slip := tick.Mul(decimal.NewFromInt(int64(e.cfg.SlippageTicks)))

	q := Quote{TickSize: tick, NegRisk: book.NegRisk}

	switch mode {
	case domain.MirrorPassive:
		q.Type = domain.OrderTypeGTC
		switch side {
		case domain.SideBuy:
			if !book.BestBid.Valid {
				return Quote{}, fmt.Errorf("%w: no best bid available", domain.ErrNoLiquidity)
			}
			q.Price = book.BestBid.Decimal
		case domain.SideSell:
			if !book.BestAsk.Valid {
				return Quote{}, fmt.Errorf("%w: no best ask available", domain.ErrNoLiquidity)
			}
			q.Price = book.BestAsk.Decimal
		default:
			return Quote{}, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidOrder, side)
		}

	case domain.MirrorNow:
		q.Type = domain.OrderTypeFOK
		switch side {
		case domain.SideBuy:
			if !book.BestAsk.Valid {
				return Quote{}, fmt.Errorf("%w: no best ask available", domain.ErrNoLiquidity)
			}
			q.Price = clamp(RoundToTick(book.BestAsk.Decimal.Add(slip), tick, RoundUp), minPrice, maxPrice)
		case domain.SideSell:
			if !book.BestBid.Valid {
				return Quote{}, fmt.Errorf("%w: no best bid available", domain.ErrNoLiquidity)
			}
			q.Price = clamp(RoundToTick(book.BestBid.Decimal.Sub(slip), tick, RoundDown), minPrice, maxPrice)
		default:
			return Quote{}, fmt.Errorf("%w: unknown side %q", domain.ErrInvalidOrder, side)
		}

	default:
		return Quote{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidOrder, mode)
	}

	if !q.Price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: price %s is not positive", domain.ErrInvalidSize, q.Price)
	}

	q.Spend = clamp(spend, decimal.Zero, e.cfg.MaxUSDCPerTrade)
	size := q.Spend.Div(q.Price).Truncate(SizeDecimals)
	q.Size = decimal.Max(size, book.MinOrderSize)

	if !q.Size.IsPositive() {
		return Quote{}, fmt.Errorf("%w: computed size %s", domain.ErrInvalidSize, q.Size)
	}
	return q, nil
}

// RoundToTick quantises price to a multiple of tick in the given direction.
// A non-positive tick returns price unchanged.
func RoundToTick(price, tick decimal.Decimal, dir Rounding) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	steps := price.Div(tick)
	switch dir {
	case RoundDown:
		steps = steps.Floor()
	case RoundUp:
		steps = steps.Ceil()
	default:
		steps = steps.Round(0)
	}
	return steps.Mul(tick)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}
