package domain

import "github.com/shopspring/decimal"

var (
	// DefaultTickSize applies when the book omits a usable tick size.
	DefaultTickSize = decimal.RequireFromString("0.01")
	// DefaultMinOrderSize applies when the book omits a minimum order size.
	DefaultMinOrderSize = decimal.Zero
)

// OrderBookTop is an ephemeral snapshot of the top of one token's book.
// Either side may be absent.
type OrderBookTop struct {
	BestBid      decimal.NullDecimal
	BestAsk      decimal.NullDecimal
	TickSize     decimal.Decimal
	MinOrderSize decimal.Decimal
	NegRisk      bool
}

// Normalized returns a copy with defaults applied to missing or invalid tick
// and minimum-size values.
func (b OrderBookTop) Normalized() OrderBookTop {
	if !b.TickSize.IsPositive() {
		b.TickSize = DefaultTickSize
	}
	if b.MinOrderSize.IsNegative() {
		b.MinOrderSize = DefaultMinOrderSize
	}
	return b
}
