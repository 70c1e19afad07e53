package domain

import "strings"

// ActivityTypeTrade is the feed type tag of an exchange fill.
const ActivityTypeTrade = "TRADE"

// TradeEvent is one observed exchange trade of a watched wallet. TxHash is the
// global unique key; an event never changes after it has been observed.
type TradeEvent struct {
	Wallet       string  `json:"proxyWallet"`
	Timestamp    int64   `json:"timestamp"`
	ConditionID  string  `json:"conditionId"`
	Type         string  `json:"type"`
	Side         Side    `json:"side,omitempty"`
	Price        float64 `json:"price,omitempty"`
	Size         float64 `json:"size,omitempty"`
	USDCSize     float64 `json:"usdcSize,omitempty"`
	Outcome      string  `json:"outcome,omitempty"`
	OutcomeIndex *int    `json:"outcomeIndex,omitempty"`
	Asset        string  `json:"asset,omitempty"`
	Title        string  `json:"title,omitempty"`
	Slug         string  `json:"slug,omitempty"`
	EventSlug    string  `json:"eventSlug,omitempty"`
	Icon         string  `json:"icon,omitempty"`
	TxHash       string  `json:"transactionHash,omitempty"`
}

// IsGenuineFill reports whether the event is a sized trade fill that the
// watcher should consider at all: a TRADE with a transaction hash, a known
// side and a positive price and size. The USDC notional is not part of the
// predicate; see Notional.
func (e TradeEvent) IsGenuineFill() bool {
	if e.Type != ActivityTypeTrade || e.TxHash == "" {
		return false
	}
	if !e.Side.Valid() {
		return false
	}
	return e.Price > 0 && e.Size > 0
}

// Notional returns the USDC size of the fill, falling back to price*size
// when the feed omitted it.
func (e TradeEvent) Notional() float64 {
	if e.USDCSize > 0 {
		return e.USDCSize
	}
	return e.Price * e.Size
}

// ObservedTrade is a TradeEvent as persisted in the ledger.
type ObservedTrade struct {
	Event    TradeEvent
	Category string
	Notified bool
	RawJSON  []byte
}

// WatchCursor is the per-wallet progress marker.
type WatchCursor struct {
	LastTs int64 `json:"last_ts"`
}

// CursorKey is the state key under which a wallet's cursor is stored.
func CursorKey(wallet string) string {
	return "cursor:" + NormalizeWallet(wallet)
}

// NormalizeWallet returns the canonical (trimmed, lowercase) form of a wallet
// address.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
