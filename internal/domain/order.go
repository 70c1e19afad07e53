package domain

import "github.com/shopspring/decimal"

// Side indicates whether a trade bought or sold outcome shares.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// MirrorMode selects how aggressively a mirror order is priced.
type MirrorMode string

const (
	// MirrorPassive joins the current best price on our side of the book.
	MirrorPassive MirrorMode = "PASSIVE"
	// MirrorNow crosses the spread with fill-or-kill semantics.
	MirrorNow MirrorMode = "NOW"
)

// Valid reports whether m is a known mode.
func (m MirrorMode) Valid() bool {
	return m == MirrorPassive || m == MirrorNow
}

// OrderRequest is a priced mirror order ready for submission.
type OrderRequest struct {
	TokenID  string
	Side     Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	TickSize decimal.Decimal
	NegRisk  bool
	Type     OrderType
}

// OrderResult wraps the API response after order submission.
type OrderResult struct {
	Success  bool     `json:"success"`
	OrderID  string   `json:"orderID,omitempty"`
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message,omitempty"`
	TxHashes []string `json:"transactionsHashes,omitempty"`
}
