package polymarket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// flexFloat decodes a JSON number or a numeric string. Empty strings and
// null decode to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flexFloat: %w", err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(string(b))
	return nil
}

// APIActivity is one row of the data-api /activity response.
type APIActivity struct {
	ProxyWallet     string    `json:"proxyWallet"`
	Timestamp       flexFloat `json:"timestamp"`
	ConditionID     string    `json:"conditionId"`
	Type            string    `json:"type"`
	Side            string    `json:"side"`
	Price           flexFloat `json:"price"`
	Size            flexFloat `json:"size"`
	USDCSize        flexFloat `json:"usdcSize"`
	Outcome         string    `json:"outcome"`
	OutcomeIndex    *int      `json:"outcomeIndex"`
	Asset           string    `json:"asset"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	EventSlug       string    `json:"eventSlug"`
	Icon            string    `json:"icon"`
	TransactionHash string    `json:"transactionHash"`
}

// ToDomainTrade converts an activity row into a TradeEvent. The wallet is
// normalised to lowercase and the side to uppercase.
func (a *APIActivity) ToDomainTrade() domain.TradeEvent {
	return domain.TradeEvent{
		Wallet:       domain.NormalizeWallet(a.ProxyWallet),
		Timestamp:    int64(a.Timestamp),
		ConditionID:  a.ConditionID,
		Type:         strings.ToUpper(strings.TrimSpace(a.Type)),
		Side:         domain.Side(strings.ToUpper(strings.TrimSpace(a.Side))),
		Price:        float64(a.Price),
		Size:         float64(a.Size),
		USDCSize:     float64(a.USDCSize),
		Outcome:      a.Outcome,
		OutcomeIndex: a.OutcomeIndex,
		Asset:        a.Asset,
		Title:        a.Title,
		Slug:         a.Slug,
		EventSlug:    a.EventSlug,
		Icon:         a.Icon,
		TxHash:       a.TransactionHash,
	}
}

// APIMarket is the subset of a Gamma /markets row the watcher needs.
type APIMarket struct {
	ID              flexString      `json:"id"`
	Question        string          `json:"question"`
	Slug            string          `json:"slug"`
	ConditionID     string          `json:"conditionId"`
	Category        string          `json:"category"`
	ClobTokenIDs    json.RawMessage `json:"clobTokenIds"`
	ClobTokenIDsAlt json.RawMessage `json:"clob_token_ids"`
}

// ToDomainMeta converts a Gamma market into MarketMeta for conditionID.
// The question falls back to the slug, then to the condition id.
func (m *APIMarket) ToDomainMeta(conditionID string) domain.MarketMeta {
	question := m.Question
	if question == "" {
		question = m.Slug
	}
	if question == "" {
		question = conditionID
	}

	tokens := parseTokenIDs(m.ClobTokenIDsAlt)
	if len(tokens) == 0 {
		tokens = parseTokenIDs(m.ClobTokenIDs)
	}

	return domain.MarketMeta{
		ConditionID:  conditionID,
		MarketID:     string(m.ID),
		Question:     question,
		Slug:         m.Slug,
		Category:     m.Category,
		ClobTokenIDs: tokens,
	}
}

// parseTokenIDs accepts either a JSON array of strings or a string holding
// an encoded JSON array, which is how Gamma usually returns the field.
func parseTokenIDs(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil
	}
	return ids
}

// APIBookLevel is one price level of an order book.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIOrderBook is the CLOB /book response.
type APIOrderBook struct {
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Bids         []APIBookLevel `json:"bids"`
	Asks         []APIBookLevel `json:"asks"`
	TickSize     flexString     `json:"tick_size"`
	MinOrderSize flexString     `json:"min_order_size"`
	NegRisk      bool           `json:"neg_risk"`
}

// ToDomainTop reduces the book to its top. Level ordering in the response
// is not relied upon: the best bid is the highest bid and the best ask the
// lowest ask. Unparseable levels are skipped.
func (b *APIOrderBook) ToDomainTop() domain.OrderBookTop {
	top := domain.OrderBookTop{NegRisk: b.NegRisk}

	for _, lvl := range b.Bids {
		p, err := decimal.NewFromString(strings.TrimSpace(lvl.Price))
		if err != nil || !p.IsPositive() {
			continue
		}
		if !top.BestBid.Valid || p.GreaterThan(top.BestBid.Decimal) {
			top.BestBid = decimal.NewNullDecimal(p)
		}
	}
	for _, lvl := range b.Asks {
		p, err := decimal.NewFromString(strings.TrimSpace(lvl.Price))
		if err != nil || !p.IsPositive() {
			continue
		}
		if !top.BestAsk.Valid || p.LessThan(top.BestAsk.Decimal) {
			top.BestAsk = decimal.NewNullDecimal(p)
		}
	}

	if tick, err := decimal.NewFromString(strings.TrimSpace(string(b.TickSize))); err == nil {
		top.TickSize = tick
	}
	if minSize, err := decimal.NewFromString(strings.TrimSpace(string(b.MinOrderSize))); err == nil {
		top.MinOrderSize = minSize
	}
	return top.Normalized()
}

// APIOrderResponse is the CLOB POST /order response.
type APIOrderResponse struct {
	Success     bool     `json:"success"`
	ErrorMsg    string   `json:"errorMsg"`
	OrderID     string   `json:"orderID"`
	Status      string   `json:"status"`
	TxHashes    []string `json:"transactionsHashes"`
	OrderHashes []string `json:"orderHashes"`
}

// ToDomainOrderResult converts the response into an OrderResult.
func (r *APIOrderResponse) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		Success:  r.Success,
		OrderID:  r.OrderID,
		Status:   r.Status,
		Message:  r.ErrorMsg,
		TxHashes: r.TxHashes,
	}
}
