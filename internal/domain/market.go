package domain

import "time"

// MarketMeta is the cached descriptive record of a market, keyed by its
// condition id. ClobTokenIDs is index-aligned with the trade outcome index.
type MarketMeta struct {
	ConditionID  string    `json:"conditionId"`
	MarketID     string    `json:"marketId"`
	Question     string    `json:"question"`
	Slug         string    `json:"slug,omitempty"`
	Category     string    `json:"category,omitempty"`
	ClobTokenIDs []string  `json:"clobTokenIds,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TokenForOutcome returns the clob token id for the given outcome index.
func (m MarketMeta) TokenForOutcome(idx int) (string, bool) {
	if idx < 0 || idx >= len(m.ClobTokenIDs) || m.ClobTokenIDs[idx] == "" {
		return "", false
	}
	return m.ClobTokenIDs[idx], true
}
