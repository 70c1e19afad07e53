// Package filter decides whether an observed trade is interesting enough to
// alert on.
package filter

import (
	"strings"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Engine evaluates trade events against a fixed set of criteria. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	criteria domain.FilterCriteria
}

// New builds an Engine from raw operator settings. Category and keyword
// entries are trimmed and lowercased; empty entries are dropped. Sides are
// uppercased.
func New(minUSDC float64, categories, keywords, copySides []string) *Engine {
	c := domain.FilterCriteria{
		MinUSDC:    minUSDC,
		Categories: make(map[string]struct{}, len(categories)),
		CopySides:  make(map[domain.Side]struct{}, len(copySides)),
	}
	for _, cat := range categories {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			c.Categories[cat] = struct{}{}
		}
	}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		c.Keywords = append(c.Keywords, kw)
	}
	for _, s := range copySides {
		if side := domain.Side(strings.ToUpper(strings.TrimSpace(s))); side.Valid() {
			c.CopySides[side] = struct{}{}
		}
	}
	return &Engine{criteria: c}
}

// Criteria returns the normalised criteria.
func (e *Engine) Criteria() domain.FilterCriteria {
	return e.criteria
}

// Matches reports whether ev passes the size, category and keyword filters.
// category is the resolved market category, empty when unknown.
func (e *Engine) Matches(ev domain.TradeEvent, category string) bool {
	if ev.Notional() < e.criteria.MinUSDC {
		return false
	}

	if len(e.criteria.Categories) > 0 {
		c := strings.ToLower(strings.TrimSpace(category))
		if c == "" {
			return false
		}
		if _, ok := e.criteria.Categories[c]; !ok {
			return false
		}
	}

	if len(e.criteria.Keywords) > 0 {
		hay := strings.ToLower(ev.Title + ev.Slug + ev.EventSlug + ev.Outcome)
		for _, kw := range e.criteria.Keywords {
			if strings.Contains(hay, kw) {
				return true
			}
		}
		return false
	}

	return true
}

// CopySide reports whether trades on side may be mirrored.
func (e *Engine) CopySide(side domain.Side) bool {
	_, ok := e.criteria.CopySides[side]
	return ok
}
