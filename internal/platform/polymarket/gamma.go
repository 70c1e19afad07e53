package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// GammaClient is the REST client for the Gamma market registry.
type GammaClient struct {
	rest restClient
}

// NewGammaClient creates a Gamma client rooted at baseURL.
func NewGammaClient(baseURL string, opts ClientOptions) (*GammaClient, error) {
	rest, err := newRESTClient(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &GammaClient{rest: rest}, nil
}

// MarketByConditionID looks up the market for conditionID. It returns
// domain.ErrNotFound when the registry has no match.
func (g *GammaClient) MarketByConditionID(ctx context.Context, conditionID string) (domain.MarketMeta, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)
	params.Set("limit", "1")
	params.Set("offset", "0")

	body, err := g.rest.get(ctx, "/markets", params, nil)
	if err != nil {
		return domain.MarketMeta{}, fmt.Errorf("polymarket/gamma: market %s: %w", conditionID, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return domain.MarketMeta{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(markets) == 0 {
		return domain.MarketMeta{}, fmt.Errorf("polymarket/gamma: market %s: %w", conditionID, domain.ErrNotFound)
	}
	return markets[0].ToDomainMeta(conditionID), nil
}
