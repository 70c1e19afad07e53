package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

const defaultActivityLimit = 100

// ActivityQuery selects a page of a wallet's trade activity, newest first.
type ActivityQuery struct {
	User string
	// Start is the inclusive lower unix-second bound; zero means unbounded.
	Start int64
	Limit int
}

// DataClient is the REST client for the public data API.
type DataClient struct {
	rest restClient
}

// NewDataClient creates a data API client rooted at baseURL.
func NewDataClient(baseURL string, opts ClientOptions) (*DataClient, error) {
	rest, err := newRESTClient(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &DataClient{rest: rest}, nil
}

// UserActivity returns the TRADE activity of q.User.
func (c *DataClient) UserActivity(ctx context.Context, q ActivityQuery) ([]domain.TradeEvent, error) {
	if q.User == "" {
		return nil, fmt.Errorf("polymarket/data: user is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	params := url.Values{}
	params.Set("user", q.User)
	params.Set("type", domain.ActivityTypeTrade)
	params.Set("sortDirection", "DESC")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", "0")
	if q.Start > 0 {
		params.Set("start", strconv.FormatInt(q.Start, 10))
	}

	body, err := c.rest.get(ctx, "/activity", params, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: activity for %s: %w", q.User, err)
	}

	var rows []APIActivity
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode activity: %w", err)
	}

	out := make([]domain.TradeEvent, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomainTrade())
	}
	return out, nil
}
