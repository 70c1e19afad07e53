package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/walletwatch/internal/crypto"
	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// SignedOrder is an order payload with its EIP-712 signature.
type SignedOrder struct {
	crypto.OrderPayload
	Signature string
}

// ClobClient is the REST client for the CLOB. Book reads are public; the
// auth and order endpoints need a signer.
type ClobClient struct {
	rest   restClient
	signer *crypto.Signer
	now    func() time.Time
}

// NewClobClient creates a CLOB client. signer may be nil for read-only use.
func NewClobClient(baseURL string, signer *crypto.Signer, opts ClientOptions) (*ClobClient, error) {
	rest, err := newRESTClient(baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &ClobClient{rest: rest, signer: signer, now: time.Now}, nil
}

// OrderBookTop fetches the book for tokenID and reduces it to its top.
func (c *ClobClient) OrderBookTop(ctx context.Context, tokenID string) (domain.OrderBookTop, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.rest.get(ctx, "/book", params, nil)
	if err != nil {
		return domain.OrderBookTop{}, fmt.Errorf("polymarket/clob: book %s: %w", tokenID, err)
	}

	var book APIOrderBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.OrderBookTop{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book.ToDomainTop(), nil
}

// DeriveAPIKey recovers the existing L2 credentials of the signer via the
// L1 handshake.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (crypto.Credentials, error) {
	headers, err := c.l1Headers(0)
	if err != nil {
		return crypto.Credentials{}, err
	}
	body, err := c.rest.get(ctx, "/auth/derive-api-key", nil, headers)
	if err != nil {
		return crypto.Credentials{}, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}
	return decodeCredentials(body)
}

// CreateAPIKey issues new L2 credentials for the signer.
func (c *ClobClient) CreateAPIKey(ctx context.Context) (crypto.Credentials, error) {
	headers, err := c.l1Headers(0)
	if err != nil {
		return crypto.Credentials{}, err
	}
	body, err := c.rest.send(ctx, http.MethodPost, "/auth/api-key", nil, headers)
	if err != nil {
		return crypto.Credentials{}, fmt.Errorf("polymarket/clob: create api key: %w", err)
	}
	return decodeCredentials(body)
}

// PostOrder submits a signed limit order with L2 authentication.
func (c *ClobClient) PostOrder(ctx context.Context, creds crypto.Credentials, order SignedOrder, orderType domain.OrderType) (domain.OrderResult, error) {
	if c.signer == nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w", domain.ErrNoSigningKey)
	}

	salt, err := strconv.ParseInt(order.Salt, 10, 64)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: salt %q: %w", order.Salt, domain.ErrInvalidOrder)
	}
	side := string(domain.SideBuy)
	if order.Side == crypto.OrderSideSell {
		side = string(domain.SideSell)
	}

	payload := map[string]any{
		"order": map[string]any{
			"salt":          salt,
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          side,
			"signatureType": order.SignatureType,
			"signature":     order.Signature,
		},
		"owner":     creds.Key,
		"orderType": string(orderType),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	headers, err := creds.L2Headers(c.signer.Address().Hex(), http.MethodPost, "/order", string(body))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: %w", err)
	}

	respBody, err := c.rest.send(ctx, http.MethodPost, "/order", body, headers)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResponse
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}
	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %s: %w", result.Message, domain.ErrInvalidOrder)
	}
	return result, nil
}

func (c *ClobClient) l1Headers(nonce uint64) (map[string]string, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("polymarket/clob: %w", domain.ErrNoSigningKey)
	}
	ts := c.now().Unix()
	sig, err := c.signer.SignAuthMessage(ts, nonce)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   c.signer.Address().Hex(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": strconv.FormatInt(ts, 10),
		"POLY_NONCE":     strconv.FormatUint(nonce, 10),
	}, nil
}

func decodeCredentials(body []byte) (crypto.Credentials, error) {
	var creds crypto.Credentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return crypto.Credentials{}, fmt.Errorf("polymarket/clob: decode credentials: %w", err)
	}
	if !creds.Complete() {
		return crypto.Credentials{}, fmt.Errorf("polymarket/clob: incomplete credentials in response: %w", domain.ErrUnauthorized)
	}
	return creds, nil
}
