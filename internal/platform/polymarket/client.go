// Package polymarket holds the REST clients for the Polymarket data, Gamma
// and CLOB APIs.
package polymarket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

// Default API roots.
const (
	DefaultDataHost  = "https://data-api.polymarket.com"
	DefaultGammaHost = "https://gamma-api.polymarket.com"
	DefaultClobHost  = "https://clob.polymarket.com"
)

const (
	defaultTimeout   = 12 * time.Second
	defaultUserAgent = "walletwatch/1.0"
)

// ClientOptions tunes the shared HTTP behaviour of every client.
type ClientOptions struct {
	// Timeout bounds each request. Zero means 12s.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls per client. Zero or
	// negative disables throttling.
	RequestsPerSecond float64
	UserAgent         string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// restClient is the request plumbing shared by the API clients.
type restClient struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newRESTClient(baseURL string, opts ClientOptions) (restClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return restClient{}, fmt.Errorf("polymarket: invalid base url %q", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return restClient{baseURL: baseURL, http: hc, limiter: limiter, userAgent: ua}, nil
}

// get issues GET path?query and returns the body of a 2xx response.
func (r *restClient) get(ctx context.Context, path string, query url.Values, headers map[string]string) ([]byte, error) {
	target := r.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return r.do(req, headers)
}

// send issues a request with a raw JSON body.
func (r *restClient) send(ctx context.Context, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return r.do(req, headers)
}

func (r *restClient) do(req *http.Request, headers map[string]string) ([]byte, error) {
	if err := r.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	if len(bodyStr) > 512 {
		bodyStr = bodyStr[:512] + "..."
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
