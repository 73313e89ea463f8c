package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"trading-botv1/internal/model"
)

var routes = map[string]string{
	"api.login":   "/api/v1/session",
	"api.quote":   "/api/v1/quote",
	"api.history": "/api/v1/history",
}

// ClientConfig configures the HTTP quote-API client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	TOTPSecret string        // empty disables session login
	Timeout    time.Duration // default 7s
	HTTPClient *http.Client  // optional, for tests
}

// Client is an HTTP Provider against the upstream quote API.
//
// When a TOTP secret is configured the client lazily opens a session by
// posting the API key plus a generated one-time code, and retries once with
// a fresh session on 401.
type Client struct {
	baseURL    string
	apiKey     string
	totpSecret string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a quote-API client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 7 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		totpSecret: cfg.TOTPSecret,
		httpClient: hc,
	}
}

// History implements Provider.
func (c *Client) History(ctx context.Context, symbol, period string) (model.PriceSeries, error) {
	var payload struct {
		Symbol string      `json:"symbol"`
		Bars   []model.Bar `json:"bars"`
	}
	params := url.Values{"symbol": {symbol}, "period": {period}}
	if err := c.getJSON(ctx, "api.history", params, &payload); err != nil {
		return model.PriceSeries{}, err
	}
	series := model.PriceSeries{Symbol: payload.Symbol, Bars: payload.Bars}
	if err := series.Validate(); err != nil {
		return model.PriceSeries{}, fmt.Errorf("%s history: %w", symbol, err)
	}
	return series, nil
}

// Current implements Provider.
func (c *Client) Current(ctx context.Context, symbol string) (Quote, error) {
	var q Quote
	params := url.Values{"symbol": {symbol}}
	if err := c.getJSON(ctx, "api.quote", params, &q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (c *Client) getJSON(ctx context.Context, route string, params url.Values, out any) error {
	status, body, err := c.do(ctx, route, params)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", route, err, ErrUnavailable)
	}

	if status == http.StatusUnauthorized && c.totpSecret != "" {
		// Session expired; open a new one and retry once.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		status, body, err = c.do(ctx, route, params)
		if err != nil {
			return fmt.Errorf("%s: %v: %w", route, err, ErrUnavailable)
		}
	}

	switch {
	case status == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s: decode: %v: %w", route, err, ErrUnavailable)
		}
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", params.Get("symbol"), ErrSymbolNotFound)
	default:
		return fmt.Errorf("%s: upstream status %d: %w", route, status, ErrUnavailable)
	}
}

func (c *Client) do(ctx context.Context, route string, params url.Values) (int, []byte, error) {
	token, err := c.session(ctx)
	if err != nil {
		return 0, nil, err
	}

	reqURL := c.baseURL + routes[route] + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// session returns the current bearer token, logging in first if a TOTP
// secret is configured and no session is open.
func (c *Client) session(ctx context.Context) (string, error) {
	if c.totpSecret == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	code, err := totp.GenerateCode(c.totpSecret, time.Now())
	if err != nil {
		return "", fmt.Errorf("generate totp: %w", err)
	}

	form := url.Values{"api_key": {c.apiKey}, "totp": {code}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+routes["api.login"], strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login status %d", resp.StatusCode)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("login decode: %w", err)
	}
	c.token = payload.Token
	return c.token, nil
}
