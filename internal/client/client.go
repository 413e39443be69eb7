// Package client is an HTTP client for the reverse-auction API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// DefaultTimeout bounds every request unless WithTimeout overrides it.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Reason, e.Message)
}

// Client talks to a running auction server.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithAPIKey sends key in the X-API-Key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBasicAuth sends HTTP Basic credentials on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username, c.password = username, password
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns nil when the server answers its health probe.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &out)
}

// StartAuction resets the server and registers the given catalog.
func (c *Client) StartAuction(ctx context.Context, prices map[string]float64) (map[string]model.Item, error) {
	form := make(url.Values, len(prices))
	for name, price := range prices {
		form.Set(name, formatAmount(price))
	}

	var items map[string]model.Item
	if err := c.do(ctx, http.MethodPost, "/auction/", form, http.StatusAccepted, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// PlaceBid submits one bid.
func (c *Client) PlaceBid(ctx context.Context, userID, itemID string, amount float64) (model.Confirmation, error) {
	form := url.Values{
		"user_id": {userID},
		"item_id": {itemID},
		"bid":     {formatAmount(amount)},
	}

	var confirmation model.Confirmation
	if err := c.do(ctx, http.MethodPost, "/bidding/", form, http.StatusAccepted, &confirmation); err != nil {
		return nil, err
	}
	return confirmation, nil
}

// UserBids returns the last bid of userID on every item.
func (c *Client) UserBids(ctx context.Context, userID string) (model.UserBids, error) {
	var bids model.UserBids
	path := "/bidding/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// Resolve asks the server to resolve and return the results.
func (c *Client) Resolve(ctx context.Context) (map[string]model.Result, error) {
	var results map[string]model.Result
	if err := c.do(ctx, http.MethodGet, "/auction/", nil, http.StatusOK, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Results returns the last resolved results.
func (c *Client) Results(ctx context.Context) (map[string]model.Result, error) {
	var results map[string]model.Result
	if err := c.do(ctx, http.MethodGet, "/bidding/", nil, http.StatusOK, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Items returns the current catalog with running lowest bids.
func (c *Client) Items(ctx context.Context) (map[string]model.Item, error) {
	var items map[string]model.Item
	if err := c.do(ctx, http.MethodGet, "/auction/items", nil, http.StatusOK, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, want int, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		return parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		apiErr.Reason = body.Reason
		apiErr.Message = body.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
