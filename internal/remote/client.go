// Package remote is the HTTP client for the authoritative server.
//
// Every call carries an explicit timeout and maps failures to one of
// NetworkError, TimeoutError or RemoteRejectedError. Retrying is the
// caller's concern (see package retry).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Client talks to the remote API rooted at a base URL such as
// "https://kasir.example.com/api".
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL  string
	token    string
	deviceID string
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithDeviceID sets the X-Device-ID header.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// WithTimeout sets the per-request timeout.
//
// Default: 30s (DefaultTimeout)
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client requests are sent with. The client
// is copied; the caller's value is left untouched.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client. baseURL must be an absolute http(s) URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q: want http(s)://host[/path]", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	hc := http.Client{}
	if c.http != nil {
		hc = *c.http
	}
	hc.Timeout = c.timeout
	c.http = &hc
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateTransaction uploads a transaction. The remote upserts by
// transaction_number; CreateResult.Updated reports which happened.
func (c *Client) CreateTransaction(ctx context.Context, t Transaction) (CreateResult, error) {
	var res CreateResult
	err := c.do(ctx, "create transaction", http.MethodPost, "/transactions", nil, t, &res, nil)
	return res, err
}

// ListProducts fetches one page of the catalog (1-based).
func (c *Client) ListProducts(ctx context.Context, page, limit int) ([]Product, Meta, error) {
	var (
		products []Product
		meta     Meta
	)
	err := c.do(ctx, "list products", http.MethodGet, "/products", pageQuery(page, limit), nil, &products, &meta)
	return products, meta, err
}

// ListCategories fetches every category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var cats []Category
	err := c.do(ctx, "list categories", http.MethodGet, "/categories", nil, nil, &cats, nil)
	return cats, err
}

// CreateCategory creates a category. An existing name is reported as a
// RemoteRejectedError for which IsConflict is true.
func (c *Client) CreateCategory(ctx context.Context, name string) (Category, error) {
	var cat Category
	err := c.do(ctx, "create category", http.MethodPost, "/categories", nil, Category{Name: name}, &cat, nil)
	return cat, err
}

// ListTransactions fetches one page of transaction history (1-based).
func (c *Client) ListTransactions(ctx context.Context, page, limit int) ([]Transaction, Meta, error) {
	var (
		txs  []Transaction
		meta Meta
	)
	err := c.do(ctx, "list transactions", http.MethodGet, "/transactions", pageQuery(page, limit), nil, &txs, &meta)
	return txs, meta, err
}

// UpdateStatus sets the remote status of a transaction. ref is the remote
// id or the transaction number.
func (c *Client) UpdateStatus(ctx context.Context, ref, status string) error {
	path := "/transactions/" + url.PathEscape(ref) + "/status"
	return c.do(ctx, "update status", http.MethodPatch, path, nil, StatusUpdate{Status: status}, nil, nil)
}

// Pay settles a pending (BON) transaction on the remote.
func (c *Client) Pay(ctx context.Context, ref string, cashReceived, change int64) error {
	path := "/transactions/" + url.PathEscape(ref) + "/pay"
	body := Payment{CashReceived: cashReceived, ChangeAmount: change}
	return c.do(ctx, "pay transaction", http.MethodPatch, path, nil, body, nil, nil)
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// do performs one request and decodes the envelope's data into out and
// meta (either may be nil).
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, meta *Meta) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, op, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return c.transportError(ctx, op, target, err)
	}
	c.logger.Debug("remote call",
		"op", op,
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
			if len(msg) > 200 {
				msg = msg[:200]
			}
		}
		return &RemoteRejectedError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &RemoteRejectedError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response body: " + decodeErr.Error()}
	}
	if !env.OK() {
		return &RemoteRejectedError{Op: op, StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &RemoteRejectedError{Op: op, StatusCode: resp.StatusCode, Message: "malformed data: " + err.Error()}
		}
	}
	if meta != nil && env.Meta != nil {
		*meta = *env.Meta
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, op, target string, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Op: op, URL: target, Timeout: c.timeout, Err: err}
	}
	return &NetworkError{Op: op, URL: target, Err: err}
}
