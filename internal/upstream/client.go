// Package upstream is the console's client for the funnelchat API: the
// metrics exposition endpoint plus the instance lifecycle REST surface.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/funnelchat/console/api/models"
)

// APIError preserves the upstream HTTP status so handlers can pass it
// through instead of collapsing everything to 500.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL     *url.URL
	metricsPath string
	clientToken string
	httpClient  *http.Client
}

type Option func(*Client)

func WithClientToken(token string) Option {
	return func(c *Client) {
		c.clientToken = token
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithMetricsPath(path string) Option {
	return func(c *Client) {
		c.metricsPath = path
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid scheme for upstream URL %q, only 'http' and 'https' are supported", baseURL)
	}

	c := &Client{
		baseURL:     u,
		metricsPath: "/metrics",
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchMetrics returns the raw exposition payload from the upstream.
func (c *Client) FetchMetrics(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath(c.metricsPath).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metrics: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "metrics endpoint unavailable"}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read metrics body: %w", err)
	}
	return body, nil
}

type ListParams struct {
	Page       int
	PageSize   int
	Query      string
	Middleware string
}

func (c *Client) ListInstances(ctx context.Context, params ListParams) (*models.InstanceList, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", fmt.Sprintf("%d", params.Page))
	}
	if params.PageSize > 0 {
		q.Set("pageSize", fmt.Sprintf("%d", params.PageSize))
	}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	if params.Middleware != "" {
		q.Set("middleware", params.Middleware)
	}

	var out models.InstanceList
	if err := c.do(ctx, http.MethodGet, "/instances?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateInstance(ctx context.Context, name string) (*models.Instance, error) {
	var out models.Instance
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/instances/integrator/on-demand", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/instances/%s", id), nil, nil)
}

func (c *Client) GetStatus(ctx context.Context, id uuid.UUID, token string) (*models.InstanceStatus, error) {
	var out models.InstanceStatus
	if err := c.do(ctx, http.MethodGet, c.instancePath(id, token, "status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Restart(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodPost, c.instancePath(id, token, "restart"), nil, nil)
}

func (c *Client) Disconnect(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodPost, c.instancePath(id, token, "disconnect"), nil, nil)
}

func (c *Client) QRCode(ctx context.Context, id uuid.UUID, token string) (*models.QRCode, error) {
	var out models.QRCode
	if err := c.do(ctx, http.MethodGet, c.instancePath(id, token, "qr-code"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PhoneCode(ctx context.Context, id uuid.UUID, token, phone string) (*models.PhoneCode, error) {
	var out models.PhoneCode
	if err := c.do(ctx, http.MethodGet, c.instancePath(id, token, "phone-code/"+url.PathEscape(phone)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateWebhooks(ctx context.Context, id uuid.UUID, token string, settings models.WebhookSettings) error {
	return c.do(ctx, http.MethodPut, c.instancePath(id, token, "update-every-webhooks"), settings, nil)
}

func (c *Client) GetProxy(ctx context.Context, id uuid.UUID, token string) (*models.ProxyConfig, error) {
	var out models.ProxyConfig
	if err := c.do(ctx, http.MethodGet, c.instancePath(id, token, "proxy"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetProxy(ctx context.Context, id uuid.UUID, token string, cfg models.ProxyConfig) (*models.ProxyConfig, error) {
	var out models.ProxyConfig
	if err := c.do(ctx, http.MethodPut, c.instancePath(id, token, "proxy"), cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveProxy(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodDelete, c.instancePath(id, token, "proxy"), nil, nil)
}

func (c *Client) TestProxy(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodPost, c.instancePath(id, token, "proxy/test"), nil, nil)
}

// SwapProxy assigns a fresh proxy to the instance from the shared pool.
func (c *Client) SwapProxy(ctx context.Context, id uuid.UUID, token string) (*models.ProxyConfig, error) {
	var out models.ProxyConfig
	if err := c.do(ctx, http.MethodPost, c.instancePath(id, token, "proxy/pool/assign"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Subscribe(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodPost, c.instancePath(id, token, "integrator/on-demand/subscription"), nil, nil)
}

func (c *Client) CancelSubscription(ctx context.Context, id uuid.UUID, token string) error {
	return c.do(ctx, http.MethodPost, c.instancePath(id, token, "integrator/on-demand/cancel"), nil, nil)
}

func (c *Client) instancePath(id uuid.UUID, token, suffix string) string {
	return fmt.Sprintf("/instances/%s/token/%s/%s", id, url.PathEscape(token), suffix)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	u, err := c.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("build request URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientToken != "" {
		req.Header.Set("Client-Token", c.clientToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := http.StatusText(resp.StatusCode)
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
