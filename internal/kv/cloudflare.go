package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Cloudflare v4 API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// maxValueSize bounds the bytes read from a GET. Pointer values are tiny.
const maxValueSize = 1 << 20

// CloudflareConfig configures a Cloudflare store.
type CloudflareConfig struct {
	BaseURL    string
	AccountID  string
	APIToken   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Cloudflare is a Store backed by the Workers KV REST API.
type Cloudflare struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	logger    *slog.Logger
}

// NewCloudflare creates a Workers KV store.
func NewCloudflare(cfg CloudflareConfig) (*Cloudflare, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("kv: account id is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("kv: api token is required")
	}
	c := &Cloudflare{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func (c *Cloudflare) valueURL(namespace, key string) string {
	return fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s/values/%s",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(namespace), url.PathEscape(key))
}

func (c *Cloudflare) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}
	return c.http.Do(req)
}

// Get implements Store. The value is returned verbatim.
func (c *Cloudflare) Get(ctx context.Context, namespace, key string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.valueURL(namespace, key), nil)
	if err != nil {
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("kv get %s: %w", key, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("kv get %s: %s", key, apiFailure(resp))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxValueSize))
	if err != nil {
		return "", fmt.Errorf("kv get %s: read body: %w", key, err)
	}
	return string(data), nil
}

// Put implements Store.
func (c *Cloudflare) Put(ctx context.Context, namespace, key, value string) error {
	resp, err := c.do(ctx, http.MethodPut, c.valueURL(namespace, key), strings.NewReader(value))
	if err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("kv put %s: %s", key, apiFailure(resp))
	}

	var env struct {
		Success bool `json:"success"`
		Errors  []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("kv put %s: decode response: %w", key, err)
	}
	if !env.Success {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, fmt.Sprintf("%d: %s", e.Code, e.Message))
		}
		if len(msgs) == 0 {
			msgs = append(msgs, "unknown error")
		}
		return fmt.Errorf("kv put %s: %s", key, strings.Join(msgs, ", "))
	}

	c.logger.Debug("kv value written", "namespace", namespace, "key", key)
	return nil
}

func apiFailure(resp *http.Response) string {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(snippet))
	if text == "" {
		return "unexpected HTTP status " + resp.Status
	}
	return "unexpected HTTP status " + resp.Status + ": " + text
}
