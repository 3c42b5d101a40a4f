// Package httpapi implements the gateway ports against the remote budget
// service's JSON API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budget/internal/cache"
	"budget/internal/gateway"
	"budget/internal/log"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// CacheTTL enables the GET cache when positive.
	CacheTTL  time.Duration
	CacheSize int

	// Transport is wrapped by the logging transport; nil means http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *log.Logger
}

// Client talks to the remote budget service.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	cache  *cache.LRUCache[[]byte]
	logger *log.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentGateway)

	c := &Client{
		base:  base,
		token: opts.Token,
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: log.NewTransport(opts.Transport, logger),
		},
		logger: logger,
	}
	if opts.CacheTTL > 0 {
		c.cache = cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL)
	}
	return c, nil
}

// Cache returns the GET cache, or nil when caching is disabled.
func (c *Client) Cache() *cache.LRUCache[[]byte] {
	return c.cache
}

// Purge drops every cached response.
func (c *Client) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get issues a GET and decodes the JSON body into out, going through the
// cache when enabled.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.endpoint(path, query)
	if c.cache != nil {
		if body, ok := c.cache.Get(target); ok {
			c.logger.DebugContext(ctx, "Gateway cache hit", log.FieldOperation, op)
			return decode(op, body, out)
		}
	}

	body, err := c.do(ctx, op, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(target, body)
	}
	return decode(op, body, out)
}

// send issues a write. Any successful write invalidates the cache since
// stats and listings depend on every record.
func (c *Client) send(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}
	body, err := c.do(ctx, op, method, c.endpoint(path, nil), payload)
	if err != nil {
		return err
	}
	c.Purge()
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return decode(op, body, out)
}

func (c *Client) do(ctx context.Context, op, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &gateway.Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, gateway.NewError(op, resp.StatusCode, errorMessage(raw))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.Error{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts the human readable message from an error body. The
// service uses "detail"; "error" and "message" are accepted too.
func errorMessage(raw []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		// Validation failures list one entry per field.
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(v, &items); err == nil {
			var msgs []string
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}

func requireID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w", op, errEmptyID)
	}
	return nil
}

var errEmptyID = errors.New("empty id")
