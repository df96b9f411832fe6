package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// placeholderHost appears in the sample backend URL shipped with the tool.
const placeholderHost = "YOUR-PROJECT-ID"

const defaultTimeout = 15 * time.Second

// Client talks to the REST interface of a Realtime Database.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NormalizeBaseURL strips trailing slashes and a trailing ".json". It returns
// ErrNotConfigured for an empty or placeholder URL.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	for {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(base, "/"), ".json")
		if trimmed == base {
			break
		}
		base = trimmed
	}
	if base == "" || strings.Contains(base, placeholderHost) {
		return "", ErrNotConfigured
	}
	return base, nil
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the normalized base.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) url(path string, q *Query) string {
	u := c.base + "/" + strings.TrimPrefix(path, "/") + ".json"
	if v := q.values(); len(v) > 0 {
		u += "?" + v.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, q *Query, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	} else if method == http.MethodPut {
		reader = strings.NewReader("null")
	}

	target := c.url(path, q)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{URL: c.base, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: c.base, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Message: errorMessage(resp, data)}
	}
	return data, nil
}

func errorMessage(resp *http.Response, body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func (c *Client) Get(ctx context.Context, path string, q *Query, out any) (bool, error) {
	data, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return false, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		c.logger.Debug("malformed store response treated as empty", "path", path, "error", err)
		return false, nil
	}
	return true, nil
}

func (c *Client) Put(ctx context.Context, path string, value any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, value)
	return err
}

func (c *Client) Patch(ctx context.Context, path string, partial any) error {
	_, err := c.do(ctx, http.MethodPatch, path, nil, partial)
	return err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

func (c *Client) Post(ctx context.Context, path string, value any) (string, error) {
	data, err := c.do(ctx, http.MethodPost, path, nil, value)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.Name == "" {
		return "", errors.New("store: push response carried no key")
	}
	return resp.Name, nil
}
