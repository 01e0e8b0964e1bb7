package dapnet

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

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public DAPNET API endpoint.
const DefaultBaseURL = "https://hampager.de/api/"

type Config struct {
	BaseURL  string
	Username string
	Password string
	// Timeout bounds a single HTTP request. Zero means 10s.
	Timeout time.Duration
	// RatePerSec limits outgoing requests. Zero disables limiting.
	RatePerSec float64
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dapnet %s: http %d", e.Op, e.Code)
	}
	return fmt.Sprintf("dapnet %s: http %d: %s", e.Op, e.Code, e.Body)
}

// Client talks to the DAPNET API with HTTP basic auth. Safe for concurrent use.
type Client struct {
	base     *url.URL
	username string
	password string
	http     *http.Client
	limiter  *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errors.New("dapnet: username is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dapnet: password is required")
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("dapnet: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("dapnet: invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return c, nil
}

// Username returns the account the client authenticates as.
func (c *Client) Username() string { return c.username }

// SendNews posts n to its rubric.
func (c *Client) SendNews(ctx context.Context, n News) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return c.post(ctx, "news", n)
}

// SendCall pages the call's recipients.
func (c *Client) SendCall(ctx context.Context, call Call) error {
	if err := call.Validate(); err != nil {
		return err
	}
	return c.post(ctx, "calls", call)
}

func (c *Client) post(ctx context.Context, op string, body any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("dapnet %s: %w", op, err)
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("dapnet %s: encode: %w", op, err)
	}
	u := c.base.ResolveReference(&url.URL{Path: op})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("dapnet %s: %w", op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dapnet %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
