package schedule

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultURL is the public EMF schedule feed.
const DefaultURL = "https://schedule.emfcamp.dan-nixon.com/schedule"

// maxBody caps the schedule download; a full festival schedule is well below this.
const maxBody = 16 << 20

// Client downloads the schedule feed.
type Client struct {
	url  string
	loc  *time.Location
	http *http.Client
}

func NewClient(rawURL string, loc *time.Location, timeout time.Duration) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		rawURL = DefaultURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("schedule: invalid api url %q", rawURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{url: u.String(), loc: loc, http: &http.Client{Timeout: timeout}}, nil
}

// Fetch downloads and decodes the full schedule.
func (c *Client) Fetch(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch schedule: http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: read body: %w", err)
	}
	return DecodeEvents(b, c.loc)
}
