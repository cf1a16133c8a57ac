// Package tradeday is a Go SDK for the tradeday-server HTTP API.
package tradeday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Search directions accepted by NearestOpen.
const (
	Backward = "backward"
	Forward  = "forward"
)

// dateLayout is the wire form of dates in requests and responses.
const dateLayout = "2006-01-02"

// OpenDay is the server's answer to an open check.
type OpenDay struct {
	Market  string `json:"market"`
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Open    bool   `json:"open"`
	Reason  string `json:"reason"`
}

// NearestDay is the server's answer to a nearest-open search.
type NearestDay struct {
	Market    string `json:"market"`
	Start     string `json:"start"`
	Direction string `json:"direction"`
	Date      string `json:"date"`
	Steps     int    `json:"steps"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradeday: HTTP %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the tradeday-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tradeday API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsOpen reports whether the calendar day of date is a trading day. A zero
// date asks about today on the server's clock.
func (c *Client) IsOpen(ctx context.Context, date time.Time) (*OpenDay, error) {
	path := "/api/v1/open"
	if !date.IsZero() {
		path += "/" + date.Format(dateLayout)
	}
	var out OpenDay
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NearestOpen returns the nearest trading day from date, searching in
// direction (Backward when empty). A zero date starts from today.
func (c *Client) NearestOpen(ctx context.Context, date time.Time, direction string) (*NearestDay, error) {
	path := "/api/v1/nearest"
	if !date.IsZero() {
		path += "/" + date.Format(dateLayout)
	}
	q := url.Values{}
	if direction != "" {
		q.Set("direction", direction)
	}
	var out NearestDay
	if err := c.get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenDays lists the trading days in [from, to].
func (c *Client) OpenDays(ctx context.Context, from, to time.Time) ([]string, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))

	var out struct {
		Days []string `json:"days"`
	}
	if err := c.get(ctx, "/api/v1/days", q, &out); err != nil {
		return nil, err
	}
	return out.Days, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
