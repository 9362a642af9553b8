/*
Package remote is the HTTP client for the shop's remote order/menu store.

CONTRACT:
  POST {base}/orders   body: the full pos.Order as JSON
                       reply: {"status": "success"|"error", "message": "..."}
  GET  {base}/menu     reply: {"status", "categories": [...], "menuItems": [...]}

  Any transport error, non-2xx status, undecodable body or a status other
  than "success" is a failure. The remote side de-duplicates saves by order
  id, so SaveOrder is safe to repeat.

THROTTLING:
  Every request waits on a token-bucket limiter first so a large backlog
  after an outage does not flood the remote store.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/counterline/posledger/pos"
)

const (
	statusSuccess = "success"

	// DefaultRPS is the default outbound request rate.
	DefaultRPS = 5

	maxBodyBytes = 1 << 20
)

var (
	// ErrRejected is returned when the remote answered with a non-success status.
	ErrRejected = errors.New("remote rejected request")
	// ErrMalformedResponse is returned when the reply body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed remote response")
)

// StatusError is returned for non-2xx HTTP replies.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.Code, e.Body)
}

// Envelope is the reply to a save.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MenuItem is one catalog entry.
type MenuItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    pos.Money `json:"price"`
	Category string    `json:"category"`
}

// Menu is the catalog as served by the remote store.
type Menu struct {
	Status     string     `json:"status"`
	Categories []string   `json:"categories"`
	MenuItems  []MenuItem `json:"menuItems"`
}

// Client talks to the remote store.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// NewClient builds a client for baseURL. rps <= 0 disables throttling.
func NewClient(baseURL string, rps float64) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Limiter: limiter,
	}
}

// SaveOrder delivers o. It returns nil only on an explicit success reply.
func (c *Client) SaveOrder(ctx context.Context, o pos.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}

	var env Envelope
	if err := c.do(ctx, http.MethodPost, "/orders", body, &env); err != nil {
		return err
	}
	if env.Status != statusSuccess {
		if env.Message != "" {
			return fmt.Errorf("%w: %s: %s", ErrRejected, env.Status, env.Message)
		}
		return fmt.Errorf("%w: status %q", ErrRejected, env.Status)
	}
	return nil
}

// FetchMenu returns the current catalog.
func (c *Client) FetchMenu(ctx context.Context) (Menu, error) {
	var m Menu
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &m); err != nil {
		return Menu{}, err
	}
	if m.Status != statusSuccess {
		return Menu{}, fmt.Errorf("%w: menu status %q", ErrRejected, m.Status)
	}
	return m, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
