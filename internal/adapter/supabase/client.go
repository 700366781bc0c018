// Package supabase implements the identity provider and event store ports
// over the Supabase Auth and PostgREST HTTP APIs.
package supabase

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

	"github.com/Strob0t/Herald/internal/config"
	"github.com/Strob0t/Herald/internal/resilience"
)

// APIError is a non-2xx answer from Supabase.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// Client talks to one Supabase project.
type Client struct {
	restURL    string
	authURL    string
	anonKey    string
	serviceKey string
	jwtSecret  []byte
	http       *http.Client
	breaker    *resilience.Breaker
	now        func() time.Time
}

// New creates a Client. b guards every call; nil disables the breaker.
func New(cfg config.Supabase, b *resilience.Breaker) (*Client, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, errors.New("supabase: project URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("supabase: invalid project URL: %w", err)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase: anon key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if b == nil {
		b = resilience.NewNamedBreaker("supabase", 5, 30*time.Second)
	}
	return &Client{
		restURL:    base + "/rest/v1",
		authURL:    base + "/auth/v1",
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		jwtSecret:  []byte(cfg.JWTSecret),
		http:       &http.Client{Timeout: timeout},
		breaker:    b,
		now:        time.Now,
	}, nil
}

// request is one call to Supabase. bearer defaults to the data key.
type request struct {
	method string
	url    string
	body   any
	bearer string
	prefer string
}

// dataKey is the key used for table access: the service role key when
// configured so row level security does not hide other users' rows.
func (c *Client) dataKey() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

// do performs r and decodes a 2xx body into out. Client errors (4xx) do
// not count against the breaker.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("supabase: marshal request: %w", err)
		}
	}

	return c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, r.method, r.url, bytes.NewReader(payload))
		if err != nil {
			return resilience.Permanent(fmt.Errorf("supabase: build request: %w", err))
		}
		bearer := r.bearer
		if bearer == "" {
			bearer = c.dataKey()
		}
		req.Header.Set("apikey", c.anonKey)
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if r.prefer != "" {
			req.Header.Set("Prefer", r.prefer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("supabase: %s %s: %w", r.method, redact(r.url), err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("supabase: read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
			if resp.StatusCode < 500 {
				return resilience.Permanent(apiErr)
			}
			return apiErr
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resilience.Permanent(fmt.Errorf("supabase: decode response: %w", err))
		}
		return nil
	})
}

// errorMessage extracts the message of a Supabase error body. Auth uses
// error_description or msg, PostgREST uses message.
func errorMessage(body []byte) string {
	var e struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// redact drops the query so filter values do not end up in logs.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// table builds a PostgREST URL for table with the given filters.
func (c *Client) table(name string, q url.Values) string {
	if len(q) == 0 {
		return c.restURL + "/" + name
	}
	return c.restURL + "/" + name + "?" + q.Encode()
}
