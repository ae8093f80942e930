package client

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

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ErrInvalidRequest is returned when a payload fails validation before it is sent.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds common client configuration
type Config struct {
	BaseURL   string
	Prefix    string
	Timeout   time.Duration
	Retries   int
	Cache     bool
	CacheDir  string
	UserAgent string
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		Prefix:    "/api",
		Timeout:   30 * time.Second,
		Retries:   2,
		UserAgent: "romato-cli",
	}
}

// URL builds the absolute URL of an API endpoint, adding the leading slash
// when the endpoint lacks one.
func (c Config) URL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(c.BaseURL, "/") + c.Prefix + endpoint
}

// Client talks to the restaurant REST API.
type Client struct {
	cfg    Config
	anon   *http.Client
	authed *http.Client
}

// New creates an API client. Requests that need identity fail with
// ErrNoTokenSource until WithTokenSource is used.
func New(cfg Config) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = "/api"
	}

	var base http.RoundTripper = http.DefaultTransport
	anonBase := base
	if cfg.Cache {
		anonBase = NewCachingTransport(cfg.CacheDir, base)
	}

	c := &Client{
		cfg: cfg,
		anon: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newInstrumentedTransport(anonBase, cfg.UserAgent),
		},
	}

	log.Debug().
		Str("baseURL", cfg.BaseURL).
		Bool("cache", cfg.Cache).
		Msg("api client initialized")

	return c
}

// WithTokenSource returns a copy of the client whose authenticated calls carry
// "Authorization: Bearer <access>" from ts.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	cp := *c
	cp.authed = &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   newInstrumentedTransport(http.DefaultTransport, c.cfg.UserAgent),
		},
	}
	return &cp
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

var (
	// ErrNoTokenSource is returned by authenticated calls on a client without a token source.
	ErrNoTokenSource = errors.New("no token source configured")

	// ErrNotAuthenticated is returned by token sources that hold no access token.
	ErrNotAuthenticated = errors.New("not authenticated")
)

type request struct {
	method      string
	endpoint    string
	query       *Query
	body        []byte
	contentType string
	auth        bool
	fallback    string
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q *Query, auth bool, fallback string, out any) error {
	return c.do(ctx, request{method: http.MethodGet, endpoint: endpoint, query: q, auth: auth, fallback: fallback}, out)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, payload any, auth bool, fallback string, out any) error {
	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.do(ctx, request{
		method:      method,
		endpoint:    endpoint,
		body:        body,
		contentType: "application/json",
		auth:        auth,
		fallback:    fallback,
	}, out)
}

// do executes the request. GETs are retried on transport errors and gateway
// failures, every other method is attempted exactly once.
func (c *Client) do(ctx context.Context, r request, out any) error {
	hc := c.anon
	if r.auth {
		if c.authed == nil {
			return ErrNoTokenSource
		}
		hc = c.authed
	}

	target := c.cfg.URL(r.endpoint)
	if r.query != nil && r.query.Len() > 0 {
		target += "?" + r.query.Encode()
	}

	idempotent := r.method == http.MethodGet

	op := func() ([]byte, error) {
		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}

		resp, err := hc.Do(req)
		if err != nil {
			if errors.Is(err, ErrNotAuthenticated) {
				return nil, backoff.Permanent(ErrNotAuthenticated)
			}
			err = fmt.Errorf("%s: %w", r.fallback, err)
			if !idempotent || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read response: %w", r.fallback, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := newAPIError(resp.StatusCode, data, r.fallback)
			if idempotent && retryableStatus(resp.StatusCode) {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}

		return data, nil
	}

	tries := uint(1)
	if idempotent && c.cfg.Retries > 0 {
		tries += uint(c.cfg.Retries)
	}

	data, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Warn().Err(err).Str("endpoint", r.endpoint).Dur("retryIn", d).Msg("api request failed, retrying")
		}),
	)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", r.fallback, err)
	}

	return nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
