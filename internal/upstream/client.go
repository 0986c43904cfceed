// Package upstream fetches authoritative subscription records from the billing provider.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/stacklok/billing-sync-server/internal/httpclient"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3

	// DefaultInitialInterval is the first backoff delay
	DefaultInitialInterval = 500 * time.Millisecond

	subscriptionsPath = "/v1/subscriptions"
)

// ErrMalformedResponse is returned when the provider answers with a body
// that is not a subscription list.
var ErrMalformedResponse = errors.New("malformed upstream response")

// Record is the most recent subscription object of one customer, kept in
// its raw JSON form so the caller decides which fields it needs.
type Record struct {
	EntityID string
	Raw      []byte
}

// Get returns the value at the given gjson path of the record.
func (r *Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Client fetches subscription records from the billing provider
type Client interface {
	// FetchLatest returns the most recent subscription of the entity, or
	// nil without error when the provider has none.
	FetchLatest(ctx context.Context, entityID string) (*Record, error)
}

type defaultClient struct {
	endpoint        string
	http            httpclient.Client
	maxRetries      int
	initialInterval time.Duration
}

// Option configures the client
type Option func(*defaultClient)

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) Option {
	return func(c *defaultClient) {
		c.maxRetries = max(n, 0)
	}
}

// WithInitialInterval sets the first backoff delay
func WithInitialInterval(d time.Duration) Option {
	return func(c *defaultClient) {
		c.initialInterval = d
	}
}

// NewClient creates a client for the billing provider at endpoint
func NewClient(endpoint string, httpClient httpclient.Client, opts ...Option) Client {
	c := &defaultClient{
		endpoint:        strings.TrimSuffix(endpoint, "/"),
		http:            httpClient,
		maxRetries:      DefaultMaxRetries,
		initialInterval: DefaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *defaultClient) listURL(entityID string) string {
	q := url.Values{}
	q.Set("customer", entityID)
	q.Set("limit", "1")
	q.Set("status", "all")
	return c.endpoint + subscriptionsPath + "?" + q.Encode()
}

func (c *defaultClient) FetchLatest(ctx context.Context, entityID string) (*Record, error) {
	listURL := c.listURL(entityID)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		body, err := c.http.Get(ctx, listURL)
		if err == nil {
			return body, nil
		}
		return nil, classify(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries)+1), //nolint:gosec // non-negative
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Debug("Retrying upstream request", "entity_id", entityID, "error", err, "next_attempt_in", next)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for %s: %w", entityID, err)
	}

	return parseList(entityID, body)
}

// classify marks errors that repeating the request cannot fix as permanent,
// and honours Retry-After on rate limiting.
func classify(err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		// Transport failure
		return err
	}
	if !httpErr.IsRetryable() {
		return backoff.Permanent(err)
	}
	if httpErr.RetryAfter > 0 {
		return errors.Join(err, backoff.RetryAfter(int(httpErr.RetryAfter.Seconds())))
	}
	return err
}

func parseList(entityID string, body []byte) (*Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrMalformedResponse)
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}

	first := data.Get("0")
	if !first.Exists() {
		return nil, nil
	}

	return &Record{EntityID: entityID, Raw: []byte(first.Raw)}, nil
}
