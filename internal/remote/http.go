package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/synka/internal/apperr"
	"github.com/starford/synka/internal/models"
)

// StatusError is a non-2xx response from the data service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Body)
}

// ClientOptions configures the HTTP client.
type ClientOptions struct {
	BaseURL     string
	APIKey      string
	AccessToken string
	// Timeout bounds each call. Zero means no timeout.
	Timeout time.Duration
	Retry   RetryPolicy
	Logger  *slog.Logger
}

// Client talks to a PostgREST-style REST endpoint under {BaseURL}/rest/v1.
type Client struct {
	base   *url.URL
	apiKey string
	token  string
	http   *http.Client
	retry  RetryPolicy
	logger *slog.Logger
}

// NewClient validates opts and returns a client.
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: base url must be absolute: %q", opts.BaseURL)
	}
	retry := opts.Retry
	if retry == nil {
		retry = NoRetry{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   base,
		apiKey: opts.APIKey,
		token:  opts.AccessToken,
		http:   &http.Client{Timeout: opts.Timeout},
		retry:  retry,
		logger: logger,
	}, nil
}

// NewHTTPService returns a Service backed by the REST endpoint.
func NewHTTPService(c *Client) *Service {
	return &Service{
		Contacts:      NewHTTPTable[models.Contact](c, ContactsTable),
		Profiles:      NewHTTPTable[models.Profile](c, ProfilesTable),
		Events:        NewHTTPTable[models.Event](c, EventsTable),
		Tags:          NewHTTPTable[models.Tag](c, TagsTable),
		Templates:     NewHTTPTable[models.Template](c, TemplatesTable),
		Signatures:    NewHTTPTable[models.Signature](c, SignaturesTable),
		ContactTags:   NewHTTPRelation(c, ContactTagsRelation),
		ContactEvents: NewHTTPRelation(c, ContactEventsRelation),
		Ping:          c.Ping,
	}
}

// Ping checks that the REST root answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "", nil, nil, "", nil)
}

func (c *Client) endpoint(table string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + "/rest/v1/" + table
	u.RawQuery = query.Encode()
	return u.String()
}

// do issues a request, retrying according to the client's policy.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, prefer string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("remote: encode %s body: %w", table, err)
		}
	}

	for attempt := 1; ; attempt++ {
		err := c.once(ctx, method, c.endpoint(table, query), payload, prefer, out)
		if err == nil {
			return nil
		}
		wait, again := c.retry.Backoff(attempt, err)
		if !again {
			return err
		}
		c.logger.Debug("remote: retrying",
			slog.String("method", method),
			slog.String("table", table),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, prefer string, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return errors.Join(apperr.ErrNotFound, se)
		case http.StatusConflict:
			return errors.Join(apperr.ErrConflict, se)
		}
		return se
	}
	if out == nil || method == http.MethodHead {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
