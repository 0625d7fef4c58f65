// Package api is the request/response client for the portal's
// notification endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
)

// SessionCookie is the cookie that carries the portal session.
const SessionCookie = "notehub_session"

// AuthError is returned when the portal rejects the session (HTTP 401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	BreakerTimeout time.Duration
	MaxRetries     int
	Logger         *logging.Logger
}

// Client is a thin JSON client for the notification API. The session is
// carried by the cookie jar, which the realtime dialer shares. Every call
// goes through a circuit breaker so a dead portal fails fast.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	logg       *logging.Logger
}

// NewClient creates a client rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	logg := opts.Logger
	if logg == nil {
		logg = logging.Nop()
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
		},
		jar:        jar,
		maxRetries: opts.MaxRetries,
		logg:       logg,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the portal is up; only transport and 5xx failures count.
			if err == nil || IsAuthError(err) {
				return true
			}
			var statusErr *StatusError
			return errors.As(err, &statusErr) && statusErr.Status < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	})

	return c, nil
}

// Jar returns the cookie jar holding the session.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetSession installs the session token as a cookie for the portal host.
// An empty token removes it.
func (c *Client) SetSession(token string) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	c.jar.SetCookies(c.baseURL, []*http.Cookie{cookie})
}

type listResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// ListNotifications fetches every notification for recipientID.
func (c *Client) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	var resp listResponse
	path := "/api/notifications/" + url.PathEscape(recipientID)
	if err := c.execute(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkRead sets read=true on the notification with id.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id) + "/read"
	return c.execute(ctx, http.MethodPatch, path, map[string]bool{"read": true}, nil)
}

// DeleteRead removes every read notification of recipientID.
func (c *Client) DeleteRead(ctx context.Context, recipientID string) error {
	path := "/api/notifications/" + url.PathEscape(recipientID) + "/read"
	return c.execute(ctx, http.MethodDelete, path, nil, nil)
}

// execute runs one logical call through the circuit breaker.
func (c *Client) execute(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, result)
	})
	return err
}

// do builds the request, retries on 429 and decodes the JSON response.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	target := c.baseURL.String() + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{Message: "session rejected by " + c.baseURL.Host}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{
				Method: method,
				Path:   path,
				Status: resp.StatusCode,
				Body:   strings.TrimSpace(string(respBody)),
			}
		}

		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and falls back to
// exponential backoff (250ms, 500ms, 1s, ...) capped at 10s.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if backoff > 10*time.Second {
		backoff = 10 * time.Second
	}
	return backoff
}
