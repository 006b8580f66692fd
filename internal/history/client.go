package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rs/zerolog/log"

	"github.com/stacktrail/stacktrail/internal/domain"
)

const (
	// DefaultTimeout bounds a single backend request, including retries of
	// the individual attempt's body read.
	DefaultTimeout = 15 * time.Second

	userAgent = "stacktrail/1.0"

	// maxResponseBytes caps how much of a response body is read, so a
	// misbehaving backend cannot exhaust memory.
	maxResponseBytes = 10 * 1024 * 1024
	maxErrorBytes    = 4 * 1024

	retryAttempts = 3
	retryDelay    = 200 * time.Millisecond
	retryMaxDelay = 2 * time.Second
)

// Client talks to the change-history backend's REST API. All methods are
// safe for concurrent use. Transient failures (network errors, 5xx, 429)
// are retried with exponential backoff; everything else fails immediately.
type Client struct {
	base  *url.URL
	creds Credentials
	httpc *http.Client
	clock clock.Clock
}

// NewClient validates baseURL and returns a client that presents creds on
// every request. A non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, creds Credentials, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("history.NewClient: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("history.NewClient: base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("history.NewClient: base URL %q: missing host", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		base:  u,
		creds: creds,
		httpc: &http.Client{Timeout: timeout},
		clock: clock.WallClock,
	}, nil
}

type recordsEnvelope struct {
	Records []domain.ChangeRecord `json:"records"`
}

type dailySummaryEnvelope struct {
	DailyBreakdown []domain.DailyChangeCount `json:"dailyBreakdown"`
}

type velocityEnvelope struct {
	VelocityStats []domain.TypeVelocity `json:"velocityStats"`
}

// RecentChanges fetches every change recorded in the trailing window of
// hours, optionally scoped to one domain. The backend may return records in
// any order.
func (c *Client) RecentChanges(ctx context.Context, hours int, scopeDomain string) ([]domain.ChangeRecord, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("history.Client.RecentChanges: hours %d: %w", hours, domain.ErrInvalidWindow)
	}

	query := url.Values{}
	query.Set("hours", strconv.Itoa(hours))
	if scopeDomain != "" {
		query.Set("domain", scopeDomain)
	}

	var env recordsEnvelope
	if err := c.getJSON(ctx, "/v1/changes/recent", query, &env); err != nil {
		return nil, fmt.Errorf("history.Client.RecentChanges: %w", err)
	}
	return nonNil(env.Records), nil
}

// DailySummary fetches the backend's own per-day, per-type change counts
// for the trailing days window.
func (c *Client) DailySummary(ctx context.Context, days int) ([]domain.DailyChangeCount, error) {
	if days <= 0 {
		return nil, fmt.Errorf("history.Client.DailySummary: days %d must be positive", days)
	}

	query := url.Values{}
	query.Set("days", strconv.Itoa(days))

	var env dailySummaryEnvelope
	if err := c.getJSON(ctx, "/v1/changes/summary/daily", query, &env); err != nil {
		return nil, fmt.Errorf("history.Client.DailySummary: %w", err)
	}
	return nonNil(env.DailyBreakdown), nil
}

// ChangeVelocity fetches the backend's per-type change velocity statistics.
func (c *Client) ChangeVelocity(ctx context.Context) ([]domain.TypeVelocity, error) {
	var env velocityEnvelope
	if err := c.getJSON(ctx, "/v1/changes/velocity", nil, &env); err != nil {
		return nil, fmt.Errorf("history.Client.ChangeVelocity: %w", err)
	}
	return nonNil(env.VelocityStats), nil
}

// MostChanged fetches the change records of the most frequently changed
// resources, optionally scoped to one domain. A non-positive limit defers
// to the backend's default.
func (c *Client) MostChanged(ctx context.Context, limit int, scopeDomain string) ([]domain.ChangeRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if scopeDomain != "" {
		query.Set("domain", scopeDomain)
	}

	var env recordsEnvelope
	if err := c.getJSON(ctx, "/v1/changes/most-changed", query, &env); err != nil {
		return nil, fmt.Errorf("history.Client.MostChanged: %w", err)
	}
	return nonNil(env.Records), nil
}

// ResourceHistory fetches the full persisted change sequence for one
// resource, in ascending changeSequence order. Resources the backend does
// not track report ErrHistoryNotTracked.
func (c *Client) ResourceHistory(ctx context.Context, resourceType, resourceID string) ([]domain.ChangeRecord, error) {
	if resourceType == "" || resourceID == "" {
		return nil, fmt.Errorf("history.Client.ResourceHistory: resource type and ID are required")
	}

	path := fmt.Sprintf("/v1/resources/%s/%s/history",
		url.PathEscape(resourceType), url.PathEscape(resourceID))

	var env recordsEnvelope
	if err := c.getJSON(ctx, path, nil, &env); err != nil {
		var be *BackendError
		if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("history.Client.ResourceHistory: %s/%s: %w",
				resourceType, resourceID, ErrHistoryNotTracked)
		}
		return nil, fmt.Errorf("history.Client.ResourceHistory: %w", err)
	}
	return nonNil(env.Records), nil
}

// getJSON performs a GET with retries and decodes the 200 response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return c.attempt(ctx, u.String(), out)
		},
		IsFatalError: func(err error) bool {
			return !transient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			log.Debug().Err(err).Int("attempt", attempt).Str("path", path).
				Msg("history: retrying backend request")
		},
		Attempts:    retryAttempts,
		Delay:       retryDelay,
		MaxDelay:    retryMaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return err
}

// attempt performs a single request. Decode errors are terminal: a body the
// backend cannot serialize correctly will not improve on retry.
func (c *Client) attempt(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	c.creds.apply(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readBackendError(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readBackendError drains a bounded amount of the error body for context.
// The backend reports errors as {"error": "..."} but plain text also occurs.
func readBackendError(resp *http.Response) *BackendError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}

	return &BackendError{StatusCode: resp.StatusCode, Message: msg}
}

// transient classifies errors worth retrying: transport-level failures and
// backend errors that say "try again".
func transient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
