// Package client reads establishment requests from the API and follows the
// notification channel, feeding both into a reconciler.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/clubflow/pkg/models"
	"github.com/dukex/clubflow/pkg/persistence"
	"github.com/dukex/clubflow/pkg/reconciler"
	"github.com/dukex/clubflow/pkg/services"
	"github.com/dukex/clubflow/pkg/web"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
)

// ErrServer is returned when the API keeps answering with a 5xx status.
var ErrServer = errors.New("server error")

// APIError is a problem document returned by the API.
type APIError struct {
	StatusCode    int           `json:"status"`
	Type          string        `json:"type"`
	Detail        string        `json:"detail"`
	CurrentStatus models.Status `json:"current_status,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Type, e.Detail)
}

// Is maps problem types back to the service sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Type {
	case "request_not_found":
		return target == persistence.ErrRequestNotFound
	case "club_not_found":
		return target == persistence.ErrClubNotFound
	case "concurrent_modification":
		return target == services.ErrConcurrentModification
	case "invalid_transition":
		return target == services.ErrInvalidTransition
	case "forbidden":
		return target == services.ErrForbidden
	case "unauthenticated":
		return target == services.ErrUnauthenticated
	default:
		return false
	}
}

// Client is an HTTP reconciler.Fetcher acting on behalf of one actor.
type Client struct {
	baseURL  string
	actor    models.ActorContext
	http     *http.Client
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

var _ reconciler.Fetcher = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

// WithRetry sets how often a 5xx response is retried.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(client *Client) {
		client.attempts = max(attempts, 1)
		client.delay = delay
	}
}

func New(baseURL string, actor models.ActorContext, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		actor:    actor,
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   logger.With("module", "api_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetRequest fetches the current snapshot of a request.
func (c *Client) GetRequest(ctx context.Context, id string) (*models.EstablishmentRequest, error) {
	var detail services.RequestDetail

	err := c.get(ctx, "/requests/"+url.PathEscape(id), &detail)
	if err != nil {
		return nil, err
	}

	if detail.Request == nil {
		return nil, fmt.Errorf("%w: empty request %s", ErrServer, id)
	}

	return detail.Request, nil
}

// ListRequests fetches one page of requests visible to the actor.
func (c *Client) ListRequests(ctx context.Context, query reconciler.ListQuery) (*persistence.RequestListResult, error) {
	params := url.Values{}
	if query.Status != "" {
		params.Set("status", query.Status)
	}

	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}

	if query.Offset > 0 {
		params.Set("offset", strconv.Itoa(query.Offset))
	}

	path := "/requests"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result persistence.RequestListResult

	err := c.get(ctx, path, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			c.logger.InfoContext(ctx, "Retrying API call", "path", path, "attempt", attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delay):
			}
		}

		retry, err := c.do(ctx, path, out)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retry {
			return err
		}
	}

	return fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
}

func (c *Client) do(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}

	req.Header.Set("Accept", "application/json")
	setActorHeaders(req.Header, c.actor)

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.ErrorContext(ctx, "failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Type == "" {
			apiErr.Detail = strings.TrimSpace(string(body))
		}

		return false, apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return false, nil
}

func setActorHeaders(header http.Header, actor models.ActorContext) {
	header.Set(web.HeaderActorID, actor.ID)

	if actor.Name != "" {
		header.Set(web.HeaderActorName, actor.Name)
	}

	if actor.GlobalRole != "" {
		header.Set(web.HeaderActorRole, string(actor.GlobalRole))
	}

	if groups := formatGroups(actor.GroupRoles); groups != "" {
		header.Set(web.HeaderActorGroups, groups)
	}
}

func formatGroups(groups map[string]models.GroupRole) string {
	pairs := make([]string, 0, len(groups))
	for id, role := range groups {
		pairs = append(pairs, id+":"+string(role))
	}

	return strings.Join(pairs, ",")
}
