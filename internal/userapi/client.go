// Package userapi is the HTTP client for the remote Users service.
package userapi

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
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// DefaultBaseURL is used when no override is configured.
const DefaultBaseURL = "http://localhost:8080"

const maxDetailBytes = 4 << 10

// Observer receives one notification per completed remote call.
type Observer interface {
	ObserveCall(operation string, status int, elapsed time.Duration, err error)
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used to report failed calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver attaches a call observer such as the metrics recorder.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// Client wraps interactions with the Users REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// NewClient constructs a new client. No timeout is configured; callers bound
// each call through its context.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListUsers returns every user in server order.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, "list users", http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

// ListActiveUsers returns users whose isActive flag is set.
func (c *Client) ListActiveUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, "list active users", http.MethodGet, "/api/users/active", nil, &users); err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

// GetUser loads a user by id.
func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	var user User
	err := c.do(ctx, "get user", http.MethodGet, userPath(id), nil, &user)
	return user, err
}

// GetUserByUsername loads a user by its unique username.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := c.do(ctx, "get user by username", http.MethodGet, "/api/users/username/"+url.PathEscape(username), nil, &user)
	return user, err
}

// SearchUsers delegates name matching to the server. An empty result is not an error.
func (c *Client) SearchUsers(ctx context.Context, name string) ([]User, error) {
	var users []User
	path := "/api/users/search?" + url.Values{"name": []string{name}}.Encode()
	if err := c.do(ctx, "search users", http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

// CountActiveUsers returns the number of active users.
func (c *Client) CountActiveUsers(ctx context.Context) (int64, error) {
	var count int64
	err := c.do(ctx, "count active users", http.MethodGet, "/api/users/count/active", nil, &count)
	return count, err
}

// CreateUser persists a new user from draft.
func (c *Client) CreateUser(ctx context.Context, draft Draft) (User, error) {
	var user User
	err := c.do(ctx, "create user", http.MethodPost, "/api/users", draft, &user)
	return user, err
}

// UpdateUser replaces the user identified by id with req.
func (c *Client) UpdateUser(ctx context.Context, id int64, req UpdateRequest) (User, error) {
	req.ID = id
	var user User
	err := c.do(ctx, "update user", http.MethodPut, userPath(id), req, &user)
	return user, err
}

// DeactivateUser clears the isActive flag of a user.
func (c *Client) DeactivateUser(ctx context.Context, id int64) error {
	return c.do(ctx, "deactivate user", http.MethodPut, userPath(id)+"/deactivate", nil, nil)
}

// DeleteUser removes a user permanently.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, "delete user", http.MethodDelete, userPath(id), nil, nil)
}

// GetAppInfo fetches the aggregate application snapshot.
func (c *Client) GetAppInfo(ctx context.Context) (AppInfo, error) {
	var info AppInfo
	err := c.do(ctx, "get app info", http.MethodGet, "/api/v1/info", nil, &info)
	return info, err
}

// HealthCheck queries the service health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	var health Health
	err := c.do(ctx, "health check", http.MethodGet, "/api/v1/health", nil, &health)
	return health, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.ObserveCall(op, status, time.Since(start), err)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("users api call failed",
				slog.String("op", op),
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Any("error", err))
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return fmt.Errorf("userapi: %s: encode request: %w", op, marshalErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("userapi: %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("userapi: %s: empty body: %w", op, ErrDecode)
		}
		return fmt.Errorf("userapi: %s: %w: %v", op, ErrDecode, err)
	}
	return nil
}

// readDetail extracts a human readable reason from an error body.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxDetailBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var problem struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
		Title   string `json:"title"`
	}
	if json.Unmarshal(raw, &problem) == nil {
		for _, candidate := range []string{problem.Detail, problem.Message, problem.Error, problem.Title} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

func userPath(id int64) string {
	return "/api/users/" + strconv.FormatInt(id, 10)
}

func nonNil(users []User) []User {
	if users == nil {
		return []User{}
	}
	return users
}
