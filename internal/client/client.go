// Package client wraps HTTP access to the upstream farm monitor API. It
// attaches bearer tokens from the token store, converts request and response
// bodies between camelCase and snake_case at the wire boundary, and retries
// requests that raced an expiring access token after a shared refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"farm-monitor-agent/config"
	"farm-monitor-agent/internal/convert"
	"farm-monitor-agent/internal/token"
)

// TokenType selects which stored token is sent as the bearer credential.
type TokenType int

const (
	// TokenNone sends no Authorization header.
	TokenNone TokenType = iota
	// TokenAccess sends the access token.
	TokenAccess
	// TokenRefresh sends the refresh token, used only against the refresh
	// endpoint.
	TokenRefresh
)

// InvalidCredentialsMessage is recorded when the upstream rejects the session.
const InvalidCredentialsMessage = "Invalid username or password"

// ServerTimeoutMessage is recorded when the upstream does not answer in time.
const ServerTimeoutMessage = "Server Timeout"

// PaginationHeader mirrors the X-Pagination response header of paginated
// endpoints.
type PaginationHeader struct {
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	FirstPage  int `json:"firstPage"`
	LastPage   int `json:"lastPage"`
	Page       int `json:"page"`
}

// Client issues authenticated requests against the upstream API.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    *token.Store
	refresh   singleflight.Group
	refresher func(context.Context) error
}

// New creates a Client from the API configuration.
func New(cfg config.APIConfig, tokens *token.Store) *Client {
	return NewWithBaseURL(cfg.BaseURL(), cfg.HTTPTimeout, tokens)
}

// NewWithBaseURL creates a Client against an explicit base URL. The base URL
// must carry a trailing slash.
func NewWithBaseURL(baseURL string, timeout time.Duration, tokens *token.Store) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// SetRefresher attaches the token refresh operation used to recover requests
// that hit a 401 with an expired access token. Concurrent callers share a
// single in-flight refresh.
func (c *Client) SetRefresher(fn func(context.Context) error) {
	c.refresher = fn
}

// Tokens exposes the token store backing this client.
func (c *Client) Tokens() *token.Store {
	return c.tokens
}

// Get issues a GET request and decodes the camelized JSON response into T.
func Get[T any](ctx context.Context, c *Client, endpoint string, tt TokenType) (T, error) {
	return request[T](ctx, c, http.MethodGet, endpoint, nil, nil, tt)
}

// GetPaginate issues a GET request with page/page_size query parameters and
// parses the X-Pagination response header.
func GetPaginate[T any](ctx context.Context, c *Client, endpoint string, page, pageSize int, tt TokenType) (T, PaginationHeader, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	params := map[string]any{"page": page, "pageSize": pageSize}
	var header PaginationHeader

	items, resp, err := do[T](ctx, c, http.MethodGet, endpoint, params, nil, tt)
	if err != nil || resp == nil {
		return items, header, err
	}

	raw := resp.Header.Get("X-Pagination")
	if raw == "" {
		return items, header, nil
	}
	if err := unmarshalCamelized([]byte(raw), &header); err != nil {
		return items, header, fmt.Errorf("failed to parse X-Pagination header: %w", err)
	}
	return items, header, nil
}

// Post issues a POST request with data as the JSON body, snake_cased on the
// wire, and decodes the camelized JSON response into T.
func Post[T any](ctx context.Context, c *Client, endpoint string, data any, tt TokenType) (T, error) {
	return request[T](ctx, c, http.MethodPost, endpoint, nil, data, tt)
}

func request[T any](ctx context.Context, c *Client, method, endpoint string, params map[string]any, data any, tt TokenType) (T, error) {
	out, _, err := do[T](ctx, c, method, endpoint, params, data, tt)
	return out, err
}

// do performs the request with one token-refresh retry. The returned response
// carries headers only; its body has already been consumed.
func do[T any](ctx context.Context, c *Client, method, endpoint string, params map[string]any, data any, tt TokenType) (T, *http.Response, error) {
	var zero T

	body, err := encodeBody(data)
	if err != nil {
		return zero, nil, err
	}

	resp, respBody, err := c.attempt(ctx, method, endpoint, params, body, tt)
	if err != nil {
		return zero, nil, err
	}

	// An access-token 401 may just mean the token expired under us. Join the
	// shared refresh and retry the original request once.
	if resp.StatusCode == http.StatusUnauthorized && tt == TokenAccess && c.refresher != nil {
		if _, refreshErr, _ := c.refresh.Do("refresh", func() (any, error) {
			return nil, c.refresher(ctx)
		}); refreshErr == nil {
			resp, respBody, err = c.attempt(ctx, method, endpoint, params, body, tt)
			if err != nil {
				return zero, nil, err
			}
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The session is no longer usable. Force a logout and swallow the
		// error; the recorded message is the only signal surfaced.
		c.tokens.Logout(InvalidCredentialsMessage)
		return zero, resp, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		msg := validationMessage(respBody)
		c.tokens.SetErrorMessage(msg)
		return zero, resp, fmt.Errorf("%s", msg)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := errorMessage(respBody, resp.StatusCode)
		log.Printf("upstream request %s %s failed: %s", method, endpoint, msg)
		c.tokens.SetErrorMessage(msg)
		return zero, resp, fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, msg)
	}

	out := zero
	if err := decodeResponse(respBody, resp.Header.Get("Content-Type"), &out); err != nil {
		return zero, resp, err
	}
	return out, resp, nil
}

// attempt performs a single HTTP round trip and drains the body.
func (c *Client) attempt(ctx context.Context, method, endpoint string, params map[string]any, body []byte, tt TokenType) (*http.Response, []byte, error) {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		values := url.Values{}
		snaked := convert.ToSnakeCase(params).(map[string]any)
		for k, v := range snaked {
			values.Set(k, fmt.Sprintf("%v", v))
		}
		reqURL += "?" + values.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	switch tt {
	case TokenAccess:
		req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	case TokenRefresh:
		req.Header.Set("Authorization", "Bearer "+c.tokens.RefreshToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			c.tokens.SetErrorMessage(ServerTimeoutMessage)
			return nil, nil, fmt.Errorf("%s: %w", ServerTimeoutMessage, err)
		}
		return nil, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, respBody, nil
}

// encodeBody marshals data with its keys snake_cased. Multipart payloads are
// never encoded here, so conversion always applies.
func encodeBody(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to re-decode request payload: %w", err)
	}

	snaked, err := json.Marshal(convert.ToSnakeCase(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snake_cased payload: %w", err)
	}
	return snaked, nil
}

// decodeResponse camelizes and decodes a JSON response body into out. Bodies
// with a non-JSON declared content type are left untouched.
func decodeResponse(body []byte, contentType string, out any) error {
	if len(body) == 0 || !strings.Contains(contentType, "application/json") {
		return nil
	}
	return unmarshalCamelized(body, out)
}

func unmarshalCamelized(body []byte, out any) error {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	camelized, err := json.Marshal(convert.ToCamelCase(decoded))
	if err != nil {
		return fmt.Errorf("failed to marshal camelized response: %w", err)
	}
	if err := json.Unmarshal(camelized, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError is the structured error body the upstream returns on failures.
type apiError struct {
	Message string `json:"message"`
	Errors  struct {
		JSON map[string][]string `json:"json"`
	} `json:"errors"`
}

// validationMessage extracts a field-level message from a 422 body.
func validationMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if msgs := apiErr.Errors.JSON["username"]; len(msgs) > 0 {
			return "Username: " + msgs[0]
		}
		if msgs := apiErr.Errors.JSON["password"]; len(msgs) > 0 {
			return "Password: " + msgs[0]
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return "Validation failed"
}

// errorMessage extracts the upstream message from an error body, falling back
// to the HTTP status text.
func errorMessage(body []byte, status int) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return http.StatusText(status)
}
