// Package auth orchestrates the upstream session: login, proactive token
// refresh, and logout.
package auth

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/token"
)

const (
	loginEndpoint   = "auth/jwt/"
	refreshEndpoint = "auth/jwt/refresh"
)

// tokenResponse is the camelized body of the token issuance endpoints.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Manager drives the login/refresh/logout workflow over the token store and
// the upstream client. It owns the single pending refresh timer.
type Manager struct {
	tokens *token.Store
	client *client.Client

	group     singleflight.Group
	isLoading atomic.Bool

	timerMu sync.Mutex
	timer   *time.Timer

	now func() time.Time
}

// NewManager creates a Manager and attaches it as the client's refresher so
// that 401-recovering requests and the scheduled timer share one refresh.
func NewManager(tokens *token.Store, c *client.Client) *Manager {
	m := &Manager{
		tokens: tokens,
		client: c,
		now:    time.Now,
	}
	c.SetRefresher(m.Refresh)
	return m
}

// IsLoading reports whether a login or refresh network call is in flight.
func (m *Manager) IsLoading() bool {
	return m.isLoading.Load()
}

// Tokens exposes the token store backing this manager.
func (m *Manager) Tokens() *token.Store {
	return m.tokens
}

// Login establishes a session. It is a no-op when the access token is still
// valid, delegates to Refresh when only the refresh token is, and otherwise
// posts the credentials to the token issuance endpoint.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if m.tokens.IsAccessTokenValid() {
		return nil
	}
	if m.tokens.IsRefreshTokenValid() {
		return m.Refresh(ctx)
	}

	m.isLoading.Store(true)
	defer m.isLoading.Store(false)

	body := map[string]any{"username": username, "password": password}
	resp, err := client.Post[tokenResponse](ctx, m.client, loginEndpoint, body, client.TokenNone)
	if err != nil {
		return err
	}
	if resp.AccessToken == "" {
		// Rejected credentials are swallowed by the client layer; the token
		// store already carries the user-facing message.
		return nil
	}

	m.tokens.SetTokens(resp.AccessToken, resp.RefreshToken)
	m.startRefreshTimer()
	return nil
}

// Refresh exchanges the refresh token for a new access token. Concurrent
// callers (the scheduled timer and 401-recovering requests) share a single
// in-flight call. The refresh timer is always restarted.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.group.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	defer m.startRefreshTimer()

	if !m.tokens.IsRefreshTokenValid() {
		m.tokens.HandleExpiredRefreshToken()
		m.stopRefreshTimer()
		return nil
	}
	if m.tokens.IsAccessTokenValid() {
		// Nothing to do; the deferred restart reschedules from the current
		// expiry.
		return nil
	}

	m.isLoading.Store(true)
	defer m.isLoading.Store(false)

	resp, err := client.Post[tokenResponse](ctx, m.client, refreshEndpoint, nil, client.TokenRefresh)
	if err != nil {
		return err
	}
	if resp.AccessToken != "" {
		// The refresh endpoint only issues a new access token.
		m.tokens.SetTokens(resp.AccessToken, "")
	}
	return nil
}

// Logout clears the session and cancels any pending refresh.
func (m *Manager) Logout(message string) {
	m.tokens.Logout(message)
	m.stopRefreshTimer()
}

// startRefreshTimer schedules one Refresh invocation shortly before the
// access token expires. A non-positive delay fires immediately. Starting a
// new timer cancels the previous one.
func (m *Manager) startRefreshTimer() {
	expiry := m.tokens.AccessTokenExpiry()

	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if expiry.IsZero() {
		return
	}

	delay := expiry.Sub(m.now()) - token.ExpiryBuffer
	if delay < 0 {
		delay = 0
	}

	m.timer = time.AfterFunc(delay, func() {
		if err := m.Refresh(context.Background()); err != nil {
			log.Printf("scheduled token refresh failed: %v", err)
		}
	})
}

// stopRefreshTimer cancels the pending refresh, if any.
func (m *Manager) stopRefreshTimer() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
