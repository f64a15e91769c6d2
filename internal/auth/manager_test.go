package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/token"
)

// mintToken creates a signed JWT carrying the given expiry. The agent only
// inspects the exp claim, so the signing key is irrelevant.
func mintToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiry),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type authServer struct {
	server       *httptest.Server
	loginCalls   atomic.Int64
	refreshCalls atomic.Int64

	loginAccess   string
	loginRefresh  string
	refreshAccess string
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	as := &authServer{
		loginAccess:   mintToken(t, time.Now().Add(15*time.Minute)),
		loginRefresh:  mintToken(t, time.Now().Add(30*24*time.Hour)),
		refreshAccess: mintToken(t, time.Now().Add(15*time.Minute)),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/jwt/", func(w http.ResponseWriter, r *http.Request) {
		as.loginCalls.Add(1)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "tester" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  as.loginAccess,
			"refresh_token": as.loginRefresh,
		})
	})
	mux.HandleFunc("POST /auth/jwt/refresh", func(w http.ResponseWriter, r *http.Request) {
		as.refreshCalls.Add(1)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": as.refreshAccess,
		})
	})

	as.server = httptest.NewServer(mux)
	t.Cleanup(as.server.Close)
	return as
}

func newTestManager(t *testing.T, as *authServer) (*Manager, *token.Store) {
	t.Helper()
	tokens := token.NewStore(nil)
	c := client.NewWithBaseURL(as.server.URL+"/", 5*time.Second, tokens)
	m := NewManager(tokens, c)
	t.Cleanup(func() { m.Logout(token.DefaultErrorMessage) })
	return m, tokens
}

func TestLoginStoresTokens(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)

	err := m.Login(context.Background(), "tester", "secret")

	require.NoError(t, err)
	assert.Equal(t, as.loginAccess, tokens.AccessToken())
	assert.Equal(t, as.loginRefresh, tokens.RefreshToken())
	assert.True(t, tokens.IsAccessTokenValid())
	assert.False(t, m.IsLoading())
}

func TestLoginNoopWhenAccessTokenValid(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	tokens.SetTokens(mintToken(t, time.Now().Add(time.Hour)), mintToken(t, time.Now().Add(time.Hour)))

	err := m.Login(context.Background(), "tester", "secret")

	require.NoError(t, err)
	assert.Equal(t, int64(0), as.loginCalls.Load())
}

func TestLoginDelegatesToRefresh(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	// Expired access token, live refresh token.
	tokens.SetTokens(mintToken(t, time.Now().Add(-time.Minute)), mintToken(t, time.Now().Add(time.Hour)))

	err := m.Login(context.Background(), "tester", "secret")

	require.NoError(t, err)
	assert.Equal(t, int64(0), as.loginCalls.Load())
	assert.Equal(t, int64(1), as.refreshCalls.Load())
	assert.Equal(t, as.refreshAccess, tokens.AccessToken())
}

func TestLoginRejectedCredentials(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)

	err := m.Login(context.Background(), "tester", "wrong")

	assert.NoError(t, err, "rejected credentials must not surface as an error")
	assert.Empty(t, tokens.AccessToken())
	assert.Equal(t, client.InvalidCredentialsMessage, tokens.ErrorMessage())
}

func TestRefreshWithExpiredRefreshToken(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	tokens.SetTokens(mintToken(t, time.Now().Add(-time.Hour)), mintToken(t, time.Now().Add(-time.Minute)))

	err := m.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), as.refreshCalls.Load(), "no network call for an expired refresh token")
	assert.Empty(t, tokens.RefreshToken())
	assert.Equal(t, token.ExpiredRefreshMessage, tokens.ErrorMessage())
}

func TestRefreshNoopWhenAccessTokenValid(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	tokens.SetTokens(mintToken(t, time.Now().Add(time.Hour)), mintToken(t, time.Now().Add(time.Hour)))

	err := m.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(0), as.refreshCalls.Load())
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	refresh := mintToken(t, time.Now().Add(time.Hour))
	tokens.SetTokens(mintToken(t, time.Now().Add(-time.Minute)), refresh)

	err := m.Refresh(context.Background())

	require.NoError(t, err)
	assert.Equal(t, as.refreshAccess, tokens.AccessToken())
	assert.Equal(t, refresh, tokens.RefreshToken(), "refresh must only replace the access token")
}

func TestScheduledRefreshFires(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	// An access token expiring just past the buffer schedules a near-immediate
	// refresh.
	tokens.SetTokens(mintToken(t, time.Now().Add(token.ExpiryBuffer+200*time.Millisecond)), mintToken(t, time.Now().Add(time.Hour)))

	m.startRefreshTimer()

	assert.Eventually(t, func() bool {
		return as.refreshCalls.Load() == 1
	}, 2*time.Second, 25*time.Millisecond)
	assert.Equal(t, as.refreshAccess, tokens.AccessToken())
}

func TestLogoutCancelsScheduledRefresh(t *testing.T) {
	as := newAuthServer(t)
	m, tokens := newTestManager(t, as)
	tokens.SetTokens(mintToken(t, time.Now().Add(token.ExpiryBuffer+200*time.Millisecond)), mintToken(t, time.Now().Add(time.Hour)))

	m.startRefreshTimer()
	m.Logout(token.DefaultErrorMessage)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int64(0), as.refreshCalls.Load())
}
