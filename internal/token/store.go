// Package token holds the upstream session tokens and their validity rules.
package token

import (
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"farm-monitor-agent/internal/model"
)

// ExpiryBuffer expires tokens early to account for network latency: a token
// within 30 seconds of its expiry claim is already treated as invalid.
const ExpiryBuffer = 30 * time.Second

// DefaultErrorMessage is the error message when nothing is wrong.
const DefaultErrorMessage = "None"

// ExpiredRefreshMessage is set when the refresh token has run out and a full
// login is required again.
const ExpiredRefreshMessage = "Refresh token expired. Please log in again."

// Store keeps the access and refresh tokens for the upstream session, backed
// by a single database row so the session survives restarts. A nil db is
// allowed, in which case tokens are held in memory only.
type Store struct {
	mu           sync.Mutex
	db           *gorm.DB
	accessToken  string
	refreshToken string
	errorMessage string

	// now is swapped out in tests.
	now func() time.Time
}

// NewStore creates a Store, loading any persisted token pair.
func NewStore(db *gorm.DB) *Store {
	s := &Store{
		db:           db,
		errorMessage: DefaultErrorMessage,
		now:          time.Now,
	}

	if db != nil {
		var cred model.Credential
		if err := db.First(&cred).Error; err == nil {
			s.accessToken = cred.AccessToken
			s.refreshToken = cred.RefreshToken
		} else if err != gorm.ErrRecordNotFound {
			log.Printf("could not load persisted credentials: %v", err)
		}
	}

	return s
}

// AccessToken returns the current access token, empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token, empty when logged out.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// SetTokens stores a new token pair and persists it. An empty refresh token
// keeps the existing one; the refresh endpoint only issues a new access token.
func (s *Store) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = access
	if refresh != "" {
		s.refreshToken = refresh
	}
	s.errorMessage = DefaultErrorMessage
	s.persistLocked()
}

// IsAccessTokenValid reports whether the access token is present and not
// within ExpiryBuffer of its expiry claim.
func (s *Store) IsAccessTokenValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isValidLocked(s.accessToken)
}

// IsRefreshTokenValid reports whether the refresh token is present and not
// within ExpiryBuffer of its expiry claim. This is a pure predicate; callers
// that find it false should invoke HandleExpiredRefreshToken.
func (s *Store) IsRefreshTokenValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isValidLocked(s.refreshToken)
}

// HandleExpiredRefreshToken logs out with the expired-refresh message.
func (s *Store) HandleExpiredRefreshToken() {
	s.Logout(ExpiredRefreshMessage)
}

// Logout clears both tokens, in memory and on disk, and records message as
// the user-facing error.
func (s *Store) Logout(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = ""
	s.refreshToken = ""
	s.errorMessage = message
	s.persistLocked()
}

// ErrorMessage returns the current user-facing error message.
func (s *Store) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// SetErrorMessage records a user-facing error message.
func (s *Store) SetErrorMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMessage = message
}

// AccessTokenExpiry returns the expiry claim of the access token. The zero
// time is returned when no expiry can be read.
func (s *Store) AccessTokenExpiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, err := tokenExpiry(s.accessToken)
	if err != nil {
		return time.Time{}
	}
	return expiry
}

func (s *Store) isValidLocked(tok string) bool {
	if tok == "" {
		return false
	}
	expiry, err := tokenExpiry(tok)
	if err != nil {
		// A token that cannot be decoded is simply invalid.
		return false
	}
	return expiry.Sub(s.now()) > ExpiryBuffer
}

func (s *Store) persistLocked() {
	if s.db == nil {
		return
	}
	cred := model.Credential{
		ID:           1,
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
	}
	if err := s.db.Save(&cred).Error; err != nil {
		log.Printf("could not persist credentials: %v", err)
	}
}

// tokenExpiry reads the exp claim without verifying the signature. The agent
// never trusts the decoded claims for authorization; the server enforces
// token validity on every request.
func tokenExpiry(tok string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return claims.ExpiresAt.Time, nil
}
