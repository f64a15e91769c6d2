package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farm-monitor-agent/internal/token"
)

// AuthStatusResponse is the session view served to the dashboard.
type AuthStatusResponse struct {
	LoggedIn          bool       `json:"loggedIn"`
	IsLoading         bool       `json:"isLoading"`
	ErrorMessage      string     `json:"errorMessage"`
	AccessTokenExpiry *time.Time `json:"accessTokenExpiry"`
}

// GetAuthStatus handles the GET /api/auth/status request.
func (h *Handler) GetAuthStatus(c *gin.Context) {
	tokens := h.auth.Tokens()

	resp := AuthStatusResponse{
		LoggedIn:     tokens.IsAccessTokenValid(),
		IsLoading:    h.auth.IsLoading(),
		ErrorMessage: tokens.ErrorMessage(),
	}
	if expiry := tokens.AccessTokenExpiry(); !expiry.IsZero() {
		resp.AccessTokenExpiry = &expiry
	}
	c.JSON(http.StatusOK, resp)
}

// PostAuthRetry handles the POST /api/auth/retry request. It clears a stuck
// error message and forces a fresh login on the next poll cycle.
func (h *Handler) PostAuthRetry(c *gin.Context) {
	h.auth.Tokens().SetErrorMessage(token.DefaultErrorMessage)
	c.Status(http.StatusAccepted)
}
