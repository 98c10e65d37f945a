package handlers

import (
	"errors"
	"net/http"

	"dilemma_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

// POST /api/auth/token, форма client_credentials
func (h *Handler) Token(c *gin.Context) {
	tok, err := h.Auth.IssueToken(c.Request.Context(),
		c.PostForm("grant_type"),
		c.PostForm("client_id"),
		c.PostForm("client_secret"),
		c.PostForm("scope"),
	)
	if err == nil {
		c.JSON(http.StatusOK, tok)
		return
	}

	// ошибки в формате oauth2
	switch {
	case errors.Is(err, service.ErrAuthDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_error", "error_description": err.Error()})
	case errors.Is(err, service.ErrUnsupportedGrantType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type", "error_description": err.Error()})
	case errors.Is(err, service.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	case errors.Is(err, service.ErrInvalidClient):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client", "error_description": err.Error()})
	default:
		RespondError(c, err)
	}
}
