package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"dilemma_webapp/internal/http/handlers"
	"dilemma_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

const MasterKeyHeader = "X-MasterKey"

// JWTAuth требует bearer токен, если JWT включен. Иначе пропускает запрос.
// Для websocket токен можно передать в ?access_token=
func JWTAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil || !auth.Enabled() {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			c.Header("WWW-Authenticate", `Bearer realm="dilemma"`)
			handlers.RespondStatus(c, http.StatusUnauthorized, "Unauthorized", "bearer token is required")
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			handlers.RespondStatus(c, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}

		c.Set("client_id", claims.ClientID)
		c.Next()
	}
}

// MasterKey проверяет заголовок X-MasterKey. Пустой ключ отключает проверку
func MasterKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(MasterKeyHeader)
		if provided == "" {
			handlers.RespondStatus(c, http.StatusUnauthorized, "Unauthorized", "X-MasterKey header is required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			handlers.RespondStatus(c, http.StatusUnauthorized, "Unauthorized", "Invalid master key")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
