package handlers

import (
	"errors"
	"net/http"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/logger"

	"github.com/gin-gonic/gin"
)

const problemContentType = "application/problem+json"

// тело ошибки в стиле problem details
type Problem struct {
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// RespondError переводит ошибку сервиса в http ответ.
// Неожиданные ошибки логируются целиком, клиент видит общий текст
func RespondError(c *gin.Context, err error) {
	p := Problem{
		Instance: c.Request.URL.Path,
		TraceID:  logger.RequestIDFromContext(c.Request.Context()),
	}

	switch {
	case errors.Is(err, domain.ErrGameNotFound):
		p.Status, p.Title, p.Detail = http.StatusNotFound, "Game Not Found", err.Error()
	case errors.Is(err, domain.ErrInvalidGameState):
		p.Status, p.Title, p.Detail = http.StatusConflict, "Invalid Game State", err.Error()
	case errors.Is(err, domain.ErrInvalidRequest):
		p.Status, p.Title, p.Detail = http.StatusBadRequest, "Invalid Request", err.Error()
	case errors.Is(err, domain.ErrConcurrencyConflict):
		p.Status, p.Title, p.Detail = http.StatusConflict, "Concurrency Conflict", "The game was modified concurrently, retry the request"
		p.Retryable = true
	default:
		p.Status, p.Title, p.Detail = http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred"
	}

	log := logger.WithContext(c.Request.Context())
	if p.Status == http.StatusInternalServerError {
		log.Error("request failed", "error", err, "path", p.Instance)
	} else {
		log.Warn("request rejected", "error", err, "status", p.Status, "path", p.Instance)
	}

	writeProblem(c, p)
}

// ошибка с произвольным статусом, например 401 из middleware
func RespondStatus(c *gin.Context, status int, title, detail string) {
	writeProblem(c, Problem{
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
		TraceID:  logger.RequestIDFromContext(c.Request.Context()),
	})
}

func writeProblem(c *gin.Context, p Problem) {
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(p.Status, p)
}
