package handlers

import (
	"context"

	"dilemma_webapp/internal/service"
)

// внешняя зависимость для проверки готовности: хранилище, redis
type Pinger interface {
	Ping(ctx context.Context) error
}

// общие зависимости http обработчиков
type Handler struct {
	Game    *service.GameService
	Auth    *service.AuthService
	Version string
	// проверяются в /health/ready, ключ - имя зависимости
	Checks map[string]Pinger
}

func NewHandler(game *service.GameService, auth *service.AuthService, version string) *Handler {
	return &Handler{
		Game:    game,
		Auth:    auth,
		Version: version,
		Checks:  map[string]Pinger{"store": game},
	}
}
