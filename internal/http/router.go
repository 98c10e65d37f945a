package http

import (
	"dilemma_webapp/internal/config"
	"dilemma_webapp/internal/http/handlers"
	"dilemma_webapp/internal/http/middleware"
	"dilemma_webapp/internal/metrics"
	"dilemma_webapp/internal/service"
	"dilemma_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// зависимости для регистрации маршрутов
type Deps struct {
	Game    *service.GameService
	Auth    *service.AuthService
	Hub     *ws.Hub
	Metrics *metrics.Metrics
	// nil - лимит выключен
	Limiter  *middleware.RateLimiter
	Gatherer prometheus.Gatherer
	Config   *config.Config
	Version  string
}

// RegisterRoutes вешает middleware и все маршруты сервиса на r
func RegisterRoutes(r *gin.Engine, d Deps) *handlers.Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	r.Use(
		middleware.RequestID(),
		middleware.AccessLog(),
		gin.Recovery(),
		middleware.CORS(cfg.AllowedOrigin),
		middleware.Metrics(d.Metrics),
	)

	h := handlers.NewHandler(d.Game, d.Auth, d.Version)
	if d.Limiter != nil && d.Limiter.Enabled() {
		h.Checks["redis"] = d.Limiter
	}

	// health без авторизации для оркестратора
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware()
	}

	r.POST("/api/auth/token", limit, h.Token)

	game := r.Group("/api/game")
	game.Use(
		middleware.MasterKey(cfg.MasterKey),
		middleware.JWTAuth(d.Auth),
		limit,
	)
	{
		game.POST("/start", h.StartGame)
		game.POST("/choice", h.SubmitChoice)
		game.GET("/:sessionId", h.GetGameInfo)
		game.GET("/:sessionId/round/:roundNumber", h.GetRoundInfo)
		game.GET("/:sessionId/history", h.GetHistory)
		game.POST("/:sessionId/close", h.CloseSession)

		if d.Hub != nil {
			game.GET("/:sessionId/ws", ws.NewWSHandler(d.Hub, d.Game, cfg.AllowedOrigin).HandleWS())
		}
	}

	return h
}
