package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dilemma_webapp/internal/config"
	"dilemma_webapp/internal/db"
	httpServer "dilemma_webapp/internal/http"
	"dilemma_webapp/internal/http/middleware"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/metrics"
	"dilemma_webapp/internal/repository"
	"dilemma_webapp/internal/service"
	"dilemma_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	// Инициализация структурированного логгера
	jsonLogs := os.Getenv("LOG_FORMAT") == "json"
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init(logLevel, jsonLogs)
	log := logger.Get()

	cfg := config.Load()

	// без DATABASE_URL работаем в памяти, удобно для локального запуска
	var store repository.Store
	if cfg.DatabaseURL != "" {
		store = repository.NewPgStore(db.Connect(cfg.DatabaseURL))
		log.Info("using postgres store")
	} else {
		store = repository.NewMemoryStore()
		log.Warn("DATABASE_URL not set - using in-memory store, data will be lost on restart")
	}
	defer store.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub()

	gameService := service.NewGameService(store, service.GameOptions{
		MaxRounds:       cfg.RoundsCount,
		ConflictRetries: cfg.ConflictRetries,
		Metrics:         m,
		Notifier:        hub,
	})

	authService := service.NewAuthService(service.AuthConfig{
		Enabled:  cfg.JWTEnabled,
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
		Clients:  cfg.AuthClients,
	}, service.NewAuditService(store))

	rdb := middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Game:     gameService,
		Auth:     authService,
		Hub:      hub,
		Metrics:  m,
		Limiter:  middleware.NewRateLimiter(rdb, cfg.RateLimitRPM),
		Gatherer: prometheus.DefaultGatherer,
		Config:   cfg,
		Version:  Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started",
			"port", cfg.AppPort,
			"version", Version,
			"rounds", gameService.MaxRounds(),
			"jwt", authService.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// закрываем ws подписчиков после остановки http
	hub.Close()

	log.Info("server exited")
}
