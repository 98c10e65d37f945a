package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"dilemma_webapp/internal/logger"

	"github.com/joho/godotenv"
)

const (
	DefaultRoundsCount     = 157
	DefaultConflictRetries = 5
	DefaultRateLimitRPM    = 120
)

type Config struct {
	AppPort     string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTEnabled  bool
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration
	// client_id -> client_secret для выдачи токенов
	AuthClients map[string]string

	MasterKey string

	RoundsCount     int
	ConflictRetries int
	RateLimitRPM    int

	AllowedOrigin string
}

// Load читает .env (если есть) и переменные окружения
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to read .env", "error", err)
	}

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		JWTEnabled:  getBool("JWT_ENABLED", false),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISSUER", "dilemma"),
		JWTAudience: getEnv("JWT_AUDIENCE", "dilemma-clients"),
		JWTTTL:      getDuration("JWT_TTL", time.Hour),
		AuthClients: parseClients(os.Getenv("AUTH_CLIENTS")),

		MasterKey: os.Getenv("MASTER_KEY"),

		RoundsCount:     getInt("GAME_ROUNDS_COUNT", DefaultRoundsCount),
		ConflictRetries: getInt("GAME_CONFLICT_RETRIES", DefaultConflictRetries),
		RateLimitRPM:    getInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),

		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
	}

	if cfg.RoundsCount < 1 {
		logger.Warn("GAME_ROUNDS_COUNT must be positive, using default", "value", cfg.RoundsCount)
		cfg.RoundsCount = DefaultRoundsCount
	}
	if cfg.ConflictRetries < 1 {
		cfg.ConflictRetries = 1
	}
	if cfg.JWTEnabled && cfg.JWTSecret == "" {
		logger.Fatal("JWT_ENABLED is set but JWT_SECRET is empty")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid int in env, using default", "key", key, "value", v)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid bool in env, using default", "key", key, "value", v)
		return def
	}
	return b
}

// принимает "90m", "1h" или число минут
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Minute
	}
	logger.Warn("invalid duration in env, using default", "key", key, "value", v)
	return def
}

// "id1:secret1,id2:secret2"
func parseClients(raw string) map[string]string {
	clients := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, secret, ok := strings.Cut(pair, ":")
		id, secret = strings.TrimSpace(id), strings.TrimSpace(secret)
		if !ok || id == "" || secret == "" {
			logger.Warn("skipping malformed AUTH_CLIENTS entry")
			continue
		}
		clients[id] = secret
	}
	return clients
}
