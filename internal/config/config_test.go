package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_PORT", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB", "JWT_ENABLED", "JWT_TTL",
		"AUTH_CLIENTS", "MASTER_KEY", "GAME_ROUNDS_COUNT", "GAME_CONFLICT_RETRIES", "RATE_LIMIT_RPM",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, DefaultRoundsCount, cfg.RoundsCount)
	assert.Equal(t, DefaultConflictRetries, cfg.ConflictRetries)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.False(t, cfg.JWTEnabled)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Empty(t, cfg.AuthClients)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/dilemma")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("JWT_ENABLED", "true")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "30")
	t.Setenv("AUTH_CLIENTS", "client-001:s1, client-002:s2")
	t.Setenv("GAME_ROUNDS_COUNT", "10")
	t.Setenv("GAME_CONFLICT_RETRIES", "3")

	cfg := Load()

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "postgres://localhost/dilemma", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.JWTEnabled)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, map[string]string{"client-001": "s1", "client-002": "s2"}, cfg.AuthClients)
	assert.Equal(t, 10, cfg.RoundsCount)
	assert.Equal(t, 3, cfg.ConflictRetries)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("GAME_ROUNDS_COUNT", "-4")
	t.Setenv("GAME_CONFLICT_RETRIES", "many")
	t.Setenv("JWT_ENABLED", "maybe")
	t.Setenv("JWT_TTL", "soon")

	cfg := Load()

	assert.Equal(t, DefaultRoundsCount, cfg.RoundsCount)
	assert.Equal(t, DefaultConflictRetries, cfg.ConflictRetries)
	assert.False(t, cfg.JWTEnabled)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
}

func TestParseClients(t *testing.T) {
	got := parseClients("a:1,,broken, b : 2 ,:nope,c:")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
