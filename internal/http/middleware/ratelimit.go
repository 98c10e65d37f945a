package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dilemma_webapp/internal/http/handlers"
	"dilemma_webapp/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var errRedisDisabled = errors.New("redis is not configured")

// лимит запросов с одного ip в фиксированном окне, счетчики в redis.
// Без redis или при его ошибке запросы пропускаются
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// InitRedisRateLimiter подключается к redis. Пустой addr - лимитер выключен, вернется nil
func InitRedisRateLimiter(addr, password string, db int) *redis.Client {
	if addr == "" {
		logger.Warn("REDIS_ADDR not set - rate limiting disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis is unreachable, rate limiter will fail open", "addr", addr, "error", err)
	} else {
		logger.Info("redis connected", "addr", addr)
	}
	return rdb
}

func NewRateLimiter(rdb *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		limit:  perMinute,
		window: time.Minute,
		prefix: "dilemma:ratelimit:",
	}
}

func (l *RateLimiter) Enabled() bool {
	return l.rdb != nil && l.limit > 0
}

// Ping для проверки готовности
func (l *RateLimiter) Ping(ctx context.Context) error {
	if l.rdb == nil {
		return errRedisDisabled
	}
	return l.rdb.Ping(ctx).Err()
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rdb == nil || l.limit <= 0 {
			c.Next()
			return
		}

		now := time.Now()
		bucket := now.Unix() / int64(l.window/time.Second)
		key := l.prefix + c.ClientIP() + ":" + strconv.FormatInt(bucket, 10)

		var incr *redis.IntCmd
		_, err := l.rdb.TxPipelined(c.Request.Context(), func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c.Request.Context(), key)
			pipe.Expire(c.Request.Context(), key, l.window)
			return nil
		})
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.limit) {
			windowEnd := time.Unix((bucket+1)*int64(l.window/time.Second), 0)
			c.Header("Retry-After", strconv.Itoa(int(time.Until(windowEnd).Seconds())+1))
			handlers.RespondStatus(c, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
			return
		}
		c.Next()
	}
}
