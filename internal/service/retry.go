package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/repository"
)

const retryBaseDelay = 5 * time.Millisecond

// inTxWithRetry повторяет всю транзакцию, пока хранилище сообщает о конфликте.
// fn должна заново вычислять результат на каждой попытке
func (s *GameService) inTxWithRetry(ctx context.Context, op string, fn func(tx repository.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}

		if attempt >= s.retries {
			s.metrics.ConflictExhausted(op)
			logger.WithContext(ctx).Warn("conflict retries exhausted", "op", op, "attempts", attempt, "error", err)
			return fmt.Errorf("%w: %s gave up after %d attempts", domain.ErrConcurrencyConflict, op, attempt)
		}

		s.metrics.ConflictRetry(op)
		logger.WithContext(ctx).Debug("store conflict, retrying", "op", op, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
}

// линейная задержка со случайной добавкой, чтобы соперники разошлись
func jitteredBackoff(attempt int) time.Duration {
	base := retryBaseDelay * time.Duration(attempt)
	return base + time.Duration(rand.Int63n(int64(retryBaseDelay)))
}
