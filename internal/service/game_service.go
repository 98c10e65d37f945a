package service

import (
	"context"
	"time"

	"dilemma_webapp/internal/config"
	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/metrics"
	"dilemma_webapp/internal/repository"

	"github.com/google/uuid"
)

// Notifier получает события сессии после коммита транзакции
type Notifier interface {
	Publish(ev domain.Event)
}

// настройки игрового сервиса
type GameOptions struct {
	MaxRounds       int
	ConflictRetries int
	Metrics         *metrics.Metrics
	Notifier        Notifier
}

// обрабатывает бизнес-логику игры: подбор пары, раунды, жизненный цикл сессии
type GameService struct {
	store     repository.Store
	maxRounds int
	retries   int
	metrics   *metrics.Metrics
	notifier  Notifier

	now     func() time.Time
	newID   func() string
	backoff func(attempt int) time.Duration
}

// создает новый игровой сервис
func NewGameService(store repository.Store, opts GameOptions) *GameService {
	if opts.MaxRounds < 1 {
		opts.MaxRounds = config.DefaultRoundsCount
	}
	if opts.ConflictRetries < 1 {
		opts.ConflictRetries = config.DefaultConflictRetries
	}
	return &GameService{
		store:     store,
		maxRounds: opts.MaxRounds,
		retries:   opts.ConflictRetries,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		backoff:   jitteredBackoff,
	}
}

// возвращает потолок раундов для новых сессий
func (s *GameService) MaxRounds() int {
	return s.maxRounds
}

// Ping проверяет доступность хранилища
func (s *GameService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// рассылает события только после успешного коммита
func (s *GameService) publish(events []domain.Event) {
	if s.notifier == nil {
		return
	}
	for _, ev := range events {
		s.notifier.Publish(ev)
	}
}

func (s *GameService) event(typ string, sess *domain.Session, round int, payload interface{}) domain.Event {
	return domain.Event{
		Type:      typ,
		SessionID: sess.ID,
		Round:     round,
		Payload:   payload,
		At:        s.now(),
	}
}
