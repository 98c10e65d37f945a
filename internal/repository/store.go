package repository

import (
	"context"
	"errors"

	"dilemma_webapp/internal/domain"
)

var (
	// запись не найдена
	ErrNotFound = errors.New("record not found")
	// конкурентная запись: версия сессии изменилась или транзакция не сериализуется.
	// Вызывающий должен повторить всю операцию целиком
	ErrConflict = errors.New("optimistic write failed")
	// у игрока уже есть выбор в этом раунде
	ErrDuplicateChoice = errors.New("choice already recorded")
)

// Reader - чтения вне транзакции
type Reader interface {
	GetSessionByID(ctx context.Context, id string) (*domain.Session, error)
	GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error)
	FindPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	ListAudit(ctx context.Context, sessionID string, limit int) ([]*domain.AuditLog, error)
}

// Tx - операции внутри одной транзакции хранилища.
// Сессия читается с блокировкой строки, UpdateSession проверяет версию
type Tx interface {
	GetSessionByID(ctx context.Context, id string) (*domain.Session, error)
	FindWaitingSession(ctx context.Context) (*domain.Session, error)
	FindPlayer(ctx context.Context, playerID string) (*domain.Player, error)
	GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error)

	CreateSession(ctx context.Context, s *domain.Session) error
	UpdateSession(ctx context.Context, s *domain.Session) error
	CreateRound(ctx context.Context, r *domain.Round) error
	CompleteRound(ctx context.Context, r *domain.Round) error
	RecordChoice(ctx context.Context, c *domain.ChoiceRecord) error
	AppendAudit(ctx context.Context, l *domain.AuditLog) error
}

// Store - транзакционное хранилище сессий, раундов и выборов
type Store interface {
	Reader

	// InTx выполняет fn в транзакции. Ошибка fn откатывает все записи
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
