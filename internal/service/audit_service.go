package service

import (
	"context"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/repository"
)

// обрабатывает логирование аудита вне игровых транзакций
type AuditService struct {
	store repository.Store
}

// создает новый сервис аудита
func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{store: store}
}

// создает новую запись в журнале аудита. Ошибка только логируется
func (s *AuditService) Log(ctx context.Context, sessionID, playerID, action, category string, details map[string]interface{}) {
	log := &domain.AuditLog{
		SessionID: sessionID,
		PlayerID:  playerID,
		Action:    action,
		Category:  category,
		Details:   details,
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.AppendAudit(ctx, log)
	})
	if err != nil {
		logger.WithContext(ctx).Error("не удалось создать запись аудита", "error", err, "action", action, "session_id", sessionID)
	}
}
