package repository

import (
	"context"
	"encoding/json"

	"dilemma_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
)

// создает новую запись в логе аудита, в пуле или внутри транзакции
func createAudit(ctx context.Context, q querier, log *domain.AuditLog) error {
	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return q.QueryRow(ctx, `
		INSERT INTO audit_logs (session_id, player_id, action, category, details)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5)
		RETURNING id, created_at
	`, log.SessionID, log.PlayerID, log.Action, log.Category, detailsJSON).Scan(&log.ID, &log.CreatedAt)
}

// возвращает логи аудита сессии, самые новые первыми.
// Пустой sessionID - все сессии
func listAudit(ctx context.Context, q querier, sessionID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.Query(ctx, `
		SELECT id, COALESCE(session_id, ''), COALESCE(player_id, ''), action, category, details, created_at
		FROM audit_logs
		WHERE $1 = '' OR session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

// преобразует строки из БД в структуры AuditLog
func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	for rows.Next() {
		var log domain.AuditLog
		var detailsJSON []byte
		if err := rows.Scan(&log.ID, &log.SessionID, &log.PlayerID, &log.Action, &log.Category, &detailsJSON, &log.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
			log.Details = make(map[string]interface{})
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
