package domain

import "time"

// Журнал важных действий в игре
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	SessionID string                 `db:"session_id" json:"session_id,omitempty"`
	PlayerID  string                 `db:"player_id" json:"player_id,omitempty"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Категории действий
const (
	AuditCategoryAuth = "auth"
	AuditCategoryGame = "game"
)

const (
	// Авторизация
	AuditActionTokenIssued = "token_issued"

	// Сессия
	AuditActionSessionCreate   = "session_create"
	AuditActionSessionJoin     = "session_join"
	AuditActionSessionComplete = "session_complete"
	AuditActionSessionClose    = "session_close"

	// Раунды
	AuditActionChoiceSubmit  = "choice_submit"
	AuditActionRoundComplete = "round_complete"
)
