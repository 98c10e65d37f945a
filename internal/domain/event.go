package domain

import "time"

// Типы событий, которые получают подписчики сессии
const (
	EventSessionActive    = "session_active"
	EventChoiceRecorded   = "choice_recorded"
	EventRoundCompleted   = "round_completed"
	EventSessionCompleted = "session_completed"
)

// Событие сессии, рассылается после коммита транзакции
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Round     int         `json:"round,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	At        time.Time   `json:"at"`
}
