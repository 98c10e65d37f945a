package service

import (
	"context"
	"errors"
	"time"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/game"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/repository"
)

// advance двигает сессию после завершения раунда: следующий раунд
// или Completed, если потолок пройден. Completed - конечное состояние
func (s *GameService) advance(ctx context.Context, tx repository.Tx, sess *domain.Session, now time.Time) error {
	sess.CurrentRound++
	if sess.CurrentRound > sess.MaxRounds {
		sess.Status = domain.SessionCompleted
		sess.CompletedAt = &now
		return tx.AppendAudit(ctx, &domain.AuditLog{
			SessionID: sess.ID,
			Action:    domain.AuditActionSessionComplete,
			Category:  domain.AuditCategoryGame,
			Details:   map[string]interface{}{"rounds": sess.MaxRounds, "scores": scoreSummary(sess)},
		})
	}

	next := &domain.Round{
		ID:        s.newID(),
		SessionID: sess.ID,
		Number:    sess.CurrentRound,
		Status:    domain.RoundInProgress,
		CreatedAt: now,
	}
	if err := tx.CreateRound(ctx, next); err != nil {
		return err
	}
	sess.Rounds = append(sess.Rounds, next)
	return nil
}

// CloseSession - участник досрочно завершает ожидающую или активную сессию
func (s *GameService) CloseSession(ctx context.Context, sessionID, playerID string) (*SessionInfo, error) {
	var (
		info   *SessionInfo
		events []domain.Event
	)
	err := s.inTxWithRetry(ctx, "close_session", func(tx repository.Tx) error {
		info, events = nil, nil

		sess, err := tx.GetSessionByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		if sess.Status == domain.SessionCompleted {
			return domain.ErrSessionAlreadyEnded
		}
		if sess.PlayerByID(playerID) == nil {
			return domain.ErrPlayerNotInSession
		}

		now := s.now()
		sess.Status = domain.SessionCompleted
		sess.CompletedAt = &now
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &domain.AuditLog{
			SessionID: sess.ID,
			PlayerID:  playerID,
			Action:    domain.AuditActionSessionClose,
			Category:  domain.AuditCategoryGame,
			Details:   map[string]interface{}{"round": sess.CurrentRound, "scores": scoreSummary(sess)},
		}); err != nil {
			return err
		}

		info = sessionInfo(sess)
		events = append(events, s.event(domain.EventSessionCompleted, sess, sess.CurrentRound, scoreSummary(sess)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionTransition(string(domain.SessionCompleted))
	logger.WithContext(ctx).Info("session closed", "session_id", sessionID, "player_id", playerID)
	s.publish(events)
	return info, nil
}

// сводка по игроку
type PlayerSummary struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Slot     int    `json:"slot"`
	Score    int    `json:"score"`
}

// состояние сессии
type SessionInfo struct {
	SessionID    string               `json:"sessionId"`
	Status       domain.SessionStatus `json:"status"`
	Player1Name  string               `json:"player1Name,omitempty"`
	Player2Name  string               `json:"player2Name,omitempty"`
	Players      []PlayerSummary      `json:"players"`
	CurrentRound int                  `json:"currentRound"`
	MaxRounds    int                  `json:"maxRounds"`
	Summary      map[string]int       `json:"summary"`
	CreatedAt    time.Time            `json:"createdAt"`
	CompletedAt  *time.Time           `json:"completedAt,omitempty"`
}

// состояние раунда. Outcome и Summary есть только у завершенного раунда
type RoundInfo struct {
	SessionID   string             `json:"sessionId"`
	RoundNumber int                `json:"roundNumber"`
	Status      domain.RoundStatus `json:"status"`
	// имя игрока -> выбор
	Outcome map[string]string `json:"outcome,omitempty"`
	// имя игрока -> счет после этого раунда
	Summary map[string]int  `json:"summary,omitempty"`
	Result  *domain.Outcome `json:"result,omitempty"`
}

// история сессии: все раунды и журнал действий
type SessionHistory struct {
	Session *SessionInfo       `json:"session"`
	Rounds  []*RoundInfo       `json:"rounds"`
	Audit   []*domain.AuditLog `json:"audit"`
}

// GetSessionInfo возвращает статус, игроков, текущий раунд и счет
func (s *GameService) GetSessionInfo(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// GetRoundInfo возвращает статус раунда и, если он завершен, его итог
func (s *GameService) GetRoundInfo(ctx context.Context, sessionID string, roundNumber int) (*RoundInfo, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	round, err := s.store.GetRound(ctx, sessionID, roundNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, err
	}

	outcomes := replay(sess)
	return roundInfo(sess, round, outcomes[round.Number]), nil
}

// GetSessionHistory возвращает пораундовый повтор сессии и журнал аудита
func (s *GameService) GetSessionHistory(ctx context.Context, sessionID string, auditLimit int) (*SessionHistory, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.store.ListAudit(ctx, sessionID, auditLimit)
	if err != nil {
		return nil, err
	}

	outcomes := replay(sess)
	h := &SessionHistory{
		Session: sessionInfo(sess),
		Rounds:  make([]*RoundInfo, 0, len(sess.Rounds)),
		Audit:   logs,
	}
	for _, r := range sess.Rounds {
		h.Rounds = append(h.Rounds, roundInfo(sess, r, outcomes[r.Number]))
	}
	return h, nil
}

func (s *GameService) loadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// replay заново считает итоги всех завершенных раундов по порядку.
// Накопленный счет в итоге - сумма дельт до этого раунда включительно
func replay(sess *domain.Session) map[int]*domain.Outcome {
	out := make(map[int]*domain.Outcome)
	first, second := sess.PlayerInSlot(domain.SlotFirst), sess.PlayerInSlot(domain.SlotSecond)
	if first == nil || second == nil {
		return out
	}

	var total1, total2 int
	for _, r := range sess.Rounds {
		if r.Status != domain.RoundCompleted {
			continue
		}
		c1, c2 := r.ChoiceBy(first.ID), r.ChoiceBy(second.ID)
		if c1 == nil || c2 == nil {
			continue
		}
		d1, d2 := game.Resolve(c1.Choice, c2.Choice)
		total1 += d1
		total2 += d2
		out[r.Number] = &domain.Outcome{
			RoundNumber: r.Number,
			Players: [2]domain.PlayerOutcome{
				{PlayerID: first.ID, PlayerName: first.Name, Choice: c1.Choice, Delta: d1, Score: total1},
				{PlayerID: second.ID, PlayerName: second.Name, Choice: c2.Choice, Delta: d2, Score: total2},
			},
		}
	}
	return out
}

func sessionInfo(sess *domain.Session) *SessionInfo {
	info := &SessionInfo{
		SessionID:    sess.ID,
		Status:       sess.Status,
		Players:      make([]PlayerSummary, 0, len(sess.Players)),
		CurrentRound: sess.CurrentRound,
		MaxRounds:    sess.MaxRounds,
		Summary:      scoreSummary(sess),
		CreatedAt:    sess.CreatedAt,
		CompletedAt:  sess.CompletedAt,
	}
	if p := sess.PlayerInSlot(domain.SlotFirst); p != nil {
		info.Player1Name = p.Name
	}
	if p := sess.PlayerInSlot(domain.SlotSecond); p != nil {
		info.Player2Name = p.Name
	}
	for _, p := range sess.Players {
		info.Players = append(info.Players, PlayerSummary{PlayerID: p.ID, Name: p.Name, Slot: p.Slot, Score: p.Score})
	}
	return info
}

func roundInfo(sess *domain.Session, round *domain.Round, outcome *domain.Outcome) *RoundInfo {
	info := &RoundInfo{
		SessionID:   sess.ID,
		RoundNumber: round.Number,
		Status:      round.Status,
	}
	if round.Status != domain.RoundCompleted || outcome == nil {
		return info
	}

	info.Result = outcome
	info.Outcome = make(map[string]string, 2)
	info.Summary = make(map[string]int, 2)
	for _, p := range outcome.Players {
		info.Outcome[p.PlayerName] = string(p.Choice)
		info.Summary[p.PlayerName] = p.Score
	}
	return info
}

// имя игрока -> счет
func scoreSummary(sess *domain.Session) map[string]int {
	summary := make(map[string]int, len(sess.Players))
	for _, p := range sess.Players {
		summary[p.Name] = p.Score
	}
	return summary
}
