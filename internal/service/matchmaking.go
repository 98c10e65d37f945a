package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/repository"

	"github.com/google/uuid"
)

const maxPlayerNameLen = 100

// результат подбора пары
type JoinResult struct {
	SessionID  string               `json:"sessionId"`
	PlayerID   string               `json:"playerId"`
	PlayerName string               `json:"playerName"`
	Slot       int                  `json:"slot"`
	Status     domain.SessionStatus `json:"status"`
}

// Join сажает игрока в самую старую ожидающую сессию или создает новую.
// playerID может быть пустым (сервер выдаст uuid) или uuid клиента: повторный
// Join с тем же id ничего не пишет и возвращает ту же сессию
func (s *GameService) Join(ctx context.Context, playerID, playerName string) (*JoinResult, error) {
	name, err := normalizePlayerName(playerName)
	if err != nil {
		return nil, err
	}
	playerID, err = normalizePlayerID(playerID, s.newID)
	if err != nil {
		return nil, err
	}

	var (
		result *JoinResult
		events []domain.Event
		status domain.SessionStatus
	)
	err = s.inTxWithRetry(ctx, "join", func(tx repository.Tx) error {
		result, events, status = nil, nil, ""

		existing, err := tx.FindPlayer(ctx, playerID)
		if err == nil {
			sess, err := tx.GetSessionByID(ctx, existing.SessionID)
			if err != nil {
				return err
			}
			result = joinResult(sess, existing)
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		waiting, err := tx.FindWaitingSession(ctx)
		switch {
		case err == nil:
			p, evs, err := s.activate(ctx, tx, waiting, playerID, name)
			if err != nil {
				return err
			}
			result, events, status = joinResult(waiting, p), evs, domain.SessionActive
			return nil
		case errors.Is(err, repository.ErrNotFound):
			sess, p, err := s.createSession(ctx, tx, playerID, name)
			if err != nil {
				return err
			}
			result, status = joinResult(sess, p), domain.SessionWaiting
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	if status != "" {
		s.metrics.SessionTransition(string(status))
		logger.WithContext(ctx).Info("player joined",
			"session_id", result.SessionID, "player_id", result.PlayerID, "slot", result.Slot, "status", status)
	}
	s.publish(events)
	return result, nil
}

// новая сессия в статусе Waiting с игроком в первом слоте
func (s *GameService) createSession(ctx context.Context, tx repository.Tx, playerID, name string) (*domain.Session, *domain.Player, error) {
	now := s.now()
	sess := &domain.Session{
		ID:           s.newID(),
		Status:       domain.SessionWaiting,
		CurrentRound: 0,
		MaxRounds:    s.maxRounds,
		CreatedAt:    now,
	}
	p := &domain.Player{
		ID:        playerID,
		SessionID: sess.ID,
		Name:      name,
		Slot:      domain.SlotFirst,
		JoinedAt:  now,
	}
	sess.Players = []*domain.Player{p}

	if err := tx.CreateSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	if err := tx.AppendAudit(ctx, &domain.AuditLog{
		SessionID: sess.ID,
		PlayerID:  p.ID,
		Action:    domain.AuditActionSessionCreate,
		Category:  domain.AuditCategoryGame,
		Details:   map[string]interface{}{"max_rounds": sess.MaxRounds, "player_name": name},
	}); err != nil {
		return nil, nil, err
	}
	return sess, p, nil
}

// второй игрок занимает слот 2: Waiting -> Active и первый раунд
func (s *GameService) activate(ctx context.Context, tx repository.Tx, sess *domain.Session, playerID, name string) (*domain.Player, []domain.Event, error) {
	if sess.Status != domain.SessionWaiting || sess.IsFull() {
		// ожидающая сессия с двумя игроками - сломанный инвариант хранилища
		return nil, nil, fmt.Errorf("waiting session %s has %d players", sess.ID, len(sess.Players))
	}

	now := s.now()
	p := &domain.Player{
		ID:        playerID,
		SessionID: sess.ID,
		Name:      name,
		Slot:      domain.SlotSecond,
		JoinedAt:  now,
	}
	sess.Players = append(sess.Players, p)
	sess.Status = domain.SessionActive
	sess.CurrentRound = 1

	if err := tx.UpdateSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	first := &domain.Round{
		ID:        s.newID(),
		SessionID: sess.ID,
		Number:    1,
		Status:    domain.RoundInProgress,
		CreatedAt: now,
	}
	if err := tx.CreateRound(ctx, first); err != nil {
		return nil, nil, err
	}
	sess.Rounds = append(sess.Rounds, first)

	if err := tx.AppendAudit(ctx, &domain.AuditLog{
		SessionID: sess.ID,
		PlayerID:  p.ID,
		Action:    domain.AuditActionSessionJoin,
		Category:  domain.AuditCategoryGame,
		Details:   map[string]interface{}{"player_name": name, "slot": p.Slot},
	}); err != nil {
		return nil, nil, err
	}

	ev := s.event(domain.EventSessionActive, sess, 1, map[string]interface{}{
		"players": []string{sess.PlayerInSlot(domain.SlotFirst).Name, name},
	})
	return p, []domain.Event{ev}, nil
}

func joinResult(sess *domain.Session, p *domain.Player) *JoinResult {
	return &JoinResult{
		SessionID:  sess.ID,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Slot:       p.Slot,
		Status:     sess.Status,
	}
}

func normalizePlayerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxPlayerNameLen {
		return "", domain.ErrInvalidPlayerName
	}
	return name, nil
}

// пустой id - генерируем, иначе это должен быть uuid
func normalizePlayerID(raw string, gen func() string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return gen(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return "", domain.ErrInvalidPlayerID
	}
	return id.String(), nil
}
