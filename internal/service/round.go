package service

import (
	"context"
	"errors"
	"fmt"

	"dilemma_webapp/internal/domain"
	"dilemma_webapp/internal/game"
	"dilemma_webapp/internal/logger"
	"dilemma_webapp/internal/repository"
)

// результат отправки выбора. Outcome есть только у завершенного раунда
type SubmitResult struct {
	SessionID     string               `json:"sessionId"`
	RoundNumber   int                  `json:"roundNumber"`
	Status        domain.RoundStatus   `json:"status"`
	Outcome       *domain.Outcome      `json:"outcome,omitempty"`
	SessionStatus domain.SessionStatus `json:"sessionStatus"`
	CurrentRound  int                  `json:"currentRound"`
}

// SubmitChoice записывает выбор игрока в текущем раунде. Второй выбор
// завершает раунд: очки начисляются в порядке слотов, сессия переходит дальше.
// Ровно один из двух конкурентных вызовов видит завершение
func (s *GameService) SubmitChoice(ctx context.Context, sessionID, playerID string, roundNumber int, choiceToken string) (*SubmitResult, error) {
	var (
		result    *SubmitResult
		events    []domain.Event
		completed bool
		finished  bool
	)
	err := s.inTxWithRetry(ctx, "submit_choice", func(tx repository.Tx) error {
		result, events, completed, finished = nil, nil, false, false

		sess, err := tx.GetSessionByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrSessionNotFound
			}
			return err
		}
		if sess.Status != domain.SessionActive {
			return domain.ErrSessionNotActive
		}
		if roundNumber != sess.CurrentRound {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrWrongRound, sess.CurrentRound, roundNumber)
		}
		player := sess.PlayerByID(playerID)
		if player == nil {
			return domain.ErrPlayerNotInSession
		}
		choice, err := game.ParseChoice(choiceToken)
		if err != nil {
			return err
		}
		if sess.CurrentRound > sess.MaxRounds {
			return domain.ErrMaxRoundsReached
		}

		round, err := s.currentRound(ctx, tx, sess)
		if err != nil {
			return err
		}
		if round.Status != domain.RoundInProgress || round.ChoiceBy(player.ID) != nil {
			return domain.ErrAlreadyChosen
		}

		rec := &domain.ChoiceRecord{
			ID:        s.newID(),
			RoundID:   round.ID,
			PlayerID:  player.ID,
			Choice:    choice,
			CreatedAt: s.now(),
		}
		if err := tx.RecordChoice(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicateChoice) {
				return domain.ErrAlreadyChosen
			}
			return err
		}
		round.Choices = append(round.Choices, rec)

		if err := tx.AppendAudit(ctx, &domain.AuditLog{
			SessionID: sess.ID,
			PlayerID:  player.ID,
			Action:    domain.AuditActionChoiceSubmit,
			Category:  domain.AuditCategoryGame,
			Details:   map[string]interface{}{"round": round.Number},
		}); err != nil {
			return err
		}
		// сам выбор не раскрываем сопернику до конца раунда
		events = append(events, s.event(domain.EventChoiceRecorded, sess, round.Number, map[string]interface{}{
			"playerId": player.ID,
		}))

		var outcome *domain.Outcome
		if len(round.Choices) == 2 {
			outcome, err = s.completeRound(ctx, tx, sess, round)
			if err != nil {
				return err
			}
			completed = true
			finished = sess.Status == domain.SessionCompleted

			events = append(events, s.event(domain.EventRoundCompleted, sess, round.Number, outcome))
			if finished {
				events = append(events, s.event(domain.EventSessionCompleted, sess, round.Number, scoreSummary(sess)))
			}
		}

		// версия растет на каждый выбор, поэтому параллельная запись в ту же сессию конфликтует
		if err := tx.UpdateSession(ctx, sess); err != nil {
			return err
		}

		result = &SubmitResult{
			SessionID:     sess.ID,
			RoundNumber:   round.Number,
			Status:        round.Status,
			Outcome:       outcome,
			SessionStatus: sess.Status,
			CurrentRound:  sess.CurrentRound,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ChoiceRecorded(string(choiceFromToken(choiceToken)))
	if completed {
		s.metrics.RoundCompleted()
		logger.WithContext(ctx).Info("round completed",
			"session_id", result.SessionID, "round", result.RoundNumber, "session_status", result.SessionStatus)
	}
	if finished {
		s.metrics.SessionTransition(string(domain.SessionCompleted))
		logger.WithContext(ctx).Info("session completed", "session_id", result.SessionID)
	}
	s.publish(events)
	return result, nil
}

// текущий раунд сессии. Если его нет, создаем
func (s *GameService) currentRound(ctx context.Context, tx repository.Tx, sess *domain.Session) (*domain.Round, error) {
	if r := sess.RoundByNumber(sess.CurrentRound); r != nil {
		return r, nil
	}
	r := &domain.Round{
		ID:        s.newID(),
		SessionID: sess.ID,
		Number:    sess.CurrentRound,
		Status:    domain.RoundInProgress,
		CreatedAt: s.now(),
	}
	if err := tx.CreateRound(ctx, r); err != nil {
		return nil, err
	}
	sess.Rounds = append(sess.Rounds, r)
	logger.WithContext(ctx).Warn("current round was missing, created", "session_id", sess.ID, "round", r.Number)
	return r, nil
}

// начисляет очки в порядке слотов, закрывает раунд и двигает сессию
func (s *GameService) completeRound(ctx context.Context, tx repository.Tx, sess *domain.Session, round *domain.Round) (*domain.Outcome, error) {
	first, second := sess.PlayerInSlot(domain.SlotFirst), sess.PlayerInSlot(domain.SlotSecond)
	if first == nil || second == nil {
		return nil, fmt.Errorf("session %s: round %d completed without two seated players", sess.ID, round.Number)
	}
	c1, c2 := round.ChoiceBy(first.ID), round.ChoiceBy(second.ID)
	if c1 == nil || c2 == nil {
		return nil, fmt.Errorf("session %s: round %d has choices from unknown players", sess.ID, round.Number)
	}

	d1, d2 := game.Resolve(c1.Choice, c2.Choice)
	first.Score += d1
	second.Score += d2

	now := s.now()
	round.Status = domain.RoundCompleted
	round.CompletedAt = &now
	if err := tx.CompleteRound(ctx, round); err != nil {
		return nil, err
	}

	if err := tx.AppendAudit(ctx, &domain.AuditLog{
		SessionID: sess.ID,
		Action:    domain.AuditActionRoundComplete,
		Category:  domain.AuditCategoryGame,
		Details: map[string]interface{}{
			"round":  round.Number,
			"first":  string(c1.Choice),
			"second": string(c2.Choice),
			"deltas": []int{d1, d2},
		},
	}); err != nil {
		return nil, err
	}

	outcome := &domain.Outcome{
		RoundNumber: round.Number,
		Players: [2]domain.PlayerOutcome{
			{PlayerID: first.ID, PlayerName: first.Name, Choice: c1.Choice, Delta: d1, Score: first.Score},
			{PlayerID: second.ID, PlayerName: second.Name, Choice: c2.Choice, Delta: d2, Score: second.Score},
		},
	}

	if err := s.advance(ctx, tx, sess, now); err != nil {
		return nil, err
	}
	return outcome, nil
}

// токен уже проверен, ошибки здесь быть не может
func choiceFromToken(token string) domain.Choice {
	c, _ := game.ParseChoice(token)
	return c
}
