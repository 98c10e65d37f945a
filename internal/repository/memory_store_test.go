package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"dilemma_webapp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWaitingSession(id, playerID string, createdAt time.Time) *domain.Session {
	return &domain.Session{
		ID:           id,
		Status:       domain.SessionWaiting,
		CurrentRound: 0,
		MaxRounds:    10,
		CreatedAt:    createdAt,
		Players: []*domain.Player{
			{ID: playerID, SessionID: id, Name: "Alice", Slot: domain.SlotFirst, JoinedAt: createdAt},
		},
	}
}

func TestMemoryStore_CreateAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	err := store.InTx(ctx, func(tx Tx) error {
		return tx.CreateSession(ctx, newWaitingSession("s1", "p1", now))
	})
	require.NoError(t, err)

	s, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionWaiting, s.Status)
	assert.Equal(t, int64(1), s.Version)
	require.Len(t, s.Players, 1)

	p, err := store.FindPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SessionID)

	_, err = store.GetSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		return tx.CreateSession(ctx, newWaitingSession("s1", "p1", time.Now()))
	}))

	s, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	s.Players[0].Score = 999
	s.Status = domain.SessionCompleted

	again, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Players[0].Score, "изменение копии не должно попадать в хранилище")
	assert.Equal(t, domain.SessionWaiting, again.Status)
}

func TestMemoryStore_StaleVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		return tx.CreateSession(ctx, newWaitingSession("s1", "p1", time.Now()))
	}))

	stale, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)

	// первый писатель успевает обновить сессию
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		s, err := tx.GetSessionByID(ctx, "s1")
		if err != nil {
			return err
		}
		s.CurrentRound = 1
		return tx.UpdateSession(ctx, s)
	}))

	// второй пишет со старой версией
	err = store.InTx(ctx, func(tx Tx) error {
		stale.CurrentRound = 5
		return tx.UpdateSession(ctx, stale)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	s, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, int64(2), s.Version)
}

func TestMemoryStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		return tx.CreateSession(ctx, newWaitingSession("s1", "p1", now))
	}))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx Tx) error {
		s, err := tx.GetSessionByID(ctx, "s1")
		if err != nil {
			return err
		}
		s.Status = domain.SessionActive
		s.CurrentRound = 1
		s.Players = append(s.Players, &domain.Player{ID: "p2", SessionID: "s1", Name: "Bob", Slot: domain.SlotSecond, JoinedAt: now})
		if err := tx.UpdateSession(ctx, s); err != nil {
			return err
		}
		if err := tx.CreateRound(ctx, &domain.Round{ID: "r1", SessionID: "s1", Number: 1, Status: domain.RoundInProgress, CreatedAt: now}); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &domain.AuditLog{SessionID: "s1", Action: domain.AuditActionSessionJoin}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	s, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionWaiting, s.Status)
	assert.Equal(t, int64(1), s.Version)
	assert.Len(t, s.Players, 1)
	assert.Empty(t, s.Rounds)

	_, err = store.FindPlayer(ctx, "p2")
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := store.ListAudit(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)

	// сессия по-прежнему доступна для подбора
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		w, err := tx.FindWaitingSession(ctx)
		if err != nil {
			return err
		}
		assert.Equal(t, "s1", w.ID)
		return nil
	}))
}

func TestMemoryStore_RollbackOnCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, newWaitingSession("s1", "p1", time.Now())); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = store.GetSessionByID(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_FindWaitingSession_Oldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, newWaitingSession("newer", "p2", base.Add(time.Second))); err != nil {
			return err
		}
		return tx.CreateSession(ctx, newWaitingSession("older", "p1", base))
	}))

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		s, err := tx.FindWaitingSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "older", s.ID)

		// активная сессия выпадает из очереди ожидания
		s.Status = domain.SessionActive
		return tx.UpdateSession(ctx, s)
	}))

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		s, err := tx.FindWaitingSession(ctx)
		require.NoError(t, err)
		assert.Equal(t, "newer", s.ID)
		return nil
	}))
}

func TestMemoryStore_FindWaitingSession_Empty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.InTx(ctx, func(tx Tx) error {
		_, err := tx.FindWaitingSession(ctx)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DuplicateChoice(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, newWaitingSession("s1", "p1", now)); err != nil {
			return err
		}
		return tx.CreateRound(ctx, &domain.Round{ID: "r1", SessionID: "s1", Number: 1, Status: domain.RoundInProgress, CreatedAt: now})
	}))

	record := func(id string) error {
		return store.InTx(ctx, func(tx Tx) error {
			return tx.RecordChoice(ctx, &domain.ChoiceRecord{ID: id, RoundID: "r1", PlayerID: "p1", Choice: domain.ChoiceDefect, CreatedAt: now})
		})
	}
	require.NoError(t, record("c1"))
	assert.ErrorIs(t, record("c2"), ErrDuplicateChoice)

	r, err := store.GetRound(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, r.Choices, 1)
	assert.Equal(t, "c1", r.Choices[0].ID)
}

func TestMemoryStore_RoundLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, newWaitingSession("s1", "p1", now)); err != nil {
			return err
		}
		if err := tx.CreateRound(ctx, &domain.Round{ID: "r2", SessionID: "s1", Number: 2, Status: domain.RoundInProgress, CreatedAt: now}); err != nil {
			return err
		}
		return tx.CreateRound(ctx, &domain.Round{ID: "r1", SessionID: "s1", Number: 1, Status: domain.RoundInProgress, CreatedAt: now})
	}))

	// повторный номер раунда
	err := store.InTx(ctx, func(tx Tx) error {
		return tx.CreateRound(ctx, &domain.Round{ID: "r1b", SessionID: "s1", Number: 1, Status: domain.RoundInProgress, CreatedAt: now})
	})
	assert.ErrorIs(t, err, ErrConflict)

	done := now.Add(time.Minute)
	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		return tx.CompleteRound(ctx, &domain.Round{ID: "r1", CompletedAt: &done})
	}))
	err = store.InTx(ctx, func(tx Tx) error {
		return tx.CompleteRound(ctx, &domain.Round{ID: "r1", CompletedAt: &done})
	})
	assert.ErrorIs(t, err, ErrConflict)

	s, err := store.GetSessionByID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s.Rounds, 2)
	assert.Equal(t, 1, s.Rounds[0].Number)
	assert.Equal(t, domain.RoundCompleted, s.Rounds[0].Status)
	assert.Equal(t, 2, s.Rounds[1].Number)
	assert.Equal(t, domain.RoundInProgress, s.Rounds[1].Status)

	_, err = store.GetRound(ctx, "s1", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PlayerOwnedByAnotherSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateSession(ctx, newWaitingSession("s1", "p1", now)); err != nil {
			return err
		}
		return tx.CreateSession(ctx, newWaitingSession("s2", "p2", now))
	}))

	err := store.InTx(ctx, func(tx Tx) error {
		s, err := tx.GetSessionByID(ctx, "s2")
		if err != nil {
			return err
		}
		s.Players = append(s.Players, &domain.Player{ID: "p1", SessionID: "s2", Name: "Alice", Slot: domain.SlotSecond})
		return tx.UpdateSession(ctx, s)
	})
	assert.ErrorIs(t, err, ErrConflict)

	err = store.InTx(ctx, func(tx Tx) error {
		return tx.CreateSession(ctx, newWaitingSession("s3", "p1", now))
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStore_ListAudit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.InTx(ctx, func(tx Tx) error {
		for _, a := range []struct{ session, action string }{
			{"s1", domain.AuditActionSessionCreate},
			{"s2", domain.AuditActionSessionCreate},
			{"s1", domain.AuditActionSessionJoin},
		} {
			if err := tx.AppendAudit(ctx, &domain.AuditLog{SessionID: a.session, Action: a.action, Category: domain.AuditCategoryGame}); err != nil {
				return err
			}
		}
		return nil
	}))

	logs, err := store.ListAudit(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.AuditActionSessionJoin, logs[0].Action)
	assert.Equal(t, domain.AuditActionSessionCreate, logs[1].Action)
	assert.Greater(t, logs[0].ID, logs[1].ID)

	all, err := store.ListAudit(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
