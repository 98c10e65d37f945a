package repository

import (
	"context"
	"errors"
	"fmt"

	"dilemma_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE коды, которые означают конкурентную запись
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"

	choiceUniqueConstraint = "choices_round_player_key"
)

// общий интерфейс для pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// хранилище на PostgreSQL
type PgStore struct {
	db *pgxpool.Pool
}

// создает хранилище поверх пула соединений
func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// InTx открывает SERIALIZABLE транзакцию. Ошибки сериализации и дедлоки
// превращаются в ErrConflict, чтобы сервис мог повторить операцию
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{q: tx}); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *PgStore) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return loadSession(ctx, s.db, id, false)
}

func (s *PgStore) GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error) {
	return loadRound(ctx, s.db, sessionID, number)
}

func (s *PgStore) FindPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return loadPlayer(ctx, s.db, playerID)
}

func (s *PgStore) ListAudit(ctx context.Context, sessionID string, limit int) ([]*domain.AuditLog, error) {
	return listAudit(ctx, s.db, sessionID, limit)
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PgStore) Close() {
	s.db.Close()
}

// транзакция PostgreSQL
type pgTx struct {
	q querier
}

func (t *pgTx) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return loadSession(ctx, t.q, id, true)
}

// самая старая ожидающая сессия. FOR UPDATE: второй претендент ждет
// коммита первого и получает ошибку сериализации
func (t *pgTx) FindWaitingSession(ctx context.Context) (*domain.Session, error) {
	var id string
	err := t.q.QueryRow(ctx, `
		SELECT id FROM game_sessions
		WHERE status = $1
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, domain.SessionWaiting).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return loadSession(ctx, t.q, id, false)
}

func (t *pgTx) FindPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	return loadPlayer(ctx, t.q, playerID)
}

func (t *pgTx) GetRound(ctx context.Context, sessionID string, number int) (*domain.Round, error) {
	return loadRound(ctx, t.q, sessionID, number)
}

func (t *pgTx) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO game_sessions (id, status, current_round, max_rounds, version, created_at, completed_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)
	`, s.ID, s.Status, s.CurrentRound, s.MaxRounds, s.CreatedAt, s.CompletedAt)
	if err != nil {
		return err
	}

	for _, p := range s.Players {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO players (id, session_id, name, slot, score, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, s.ID, p.Name, p.Slot, p.Score, p.JoinedAt); err != nil {
			return err
		}
	}

	s.Version = 1
	return nil
}

// UpdateSession пишет только если версия не изменилась с момента чтения
func (t *pgTx) UpdateSession(ctx context.Context, s *domain.Session) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE game_sessions
		SET status = $2, current_round = $3, completed_at = $4, version = version + 1
		WHERE id = $1 AND version = $5
	`, s.ID, s.Status, s.CurrentRound, s.CompletedAt, s.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s version %d is stale", ErrConflict, s.ID, s.Version)
	}

	for _, p := range s.Players {
		// чужой игрок с тем же id не перезаписывается
		tag, err := t.q.Exec(ctx, `
			INSERT INTO players (id, session_id, name, slot, score, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET score = EXCLUDED.score
			WHERE players.session_id = EXCLUDED.session_id
		`, p.ID, s.ID, p.Name, p.Slot, p.Score, p.JoinedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: player %s belongs to another session", ErrConflict, p.ID)
		}
	}

	s.Version++
	return nil
}

func (t *pgTx) CreateRound(ctx context.Context, r *domain.Round) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO rounds (id, session_id, number, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.SessionID, r.Number, r.Status, r.CreatedAt)
	return err
}

func (t *pgTx) CompleteRound(ctx context.Context, r *domain.Round) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE rounds SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4
	`, r.ID, domain.RoundCompleted, r.CompletedAt, domain.RoundInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: round %d already completed", ErrConflict, r.Number)
	}
	return nil
}

func (t *pgTx) RecordChoice(ctx context.Context, c *domain.ChoiceRecord) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO choices (id, round_id, player_id, choice, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.RoundID, c.PlayerID, c.Choice, c.CreatedAt)
	return err
}

func (t *pgTx) AppendAudit(ctx context.Context, l *domain.AuditLog) error {
	return createAudit(ctx, t.q, l)
}

func loadSession(ctx context.Context, q querier, id string, lock bool) (*domain.Session, error) {
	query := `
		SELECT id, status, current_round, max_rounds, version, created_at, completed_at
		FROM game_sessions
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var s domain.Session
	err := q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Status, &s.CurrentRound, &s.MaxRounds, &s.Version, &s.CreatedAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, session_id, name, slot, score, joined_at
		FROM players
		WHERE session_id = $1
		ORDER BY slot
	`, id)
	if err != nil {
		return nil, err
	}
	s.Players, err = scanPlayers(rows)
	if err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT id, session_id, number, status, created_at, completed_at
		FROM rounds
		WHERE session_id = $1
		ORDER BY number
	`, id)
	if err != nil {
		return nil, err
	}
	s.Rounds, err = scanRounds(rows)
	if err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT c.id, c.round_id, c.player_id, c.choice, c.created_at
		FROM choices c
		JOIN rounds r ON r.id = c.round_id
		WHERE r.session_id = $1
		ORDER BY c.created_at, c.id
	`, id)
	if err != nil {
		return nil, err
	}
	choices, err := scanChoices(rows)
	if err != nil {
		return nil, err
	}

	byRound := make(map[string]*domain.Round, len(s.Rounds))
	for _, r := range s.Rounds {
		byRound[r.ID] = r
	}
	for _, c := range choices {
		if r, ok := byRound[c.RoundID]; ok {
			r.Choices = append(r.Choices, c)
		}
	}

	return &s, nil
}

func loadRound(ctx context.Context, q querier, sessionID string, number int) (*domain.Round, error) {
	var r domain.Round
	err := q.QueryRow(ctx, `
		SELECT id, session_id, number, status, created_at, completed_at
		FROM rounds
		WHERE session_id = $1 AND number = $2
	`, sessionID, number).Scan(&r.ID, &r.SessionID, &r.Number, &r.Status, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, round_id, player_id, choice, created_at
		FROM choices
		WHERE round_id = $1
		ORDER BY created_at, id
	`, r.ID)
	if err != nil {
		return nil, err
	}
	r.Choices, err = scanChoices(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func loadPlayer(ctx context.Context, q querier, playerID string) (*domain.Player, error) {
	var p domain.Player
	err := q.QueryRow(ctx, `
		SELECT id, session_id, name, slot, score, joined_at
		FROM players
		WHERE id = $1
	`, playerID).Scan(&p.ID, &p.SessionID, &p.Name, &p.Slot, &p.Score, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPlayers(rows pgx.Rows) ([]*domain.Player, error) {
	defer rows.Close()
	var out []*domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Slot, &p.Score, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanRounds(rows pgx.Rows) ([]*domain.Round, error) {
	defer rows.Close()
	var out []*domain.Round
	for rows.Next() {
		var r domain.Round
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Number, &r.Status, &r.CreatedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func scanChoices(rows pgx.Rows) ([]*domain.ChoiceRecord, error) {
	defer rows.Close()
	var out []*domain.ChoiceRecord
	for rows.Next() {
		var c domain.ChoiceRecord
		if err := rows.Scan(&c.ID, &c.RoundID, &c.PlayerID, &c.Choice, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// mapPgError переводит коды ошибок postgres в ошибки хранилища.
// Разбираем SQLSTATE, а не текст сообщения
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateChoice) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: sqlstate %s", ErrConflict, pgErr.Code)
		case pgUniqueViolation:
			if pgErr.ConstraintName == choiceUniqueConstraint {
				return ErrDuplicateChoice
			}
			// параллельно создали тот же раунд или игрока
			return fmt.Errorf("%w: unique violation on %s", ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
