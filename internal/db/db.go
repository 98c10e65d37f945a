package db

import (
	"context"
	"time"

	"dilemma_webapp/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect открывает пул соединений и применяет схему. Без базы сервис не стартует
func Connect(url string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create db pool", "error", err)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping db", "error", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to apply schema", "error", err)
	}

	logger.Info("db connected", "max_conns", cfg.MaxConns)
	return pool
}

// Migrate создает таблицы, если их еще нет
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	current_round INTEGER NOT NULL DEFAULT 0,
	max_rounds    INTEGER NOT NULL CHECK (max_rounds > 0),
	version       BIGINT NOT NULL DEFAULT 1,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS game_sessions_waiting_idx
	ON game_sessions (created_at) WHERE status = 'Waiting';

CREATE TABLE IF NOT EXISTS players (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES game_sessions (id) ON DELETE CASCADE,
	name       VARCHAR(100) NOT NULL,
	slot       SMALLINT NOT NULL CHECK (slot IN (1, 2)),
	score      INTEGER NOT NULL DEFAULT 0 CHECK (score >= 0),
	joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT players_session_slot_key UNIQUE (session_id, slot)
);

CREATE TABLE IF NOT EXISTS rounds (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES game_sessions (id) ON DELETE CASCADE,
	number       INTEGER NOT NULL CHECK (number > 0),
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	CONSTRAINT rounds_session_number_key UNIQUE (session_id, number)
);

CREATE TABLE IF NOT EXISTS choices (
	id         TEXT PRIMARY KEY,
	round_id   TEXT NOT NULL REFERENCES rounds (id) ON DELETE CASCADE,
	player_id  TEXT NOT NULL REFERENCES players (id) ON DELETE CASCADE,
	choice     TEXT NOT NULL CHECK (choice IN ('Cooperate', 'Defect')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT choices_round_player_key UNIQUE (round_id, player_id)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT,
	player_id  TEXT,
	action     TEXT NOT NULL,
	category   TEXT NOT NULL,
	details    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS audit_logs_session_idx ON audit_logs (session_id, created_at DESC);
`
