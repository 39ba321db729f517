package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the generation_records table.
const Schema = `
CREATE TABLE IF NOT EXISTS generation_records (
    id               BIGSERIAL PRIMARY KEY,
    text             TEXT NOT NULL,
    voice_profile_id INTEGER NOT NULL,
    result_url       TEXT NOT NULL,
    session_token    TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_generation_records_created_at ON generation_records (created_at);
`

// Execer is the subset of *pgxpool.Pool used by [PostgresStore].
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Recorder] backed by PostgreSQL.
type PostgresStore struct {
	db Execer
}

var _ Recorder = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore on db.
func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("audit: migrate: %w", err)
	}
	return nil
}

// Record implements [Recorder]. A zero CreatedAt uses the database clock.
func (s *PostgresStore) Record(ctx context.Context, r Record) error {
	const q = `
		INSERT INTO generation_records (text, voice_profile_id, result_url, session_token, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))`

	var createdAt any
	if !r.CreatedAt.IsZero() {
		createdAt = r.CreatedAt
	}
	if _, err := s.db.Exec(ctx, q, r.Text, r.VoiceProfileID, r.ResultURL, r.SessionToken, createdAt); err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}
