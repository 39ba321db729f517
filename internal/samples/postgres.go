package samples

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the voice_samples table. The primary key on
// voice_profile_id enforces one sample per profile. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS voice_samples (
    voice_profile_id INTEGER PRIMARY KEY,
    audio_url        TEXT NOT NULL,
    label            TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on db. Call
// [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("samples: migrate: %w", err)
	}
	return nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, profileID int) (*Sample, error) {
	const query = `
		SELECT voice_profile_id, audio_url, label, created_at
		FROM voice_samples
		WHERE voice_profile_id = $1`

	var sm Sample
	err := s.db.QueryRow(ctx, query, profileID).Scan(&sm.VoiceProfileID, &sm.AudioURL, &sm.Label, &sm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("samples: get %d: %w", profileID, err)
	}
	return &sm, nil
}

// InsertIfAbsent implements [Store.InsertIfAbsent].
//
// The insert uses ON CONFLICT DO NOTHING; when it affects no row the winner
// is read back in a second statement, which sees the committed row even if it
// was inserted after the first statement's snapshot.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, sm Sample) (Sample, bool, error) {
	const insert = `
		INSERT INTO voice_samples (voice_profile_id, audio_url, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (voice_profile_id) DO NOTHING
		RETURNING created_at`

	err := s.db.QueryRow(ctx, insert, sm.VoiceProfileID, sm.AudioURL, sm.Label).Scan(&sm.CreatedAt)
	switch {
	case err == nil:
		return sm, true, nil
	case errors.Is(err, pgx.ErrNoRows), isDuplicateKeyError(err):
	default:
		return Sample{}, false, fmt.Errorf("samples: insert %d: %w", sm.VoiceProfileID, err)
	}

	existing, err := s.Get(ctx, sm.VoiceProfileID)
	if err != nil {
		return Sample{}, false, err
	}
	if existing == nil {
		return Sample{}, false, fmt.Errorf("samples: insert %d: conflicting row vanished", sm.VoiceProfileID)
	}
	return *existing, false, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Sample, error) {
	const query = `
		SELECT voice_profile_id, audio_url, label, created_at
		FROM voice_samples
		ORDER BY voice_profile_id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("samples: list: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.VoiceProfileID, &sm.AudioURL, &sm.Label, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("samples: list scan: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("samples: list rows: %w", err)
	}
	return out, nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
