package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"flatwatch/internal/ports"
)

// PostgresRepository persists dedup checkpoints in Postgres.
//
// Schema (managed outside the core):
//
//	CREATE TABLE checkpoints (
//	    user_id    TEXT NOT NULL,
//	    provider   TEXT NOT NULL,
//	    hashes     TEXT[] NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (user_id, provider)
//	);
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ListingRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetCheckpoints returns the stored fingerprints for one (user, provider)
// pair, newest-first, or nil when no checkpoint exists yet.
func (r *PostgresRepository) GetCheckpoints(ctx context.Context, userID, provider string) ([]string, error) {
	query, args, err := r.builder.
		Select("hashes").
		From("checkpoints").
		Where(sq.Eq{"user_id": userID, "provider": provider}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build checkpoint query: %w", err)
	}

	var hashes pq.StringArray
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&hashes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	return []string(hashes), nil
}

// SetCheckpoints overwrites the checkpoint for one (user, provider) pair.
func (r *PostgresRepository) SetCheckpoints(ctx context.Context, userID, provider string, hashes []string) error {
	query, args, err := r.builder.
		Insert("checkpoints").
		Columns("user_id", "provider", "hashes").
		Values(userID, provider, pq.StringArray(hashes)).
		Suffix("ON CONFLICT (user_id, provider) DO UPDATE SET hashes = EXCLUDED.hashes, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build checkpoint upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// GetProviderCountForUser reports how many providers have a stored checkpoint
// for the user.
func (r *PostgresRepository) GetProviderCountForUser(ctx context.Context, userID string) (int, error) {
	query, args, err := r.builder.
		Select("COUNT(*)").
		From("checkpoints").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return count, nil
}

// ClearUser removes every checkpoint of one user, resetting all their
// providers to a first-run confirmation pass.
func (r *PostgresRepository) ClearUser(ctx context.Context, userID string) error {
	query, args, err := r.builder.
		Delete("checkpoints").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear user checkpoints: %w", err)
	}
	return nil
}
