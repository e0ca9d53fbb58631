package featureflags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Table is the Postgres table holding feature flags.
const Table = "feature_flags"

// Schema creates the feature flag table.
const Schema = `CREATE TABLE IF NOT EXISTS feature_flags (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertSuffix = "ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at"

// DB is the subset of pgxpool.Pool used by PostgresRepository.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores flags as JSONB rows so every API and worker
// instance sees the same values.
type PostgresRepository struct {
	db  DB
	sql sq.StatementBuilderType
	now func() time.Time
}

// NewPostgresRepository creates a repository on db, usually a pgxpool.Pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

// GetFlag retrieves a single feature flag by key.
func (r *PostgresRepository) GetFlag(ctx context.Context, key string) (*Flag, error) {
	query, args, err := r.sql.Select("key", "value", "updated_at").
		From(Table).
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	flag, err := scanFlag(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("selecting flag %s: %w", key, err)
	}
	return flag, nil
}

// GetAllFlags retrieves all feature flags.
func (r *PostgresRepository) GetAllFlags(ctx context.Context) (map[string]*Flag, error) {
	query, args, err := r.sql.Select("key", "value", "updated_at").
		From(Table).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting flags: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]*Flag)
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags[flag.Key] = flag
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flags, nil
}

// SetFlags upserts flags in one transaction.
func (r *PostgresRepository) SetFlags(ctx context.Context, flags []*Flag) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	now := r.now()
	for _, flag := range flags {
		query, args, err := r.upsert(flag, now)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting flag %s: %w", flag.Key, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) upsert(flag *Flag, at time.Time) (string, []any, error) {
	value, err := json.Marshal(flag.Value)
	if err != nil {
		return "", nil, fmt.Errorf("encoding flag %s: %w", flag.Key, err)
	}
	query, args, err := r.sql.Insert(Table).
		Columns("key", "value", "updated_at").
		Values(flag.Key, value, at.UTC()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building upsert: %w", err)
	}
	return query, args, nil
}

func scanFlag(row pgx.Row) (*Flag, error) {
	var (
		flag  Flag
		value []byte
	)
	if err := row.Scan(&flag.Key, &value, &flag.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &flag.Value); err != nil {
		return nil, fmt.Errorf("decoding flag %s: %w", flag.Key, err)
	}
	return &flag, nil
}

var _ Repository = (*PostgresRepository)(nil)
