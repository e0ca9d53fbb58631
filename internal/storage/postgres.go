package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresTable is the key-value table used by PostgresStore.
const PostgresTable = "planner_kv"

// PostgresSchema creates the key-value table.
const PostgresSchema = `CREATE TABLE IF NOT EXISTS planner_kv (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DBTX is the subset of pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore stores JSON values in a Postgres JSONB column.
type PostgresStore struct {
	db  DBTX
	sql sq.StatementBuilderType
	now func() time.Time
}

// NewPostgresStore creates a store backed by db.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.sql.Select("value").From(PostgresTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	var value []byte
	if err := s.db.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("selecting %s: %w", key, err)
	}
	return value, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := s.sql.Insert(PostgresTable).
		Columns("key", "value", "updated_at").
		Values(key, value, s.now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	query, args, err := s.sql.Delete(PostgresTable).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
