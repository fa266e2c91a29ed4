package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/lib/sqliteutil"
)

const Schema = `
create table if not exists kv (
	key text primary key,
	value text not null
);
`

const tokenKey = "sunvoy_session"

// SQLiteTokenStore keeps the session token in a key/value table.
type SQLiteTokenStore struct {
	db *sql.DB
}

// NewSQLiteTokenStore uses an already opened database that has Schema applied.
func NewSQLiteTokenStore(db *sql.DB) SQLiteTokenStore {
	return SQLiteTokenStore{db: db}
}

// OpenSQLiteTokenStore opens (and creates if needed) the database at `path`.
func OpenSQLiteTokenStore(path string) (SQLiteTokenStore, error) {
	db, err := sqliteutil.OpenDB(Schema, path)
	if err != nil {
		return SQLiteTokenStore{}, fmt.Errorf("open token db: %w", err)
	}
	return NewSQLiteTokenStore(db), nil
}

func (s SQLiteTokenStore) Close() error {
	return s.db.Close()
}

func (s SQLiteTokenStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "select value from kv where key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s SQLiteTokenStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		"insert into kv (key, value) values (?, ?) on conflict(key) do update set value = excluded.value",
		key, value,
	)
	return err
}

func (s SQLiteTokenStore) ReadToken(ctx context.Context) (sunvoy.Token, error) {
	value, err := s.get(ctx, tokenKey)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return sunvoy.Token(value), nil
}

func (s SQLiteTokenStore) WriteToken(ctx context.Context, token sunvoy.Token) error {
	err := s.put(ctx, tokenKey, token.String())
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
