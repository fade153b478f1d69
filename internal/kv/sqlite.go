package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database. Plain values and
// hashes live in separate tables but share one key space.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath (":memory:" works) and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every statement below is then atomic with respect to the others,
	// and an in-memory database is not split across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kv_hash (
			key TEXT NOT NULL,
			field TEXT NOT NULL,
			value INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (key, field)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value),
	)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_hash WHERE key = ?`, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	n := utf8.RuneCountInString(prefix)
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ?
		 UNION
		 SELECT key FROM kv_hash WHERE substr(key, 1, ?) = ?`,
		n, prefix, n, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		 RETURNING value`, key).Scan(&raw)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *SQLiteStore) HIncrBy(ctx context.Context, key, field string, n int64) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv_hash (key, field, value) VALUES (?, ?, ?)
		 ON CONFLICT(key, field) DO UPDATE SET value = value + excluded.value
		 RETURNING value`, key, field, n).Scan(&value)
	return value, err
}

func (s *SQLiteStore) HGetAll(ctx context.Context, key string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM kv_hash WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var field string
		var value int64
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		out[field] = value
	}
	return out, rows.Err()
}
