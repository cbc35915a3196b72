// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// SQLiteConfig defines SQLite operational parameters.
type SQLiteConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the recommended configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tips (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	tip_id      TEXT NOT NULL,
	author      TEXT NOT NULL,
	amount      INTEGER NOT NULL,
	currency    TEXT NOT NULL,
	message     TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS tips_received_at ON tips(received_at);
`

// SQLite is a journal backed by a WAL-mode SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the journal database at path.
func OpenSQLite(path string, cfg SQLiteConfig) (*SQLite, error) {
	// PRAGMAs in the DSN apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tips (id, session_id, tip_id, author, amount, currency, message, timestamp, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.TipID, e.Author, e.Amount, e.Currency, e.Message, e.Timestamp, e.ReceivedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("sqlite: append tip: %w", err)
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, tip_id, author, amount, currency, message, timestamp, received_at
		 FROM tips ORDER BY received_at DESC, rowid DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("sqlite: query tips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var received int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TipID, &e.Author, &e.Amount, &e.Currency, &e.Message, &e.Timestamp, &received); err != nil {
			return nil, fmt.Errorf("sqlite: scan tip: %w", err)
		}
		e.ReceivedAt = time.Unix(0, received).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }
