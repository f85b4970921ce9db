package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteWinners is the single-file winner history used when no Postgres URL
// is configured.
type SQLiteWinners struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteWinners, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS winners (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			round         INTEGER NOT NULL,
			session_id    TEXT NOT NULL DEFAULT '',
			address       TEXT NOT NULL,
			fees_lamports INTEGER NOT NULL DEFAULT 0,
			tx_signature  TEXT NOT NULL DEFAULT '',
			color         TEXT NOT NULL DEFAULT '',
			pixels        INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS winners_created_at_idx ON winners (created_at DESC);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return &SQLiteWinners{db: db}, nil
}

func (s *SQLiteWinners) Record(ctx context.Context, w *Winner) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO winners (round, session_id, address, fees_lamports, tx_signature, color, pixels, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Round, w.SessionID, w.Address, w.FeesLamports, w.TxSignature, w.Color, w.Pixels, w.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}
	w.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteWinners) Recent(ctx context.Context, limit int) ([]Winner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round, session_id, address, fees_lamports, tx_signature, color, pixels, created_at
		FROM winners ORDER BY created_at DESC, id DESC LIMIT ?
	`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Winner
	for rows.Next() {
		w, err := scanSQLiteWinner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (s *SQLiteWinners) ByRound(ctx context.Context, round int64) (*Winner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, round, session_id, address, fees_lamports, tx_signature, color, pixels, created_at
		FROM winners WHERE round = ? ORDER BY id DESC LIMIT 1
	`, round)
	w, err := scanSQLiteWinner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

func (s *SQLiteWinners) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteWinners) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteWinner(sc scanner) (*Winner, error) {
	var (
		w  Winner
		ms int64
	)
	if err := sc.Scan(&w.ID, &w.Round, &w.SessionID, &w.Address, &w.FeesLamports,
		&w.TxSignature, &w.Color, &w.Pixels, &ms); err != nil {
		return nil, err
	}
	w.CreatedAt = time.UnixMilli(ms).UTC()
	return &w, nil
}
