package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

type PostgresWinners struct {
	db *pgxpool.Pool
}

func NewPostgresWinners(db *pgxpool.Pool) *PostgresWinners {
	return &PostgresWinners{db: db}
}

func (s *PostgresWinners) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS winners (
			id            BIGSERIAL PRIMARY KEY,
			round         BIGINT NOT NULL,
			session_id    TEXT NOT NULL DEFAULT '',
			address       TEXT NOT NULL,
			fees_lamports BIGINT NOT NULL DEFAULT 0,
			tx_signature  TEXT NOT NULL DEFAULT '',
			color         TEXT NOT NULL DEFAULT '',
			pixels        INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS winners_created_at_idx ON winners (created_at DESC);
	`)
	return err
}

func (s *PostgresWinners) Record(ctx context.Context, w *Winner) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO winners (round, session_id, address, fees_lamports, tx_signature, color, pixels)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, w.Round, w.SessionID, w.Address, w.FeesLamports, w.TxSignature, w.Color, w.Pixels).Scan(&w.ID, &w.CreatedAt)
}

func (s *PostgresWinners) Recent(ctx context.Context, limit int) ([]Winner, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, round, session_id, address, fees_lamports, tx_signature, color, pixels, created_at
		FROM winners ORDER BY created_at DESC, id DESC LIMIT $1
	`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Winner
	for rows.Next() {
		var w Winner
		if err := rows.Scan(&w.ID, &w.Round, &w.SessionID, &w.Address, &w.FeesLamports,
			&w.TxSignature, &w.Color, &w.Pixels, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresWinners) ByRound(ctx context.Context, round int64) (*Winner, error) {
	w := &Winner{}
	err := s.db.QueryRow(ctx, `
		SELECT id, round, session_id, address, fees_lamports, tx_signature, color, pixels, created_at
		FROM winners WHERE round = $1 ORDER BY id DESC LIMIT 1
	`, round).Scan(&w.ID, &w.Round, &w.SessionID, &w.Address, &w.FeesLamports,
		&w.TxSignature, &w.Color, &w.Pixels, &w.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (s *PostgresWinners) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresWinners) Close() error {
	s.db.Close()
	return nil
}
