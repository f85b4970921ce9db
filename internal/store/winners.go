package store

import (
	"context"
	"time"
)

// Winner is one row of the round winner history.
type Winner struct {
	ID           int64     `json:"id"`
	Round        int64     `json:"round"`
	SessionID    string    `json:"sessionId"`
	Address      string    `json:"address"`
	FeesLamports int64     `json:"feesLamports"`
	TxSignature  string    `json:"txSignature,omitempty"`
	Color        string    `json:"color"`
	Pixels       int       `json:"pixels"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WinnerStore persists round winners.
type WinnerStore interface {
	Record(ctx context.Context, w *Winner) error
	Recent(ctx context.Context, limit int) ([]Winner, error)
	ByRound(ctx context.Context, round int64) (*Winner, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// ClampLimit bounds a requested page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, MaxRecentLimit)
}
