package leaderboard

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Russioo/pixelarena/internal/cache"
)

type Entry struct {
	Address      string  `json:"address"`
	Wins         float64 `json:"wins"`
	FeesLamports int64   `json:"feesLamports"`
	Rank         int64   `json:"rank"`
}

type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

// RecordWin bumps the winner's win count and accumulated fees and remembers
// the last finished round id.
func (s *Service) RecordWin(ctx context.Context, roundID int64, address string, feesLamports int64) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZIncrBy(ctx, cache.KeyWinsBoard, 1, address)
	if feesLamports > 0 {
		pipe.ZIncrBy(ctx, cache.KeyFeesBoard, float64(feesLamports), address)
	}
	pipe.Set(ctx, cache.KeyLastRound, strconv.FormatInt(roundID, 10), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the top N addresses by wins.
func (s *Service) Top(ctx context.Context, count int64) ([]Entry, error) {
	results, err := s.rdb.ZRevRangeWithScores(ctx, cache.KeyWinsBoard, 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(results))
	for i, z := range results {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{
			Address: member,
			Wins:    z.Score,
			Rank:    int64(i + 1),
		})
	}
	if len(entries) == 0 {
		return entries, nil
	}

	members := make([]string, len(entries))
	for i, e := range entries {
		members[i] = e.Address
	}
	fees, err := s.rdb.ZMScore(ctx, cache.KeyFeesBoard, members...).Result()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if i < len(fees) {
			entries[i].FeesLamports = int64(fees[i])
		}
	}
	return entries, nil
}

// Rank returns an address's rank and win count.
func (s *Service) Rank(ctx context.Context, address string) (*Entry, error) {
	rank, err := s.rdb.ZRevRank(ctx, cache.KeyWinsBoard, address).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	score, err := s.rdb.ZScore(ctx, cache.KeyWinsBoard, address).Result()
	if err != nil {
		return nil, err
	}
	fees, err := s.rdb.ZScore(ctx, cache.KeyFeesBoard, address).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return &Entry{Address: address, Wins: score, FeesLamports: int64(fees), Rank: rank + 1}, nil
}

// Reset removes all leaderboard data.
func (s *Service) Reset(ctx context.Context) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, cache.KeyWinsBoard)
	pipe.Del(ctx, cache.KeyFeesBoard)
	pipe.Del(ctx, cache.KeyLastRound)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Service) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
