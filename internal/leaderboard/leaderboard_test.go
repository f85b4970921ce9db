package leaderboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Russioo/pixelarena/internal/cache"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := cache.NewRedis(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewService(rdb), mr
}

func TestRecordWinAccumulates(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	wins := []struct {
		round int64
		addr  string
		fees  int64
	}{
		{1, "alice", 1000},
		{2, "bob", 0},
		{3, "alice", 500},
		{4, "carol", 200},
		{5, "alice", 0},
		{6, "bob", 300},
	}
	for _, w := range wins {
		if err := svc.RecordWin(ctx, w.round, w.addr, w.fees); err != nil {
			t.Fatalf("record round %d: %v", w.round, err)
		}
	}

	if got, err := mr.Get(cache.KeyLastRound); err != nil || got != "6" {
		t.Fatalf("last round = %q (%v), want 6", got, err)
	}

	top, err := svc.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []Entry{
		{Address: "alice", Wins: 3, FeesLamports: 1500, Rank: 1},
		{Address: "bob", Wins: 2, FeesLamports: 300, Rank: 2},
		{Address: "carol", Wins: 1, FeesLamports: 200, Rank: 3},
	}
	if len(top) != len(want) {
		t.Fatalf("top has %d entries, want %d: %+v", len(top), len(want), top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("entry %d = %+v, want %+v", i, top[i], want[i])
		}
	}

	limited, err := svc.Top(ctx, 1)
	if err != nil {
		t.Fatalf("top 1: %v", err)
	}
	if len(limited) != 1 || limited[0].Address != "alice" {
		t.Fatalf("top 1 = %+v", limited)
	}
}

func TestRank(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RecordWin(ctx, 1, "alice", 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordWin(ctx, 2, "bob", 40); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordWin(ctx, 3, "bob", 60); err != nil {
		t.Fatalf("record: %v", err)
	}

	e, err := svc.Rank(ctx, "alice")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if e == nil || e.Rank != 2 || e.Wins != 1 || e.FeesLamports != 0 {
		t.Fatalf("alice = %+v", e)
	}
	e, err = svc.Rank(ctx, "bob")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if e == nil || e.Rank != 1 || e.Wins != 2 || e.FeesLamports != 100 {
		t.Fatalf("bob = %+v", e)
	}

	e, err = svc.Rank(ctx, "nobody")
	if err != nil || e != nil {
		t.Fatalf("unknown address = %+v, %v; want nil, nil", e, err)
	}
}

func TestResetAndEmptyTop(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	if err := svc.RecordWin(ctx, 9, "alice", 10); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists(cache.KeyWinsBoard) || mr.Exists(cache.KeyFeesBoard) || mr.Exists(cache.KeyLastRound) {
		t.Fatal("reset left keys behind")
	}
	top, err := svc.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("top after reset = %+v", top)
	}
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
