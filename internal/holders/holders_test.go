package holders

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Russioo/pixelarena/internal/round"
)

func TestQuotaForPercentage(t *testing.T) {
	cases := []struct {
		pct   float64
		cells int
		want  int
	}{
		{0, 2500, 1},
		{0.01, 2500, 1},
		{0.5, 2500, 12},
		{1, 2500, 25},
		{10, 2500, 250},
		{100, 100, 100},
	}
	for _, tc := range cases {
		if got := QuotaForPercentage(tc.pct, tc.cells); got != tc.want {
			t.Fatalf("QuotaForPercentage(%v, %d) = %d, want %d", tc.pct, tc.cells, got, tc.want)
		}
	}
}

func TestDefault(t *testing.T) {
	list := Default(2500)
	if len(list) != DefaultCount {
		t.Fatalf("expected %d participants, got %d", DefaultCount, len(list))
	}
	if list[0].Identity != "HOLDER_000" || list[99].Identity != "HOLDER_099" {
		t.Fatalf("unexpected identities %q..%q", list[0].Identity, list[99].Identity)
	}
	for i, p := range list {
		if p.Quota != 25 {
			t.Fatalf("participant %d quota = %d, want 25", i, p.Quota)
		}
	}
	if list[0].Color != "hsl(0, 80%, 50%)" || list[10].Color != "hsl(36, 80%, 50%)" {
		t.Fatalf("unexpected colors %q %q", list[0].Color, list[10].Color)
	}
}

func TestRankDropsShareWhale(t *testing.T) {
	balances := map[string]float64{"WHALE": 30}
	for i := 0; i < 20; i++ {
		balances[fmt.Sprintf("H%02d", i)] = 10
	}

	got := Rank(balances, 2500)
	if len(got) != 20 {
		t.Fatalf("expected 20 participants, got %d", len(got))
	}
	for _, p := range got {
		if p.Identity == "WHALE" {
			t.Fatal("holder above 10% share should be excluded")
		}
		if math.Abs(p.Percentage-5) > 1e-9 || p.Quota != 125 {
			t.Fatalf("%s: percentage %v quota %d, want 5 and 125", p.Identity, p.Percentage, p.Quota)
		}
	}
	if got[0].Identity != "H00" || got[19].Identity != "H19" {
		t.Fatalf("equal balances should sort by identity, got %q..%q", got[0].Identity, got[19].Identity)
	}
}

func TestRankDropsBalanceWhale(t *testing.T) {
	balances := map[string]float64{"BIG": whaleBalance}
	for i := 0; i < 20; i++ {
		balances[fmt.Sprintf("H%02d", i)] = whaleBalance - 1
	}
	got := Rank(balances, 2500)
	if len(got) != 20 {
		t.Fatalf("expected 20 participants, got %d", len(got))
	}
	for _, p := range got {
		if p.Identity == "BIG" {
			t.Fatal("holder at the balance cap should be excluded")
		}
	}
}

func TestRankCapsAndSorts(t *testing.T) {
	balances := make(map[string]float64)
	for i := 0; i < 150; i++ {
		balances[fmt.Sprintf("H%03d", i)] = float64(i + 1)
	}
	got := Rank(balances, 2500)
	if len(got) != round.MaxParticipants {
		t.Fatalf("expected %d participants, got %d", round.MaxParticipants, len(got))
	}
	if got[0].Identity != "H149" || got[len(got)-1].Identity != "H050" {
		t.Fatalf("unexpected ranking %q..%q", got[0].Identity, got[len(got)-1].Identity)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Weight > got[i-1].Weight {
			t.Fatalf("ranking not descending at %d", i)
		}
		if got[i].Quota < 1 {
			t.Fatalf("participant %d has no starting pixel", i)
		}
	}
}

func TestPalette(t *testing.T) {
	a := Palette(8, rand.New(rand.NewPCG(1, 2)))
	b := Palette(8, rand.New(rand.NewPCG(1, 2)))
	seen := make(map[string]bool)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("palette not deterministic at %d: %q vs %q", i, a[i], b[i])
		}
		if !strings.HasPrefix(a[i], "hsl(") {
			t.Fatalf("unexpected color %q", a[i])
		}
		if seen[a[i]] {
			t.Fatalf("duplicate color %q", a[i])
		}
		seen[a[i]] = true
	}
}

func TestStatic(t *testing.T) {
	if _, err := (Static{}).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for empty static list")
	}
	src := Static{{Identity: "a", Quota: 1}, {Identity: "b", Quota: 2}}
	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got[0].Identity = "changed"
	if src[0].Identity != "a" {
		t.Fatal("fetch should return a copy")
	}
}

func TestRPCURL(t *testing.T) {
	if got := RPCURL("key", "https://rpc.example"); got != "https://mainnet.helius-rpc.com/?api-key=key" {
		t.Fatalf("helius url = %q", got)
	}
	if got := RPCURL(" ", "https://rpc.example"); got != "https://rpc.example" {
		t.Fatalf("explicit url = %q", got)
	}
	if got := RPCURL("", ""); got != defaultRPCURL {
		t.Fatalf("default url = %q", got)
	}
}

func tokenAccount(owner string, amount *float64) map[string]any {
	return map[string]any{
		"pubkey": "acc_" + owner,
		"account": map[string]any{
			"data": map[string]any{
				"parsed": map[string]any{
					"info": map[string]any{
						"owner":       owner,
						"tokenAmount": map[string]any{"uiAmount": amount},
					},
				},
			},
		},
	}
}

func ptr(v float64) *float64 { return &v }

func TestRPCSupplierFetch(t *testing.T) {
	methods := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		methods <- req.Method

		accounts := []any{
			tokenAccount("TOP", ptr(30)),
			tokenAccount("TOP", ptr(20)),
			tokenAccount("EMPTY", ptr(0)),
			tokenAccount("NULL", nil),
		}
		for i := 0; i < 19; i++ {
			accounts = append(accounts, tokenAccount(fmt.Sprintf("OWNER_%02d", i), ptr(25)))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": accounts})
	}))
	defer srv.Close()

	s := NewRPCSupplier(srv.URL, "Mint111", 2500, nil)
	got, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if m := <-methods; m != "getProgramAccounts" {
		t.Fatalf("rpc method = %q", m)
	}
	if len(got) != 20 {
		t.Fatalf("expected 20 participants, got %d", len(got))
	}
	if got[0].Identity != "TOP" || got[0].Weight != 50 {
		t.Fatalf("expected summed top holder first, got %+v", got[0])
	}
	for _, p := range got {
		if p.Identity == "EMPTY" || p.Identity == "NULL" {
			t.Fatalf("holder %s without balance should be skipped", p.Identity)
		}
		if p.Color == "" {
			t.Fatalf("participant %s has no color", p.Identity)
		}
	}
}

func TestRPCSupplierErrors(t *testing.T) {
	rpcErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"x","error":{"code":-32600,"message":"bad request"}}`))
	}))
	defer rpcErr.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"x","result":[]}`))
	}))
	defer empty.Close()

	cases := []struct {
		name string
		url  string
		mint string
		want string
	}{
		{"no mint", empty.URL, "", "no mint"},
		{"rpc error", rpcErr.URL, "Mint111", "bad request"},
		{"http status", down.URL, "Mint111", "status 503"},
		{"no holders", empty.URL, "Mint111", "no holders"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRPCSupplier(tc.url, tc.mint, 2500, nil).Fetch(context.Background())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
