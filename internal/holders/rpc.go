package holders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Russioo/pixelarena/internal/round"
)

const (
	tokenProgramID   = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	tokenAccountSize = 165
	defaultRPCURL    = "https://api.mainnet-beta.solana.com"

	// Holders above either limit are excluded from the round.
	whalePercentage = 10
	whaleBalance    = 100_000_000
)

// RPCURL picks the Solana RPC endpoint: Helius when a key is set, then an
// explicit URL, then public mainnet.
func RPCURL(heliusKey, rpcURL string) string {
	if k := strings.TrimSpace(heliusKey); k != "" {
		return "https://mainnet.helius-rpc.com/?api-key=" + k
	}
	if u := strings.TrimSpace(rpcURL); u != "" {
		return u
	}
	return defaultRPCURL
}

// RPCSupplier loads token holders of a mint via getProgramAccounts.
type RPCSupplier struct {
	URL        string
	Mint       string
	TotalCells int
	Client     *http.Client
	Logger     *slog.Logger
	Rand       *rand.Rand
}

func NewRPCSupplier(url, mint string, totalCells int, logger *slog.Logger) *RPCSupplier {
	now := uint64(time.Now().UnixNano())
	return &RPCSupplier{
		URL:        url,
		Mint:       mint,
		TotalCells: totalCells,
		Client:     &http.Client{Timeout: 15 * time.Second},
		Logger:     logger,
		Rand:       rand.New(rand.NewPCG(now, now>>17)),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner       string `json:"owner"`
						TokenAmount struct {
							UIAmount *float64 `json:"uiAmount"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *RPCSupplier) Fetch(ctx context.Context) ([]round.Participant, error) {
	if s.Mint == "" {
		return nil, fmt.Errorf("holders: no mint configured")
	}
	balances, err := s.fetchBalances(ctx)
	if err != nil {
		return nil, err
	}
	top := Rank(balances, s.TotalCells)
	if len(top) == 0 {
		return nil, fmt.Errorf("holders: no holders found for mint %s", s.Mint)
	}
	palette := Palette(len(top), s.Rand)
	for i := range top {
		top[i].Color = palette[i]
	}
	if s.Logger != nil {
		s.Logger.Info("holders fetched", "owners", len(balances), "participants", len(top))
	}
	return top, nil
}

func (s *RPCSupplier) fetchBalances(ctx context.Context) (map[string]float64, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "holders-request",
		Method:  "getProgramAccounts",
		Params: []any{
			tokenProgramID,
			map[string]any{
				"commitment": "confirmed",
				"encoding":   "jsonParsed",
				"filters": []any{
					map[string]any{"dataSize": tokenAccountSize},
					map[string]any{"memcmp": map[string]any{"offset": 0, "bytes": s.Mint}},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("holders rpc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holders rpc: status %d", resp.StatusCode)
	}

	var data rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("holders rpc: decode: %w", err)
	}
	if data.Error != nil {
		return nil, fmt.Errorf("holders rpc: %s", data.Error.Message)
	}

	balances := make(map[string]float64)
	for _, acc := range data.Result {
		info := acc.Account.Data.Parsed.Info
		if info.Owner == "" || info.TokenAmount.UIAmount == nil {
			continue
		}
		if amt := *info.TokenAmount.UIAmount; amt > 0 {
			balances[info.Owner] += amt
		}
	}
	return balances, nil
}

// Rank turns owner balances into the ranked participant list: whales are
// dropped, shares are recomputed over the rest, and the top MaxParticipants
// by balance are kept. Colors are left empty.
func Rank(balances map[string]float64, totalCells int) []round.Participant {
	total := 0.0
	for _, b := range balances {
		total += b
	}
	kept := make([]round.Participant, 0, len(balances))
	for owner, b := range balances {
		pct := 0.0
		if total > 0 {
			pct = b / total * 100
		}
		if pct > whalePercentage || b >= whaleBalance {
			continue
		}
		kept = append(kept, round.Participant{Identity: owner, Weight: b})
	}

	remaining := 0.0
	for _, p := range kept {
		remaining += p.Weight
	}
	for i := range kept {
		pct := 0.0
		if remaining > 0 {
			pct = kept[i].Weight / remaining * 100
		}
		kept[i].Percentage = pct
		kept[i].Quota = QuotaForPercentage(pct, totalCells)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Weight == kept[j].Weight {
			return kept[i].Identity < kept[j].Identity
		}
		return kept[i].Weight > kept[j].Weight
	})
	if len(kept) > round.MaxParticipants {
		kept = kept[:round.MaxParticipants]
	}
	return kept
}
