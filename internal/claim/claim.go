package claim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is what a fee claim reports back. All amounts are display-only.
// ClaimedLamports is nil when the endpoint reported no claimed amount.
type Result struct {
	Signature       string `json:"signature"`
	ClaimedLamports *int64 `json:"claimedLamports"`
	PayoutLamports  int64  `json:"payoutLamports"`
	WinnerAddress   string `json:"winnerAddress,omitempty"`
}

// Claimed returns the claimed amount, or zero when none was reported.
func (r Result) Claimed() int64 {
	if r.ClaimedLamports == nil {
		return 0
	}
	return *r.ClaimedLamports
}

// Claimer triggers one creator-fee collection. Implementations must be
// idempotent per claim phase.
type Claimer interface {
	Claim(ctx context.Context) (Result, error)
}

// PayoutShare is the fraction of claimed fees paid to the previous winner.
const PayoutShare = 0.3

// PayoutLamports returns the winner's share of a claimed amount.
func PayoutLamports(claimed int64) int64 {
	if claimed <= 0 {
		return 0
	}
	return int64(float64(claimed) * PayoutShare)
}

// HTTPClaimer posts to an external claim endpoint.
type HTTPClaimer struct {
	URL    string
	Client *http.Client
}

func NewHTTPClaimer(url string) *HTTPClaimer {
	return &HTTPClaimer{
		URL:    url,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClaimer) Claim(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, nil)
	if err != nil {
		return Result{}, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("claim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("claim failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("claim decode: %w", err)
	}
	if c := res.ClaimedLamports; c != nil && *c < 0 {
		*c = 0
	}
	if res.PayoutLamports == 0 {
		res.PayoutLamports = PayoutLamports(res.Claimed())
	}
	return res, nil
}
