package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/Russioo/pixelarena/internal/game"
	"github.com/Russioo/pixelarena/internal/holders"
	"github.com/Russioo/pixelarena/internal/round"
)

type options struct {
	rounds       int
	width        int
	height       int
	participants int
	fights       int
	policies     []game.Policy
	workers      int
	seed         int64
	maxTicks     int
	tickInterval time.Duration
	out          string
}

type roundResult struct {
	policy        game.Policy
	seed          int64
	ticks         int
	transfers     int
	finishReason  string
	winnerIndex   int
	winnerAddress string
	winnerPixels  int
	winnerShare   float64
}

// roundRow is one exported round.
type roundRow struct {
	Policy        string  `parquet:"policy,dict"`
	Seed          int64   `parquet:"seed"`
	Ticks         int32   `parquet:"ticks"`
	Transfers     int64   `parquet:"transfers"`
	FinishReason  string  `parquet:"finish_reason,dict"`
	WinnerIndex   int32   `parquet:"winner_index"`
	WinnerAddress string  `parquet:"winner_address,dict"`
	WinnerPixels  int32   `parquet:"winner_initial_pixels"`
	WinnerShare   float64 `parquet:"winner_weight_share"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	opts, err := parseFlags()
	if err != nil {
		logger.Error("flags", "err", err)
		os.Exit(2)
	}

	participants := syntheticHolders(opts.participants, opts.width*opts.height, opts.seed)
	logger.Info("simulating",
		"rounds", opts.rounds,
		"grid", fmt.Sprintf("%dx%d", opts.width, opts.height),
		"participants", len(participants),
		"fights_per_tick", opts.fights,
		"workers", opts.workers,
	)

	start := time.Now()
	var all []roundResult
	for _, policy := range opts.policies {
		results := runPolicy(opts, policy, participants)
		printReport(opts, policy, participants, results)
		all = append(all, results...)
	}
	fmt.Printf("\n  Elapsed: %v  |  Workers: %d\n", time.Since(start).Round(time.Millisecond), opts.workers)

	if opts.out != "" {
		if err := writeParquet(opts.out, all); err != nil {
			logger.Error("write results", "err", err)
			os.Exit(1)
		}
		logger.Info("results written", "path", opts.out, "rows", len(all))
	}
}

func parseFlags() (options, error) {
	var (
		o        options
		policies string
		tickMs   int
	)
	flag.IntVar(&o.rounds, "rounds", 1000, "rounds per policy")
	flag.IntVar(&o.width, "width", game.DefaultWidth, "grid width")
	flag.IntVar(&o.height, "height", game.DefaultHeight, "grid height")
	flag.IntVar(&o.participants, "participants", round.MaxParticipants, "synthetic holders per round")
	flag.IntVar(&o.fights, "fights", game.DefaultFightsPerTick, "contests per tick")
	flag.StringVar(&policies, "policy", "fair,weighted", "comma separated contest policies")
	flag.IntVar(&o.workers, "workers", runtime.GOMAXPROCS(0), "worker goroutines")
	flag.Int64Var(&o.seed, "seed", game.DefaultSeed, "base seed")
	flag.IntVar(&o.maxTicks, "max-ticks", 200000, "safety cap per round")
	flag.IntVar(&tickMs, "tick-ms", int(game.DefaultTickInterval/time.Millisecond), "tick interval used to convert ticks to seconds")
	flag.StringVar(&o.out, "out", "", "optional parquet output path")
	flag.Parse()

	if o.rounds <= 0 || o.workers <= 0 {
		return o, fmt.Errorf("rounds and workers must be positive")
	}
	if o.width <= 0 || o.height <= 0 {
		return o, fmt.Errorf("grid %dx%d: %w", o.width, o.height, game.ErrInvalidGrid)
	}
	if o.participants <= 0 || o.participants > round.MaxParticipants {
		return o, fmt.Errorf("participants must be in [1, %d]", round.MaxParticipants)
	}
	o.fights = max(o.fights, game.MinFightsPerTick)
	o.tickInterval = max(time.Duration(tickMs)*time.Millisecond, game.MinTickInterval)

	for _, s := range strings.Split(policies, ",") {
		p, err := game.ParsePolicy(s)
		if err != nil {
			return o, err
		}
		o.policies = append(o.policies, p)
	}
	return o, nil
}

// syntheticHolders builds a long-tailed holder distribution and ranks it the
// same way live holder data is ranked.
func syntheticHolders(n, totalCells int, seed int64) []round.Participant {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	balances := make(map[string]float64, n)
	for i := 0; i < n; i++ {
		// Pareto-ish tail, kept under the whale cutoff.
		b := 1000 * math.Pow(1-rng.Float64(), -1.2)
		balances[fmt.Sprintf("SIM_%03d", i)] = math.Min(b, 5e7)
	}
	ranked := holders.Rank(balances, totalCells)
	colors := holders.Palette(len(ranked), rng)
	for i := range ranked {
		ranked[i].Color = colors[i]
	}
	return ranked
}

func runPolicy(o options, policy game.Policy, participants []round.Participant) []roundResult {
	results := make([]roundResult, o.rounds)
	totalWeight := 0.0
	for _, p := range participants {
		totalWeight += p.Weight
	}

	var progress atomic.Int64
	var wg sync.WaitGroup
	step := max(o.rounds/10, 1)

	chunkSize := o.rounds / o.workers
	for w := 0; w < o.workers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if w == o.workers-1 {
			hi = o.rounds
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				seed := o.seed + int64(i)
				results[i] = runRound(o, policy, participants, seed, totalWeight)
				if n := progress.Add(1); n%int64(step) == 0 {
					fmt.Printf("  ... %s %d/%d rounds (%.0f%%)\n", policy, n, o.rounds, float64(n)/float64(o.rounds)*100)
				}
			}
		}(lo, hi)
	}
	wg.Wait()
	return results
}

func runRound(o options, policy game.Policy, participants []round.Participant, seed int64, totalWeight float64) roundResult {
	res, err := game.RunSimulation(game.SimConfig{
		Width:         o.width,
		Height:        o.height,
		Participants:  participants,
		Seed:          seed,
		FightsPerTick: o.fights,
		Policy:        policy,
		MaxTicks:      o.maxTicks,
		SilentMode:    true,
	})
	out := roundResult{policy: policy, seed: seed, winnerIndex: -1}
	if err != nil {
		out.finishReason = "error"
		return out
	}
	out.ticks = res.TotalTicks
	out.transfers = res.Transfers
	out.finishReason = res.FinishReason
	out.winnerIndex = res.WinnerIndex
	if w := res.WinnerIndex; w >= 0 {
		out.winnerAddress = participants[w].Identity
		out.winnerPixels = res.PlayerStats[w].InitialPixels
		if totalWeight > 0 {
			out.winnerShare = participants[w].Weight / totalWeight
		}
	}
	return out
}

type bucket struct {
	name   string
	lo, hi int // participant rank range [lo, hi)
}

var rankBuckets = []bucket{
	{"top 10", 0, 10},
	{"11-25", 10, 25},
	{"26-50", 25, 50},
	{"51-100", 50, 100},
}

func printReport(o options, policy game.Policy, participants []round.Participant, results []roundResult) {
	var ticks []float64
	finishReasons := make(map[string]int)
	wins := make([]int, len(participants))
	won := 0
	for _, r := range results {
		finishReasons[r.finishReason]++
		if r.winnerIndex >= 0 {
			ticks = append(ticks, float64(r.ticks))
			wins[r.winnerIndex]++
			won++
		}
	}
	sort.Float64s(ticks)
	toSec := func(t float64) float64 { return t * o.tickInterval.Seconds() }

	totalCells := o.width * o.height
	fmt.Println()
	fmt.Printf("─── POLICY %-8s ───────────────────────────────────────────\n", strings.ToUpper(string(policy)))
	fmt.Printf("  Rounds: %d  |  Grid: %dx%d  |  Participants: %d  |  Fights/tick: %d\n",
		len(results), o.width, o.height, len(participants), o.fights)

	fmt.Println()
	fmt.Println("  Round duration")
	fmt.Printf("    Mean:      %9.1f ticks  (%7.1fs)\n", mean(ticks), toSec(mean(ticks)))
	fmt.Printf("    Median:    %9.1f ticks  (%7.1fs)\n", percentile(ticks, 50), toSec(percentile(ticks, 50)))
	fmt.Printf("    10th pctl: %9.1f ticks  (%7.1fs)\n", percentile(ticks, 10), toSec(percentile(ticks, 10)))
	fmt.Printf("    90th pctl: %9.1f ticks  (%7.1fs)\n", percentile(ticks, 90), toSec(percentile(ticks, 90)))

	fmt.Println()
	fmt.Println("  Finish reasons")
	for reason, count := range finishReasons {
		fmt.Printf("    %-12s %8d  (%5.1f%%)\n", reason, count, float64(count)/float64(len(results))*100)
	}

	fmt.Println()
	fmt.Println("  Win rate by holder rank (pixel share = expected fair win rate)")
	for _, b := range rankBuckets {
		if b.lo >= len(participants) {
			break
		}
		hi := min(b.hi, len(participants))
		bw, pixels := 0, 0
		for i := b.lo; i < hi; i++ {
			bw += wins[i]
			pixels += participants[i].Quota
		}
		winPct := 0.0
		if won > 0 {
			winPct = float64(bw) / float64(won) * 100
		}
		fmt.Printf("    %-8s wins: %6d (%5.1f%%)  pixel share: %5.1f%%\n",
			b.name, bw, winPct, float64(pixels)/float64(totalCells)*100)
	}
}

func writeParquet(outPath string, results []roundResult) error {
	rows := make([]roundRow, len(results))
	for i, r := range results {
		rows[i] = roundRow{
			Policy:        string(r.policy),
			Seed:          r.seed,
			Ticks:         int32(r.ticks),
			Transfers:     int64(r.transfers),
			FinishReason:  r.finishReason,
			WinnerIndex:   int32(r.winnerIndex),
			WinnerAddress: r.winnerAddress,
			WinnerPixels:  int32(r.winnerPixels),
			WinnerShare:   r.winnerShare,
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)
	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "montecarlo_round_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return sum(s) / float64(len(s))
}

func sum(s []float64) float64 {
	t := 0.0
	for _, v := range s {
		t += v
	}
	return t
}

func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * pct / 100)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
