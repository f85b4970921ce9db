package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Russioo/pixelarena/internal/claim"
	"github.com/Russioo/pixelarena/internal/holders"
	"github.com/Russioo/pixelarena/internal/round"
)

const (
	DefaultWidth         = 50
	DefaultHeight        = 50
	DefaultFightsPerTick = 1200
	MinFightsPerTick     = 200
	DefaultTickInterval  = 15 * time.Millisecond
	MinTickInterval      = 10 * time.Millisecond

	// DefaultSnapshotEvery throttles full snapshots to every 8th tick. At the
	// default tick interval that is roughly 8 snapshots per second per observer.
	DefaultSnapshotEvery = 8

	defaultSupplyTimeout = 10 * time.Second
	defaultClaimTimeout  = 60 * time.Second

	// Seeds derived from the clock are reduced to this range.
	clockSeedRange = 100000
)

var (
	ErrNoParticipants = errors.New("no participants")
	ErrFlowInProgress = errors.New("round flow already in progress")
)

// Durations are the timed phase lengths of one flow.
type Durations struct {
	Claim    time.Duration `yaml:"claim"`
	Snapshot time.Duration `yaml:"snapshot"`
	Starting time.Duration `yaml:"starting"`
	Winner   time.Duration `yaml:"winner"`
}

var DefaultDurations = Durations{
	Claim:    20 * time.Second,
	Snapshot: 5 * time.Second,
	Starting: 3 * time.Second,
	Winner:   10 * time.Second,
}

// Tuning is the engine's round configuration.
type Tuning struct {
	Width         int
	Height        int
	FightsPerTick int
	TickInterval  time.Duration
	SnapshotEvery int
	Policy        Policy
	Weights       Weights
	Durations     Durations
}

func DefaultTuning() Tuning {
	return Tuning{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		FightsPerTick: DefaultFightsPerTick,
		TickInterval:  DefaultTickInterval,
		SnapshotEvery: DefaultSnapshotEvery,
		Policy:        PolicyFair,
		Weights:       DefaultWeights,
		Durations:     DefaultDurations,
	}
}

func (t Tuning) normalized() Tuning {
	if t.Width <= 0 {
		t.Width = DefaultWidth
	}
	if t.Height <= 0 {
		t.Height = DefaultHeight
	}
	if t.FightsPerTick <= 0 {
		t.FightsPerTick = DefaultFightsPerTick
	}
	if t.TickInterval <= 0 {
		t.TickInterval = DefaultTickInterval
	}
	if t.SnapshotEvery <= 0 {
		t.SnapshotEvery = DefaultSnapshotEvery
	}
	if t.Policy == "" {
		t.Policy = PolicyFair
	}
	return t
}

// Config wires the engine's collaborators. Only Logger is required; a nil
// Clock means real time and a nil Publisher drops every event.
type Config struct {
	Tuning        Tuning
	Clock         Clock
	Publisher     Publisher
	Claimer       claim.Claimer
	Supplier      holders.Supplier
	SupplyTimeout time.Duration
	ClaimTimeout  time.Duration
	Logger        *slog.Logger
}

// FlowOptions customize one claim -> snapshot -> starting -> running flow.
// Without Participants the list comes from the supplier at the snapshot
// boundary, falling back to the synthetic default list.
type FlowOptions struct {
	Participants []round.Participant
	Durations    *Durations
}

// RoundParams start a round directly, skipping the timed phases.
type RoundParams struct {
	Participants  []round.Participant
	Seed          *int64
	FightsPerTick int
	Width         int
	Height        int
}

// StartResult reports what a guarded start request did.
type StartResult struct {
	Started           bool        `json:"started,omitempty"`
	AlreadyInProgress bool        `json:"alreadyInProgress,omitempty"`
	AlreadyRunning    bool        `json:"alreadyRunning,omitempty"`
	Phase             round.Phase `json:"phase"`
}

// RoundSummary describes a finished round.
type RoundSummary struct {
	RoundID          int64
	SessionID        string
	Seed             int64
	Ticks            int
	WinnerIndex      int
	Winner           round.Participant
	Pixels           int
	FeesPoolLamports int64
	ClaimSignature   string
	Quotas           []int
	StartedAt        time.Time
	EndedAt          time.Time
}

// State is the query surface: the last valid view of the current round.
type State struct {
	Running          bool                `json:"running"`
	Phase            round.Phase         `json:"phase"`
	Tick             int                 `json:"tick"`
	Width            int                 `json:"width"`
	Height           int                 `json:"height"`
	RoundID          int64               `json:"roundId"`
	SessionID        string              `json:"sessionId,omitempty"`
	Seed             int64               `json:"seed"`
	Policy           Policy              `json:"policy"`
	StartMs          int64               `json:"startMs"`
	NextPhaseAt      int64               `json:"nextPhaseAt"`
	NextRoundAt      int64               `json:"nextRoundAt"`
	WinnerIndex      *int                `json:"winnerIndex"`
	FeesPoolLamports int64               `json:"feesPoolLamports"`
	Holders          []round.Participant `json:"holders,omitempty"`
	Quotas           []int               `json:"quotas,omitempty"`
	Pixels           []round.Cell        `json:"pixels,omitempty"`
}

// Engine is the single authoritative round state machine. All state is
// guarded by mu; timer callbacks carry the generation they were armed in and
// do nothing once a newer flow or round has replaced it.
type Engine struct {
	mu sync.Mutex

	tuning        Tuning
	clock         Clock
	pub           Publisher
	claimer       claim.Claimer
	supplier      holders.Supplier
	supplyTimeout time.Duration
	claimTimeout  time.Duration
	logger        *slog.Logger

	onWinner   func(RoundSummary)
	onComplete func(RoundSummary)

	gen         uint64
	phase       round.Phase
	phaseTimer  Timer
	tickTimer   Timer
	running     bool
	nextPhaseAt time.Time
	nextRoundAt time.Time
	feesPool    int64
	claimSig    string
	durations   Durations

	flowParticipants []round.Participant
	participants     []round.Participant

	roundSeq int64
	cur      *round.Round
	topo     *Topology
	stepper  *Stepper
	detector *Detector
	last     *RoundSummary
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		tuning:        cfg.Tuning.normalized(),
		clock:         cfg.Clock,
		pub:           cfg.Publisher,
		claimer:       cfg.Claimer,
		supplier:      cfg.Supplier,
		supplyTimeout: cfg.SupplyTimeout,
		claimTimeout:  cfg.ClaimTimeout,
		logger:        cfg.Logger,
	}
	if e.clock == nil {
		e.clock = RealClock{}
	}
	if e.pub == nil {
		e.pub = nopPublisher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.supplyTimeout <= 0 {
		e.supplyTimeout = defaultSupplyTimeout
	}
	if e.claimTimeout <= 0 {
		e.claimTimeout = defaultClaimTimeout
	}
	e.durations = e.tuning.Durations
	return e
}

// SetPublisher sets the event sink (used to break circular init with the hub).
func (e *Engine) SetPublisher(p Publisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil {
		p = nopPublisher{}
	}
	e.pub = p
}

// SetOnWinner registers a hook run asynchronously when a round is won.
func (e *Engine) SetOnWinner(fn func(RoundSummary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onWinner = fn
}

// SetOnRoundComplete registers the callback run once the winner display has
// elapsed and the engine is idle again. It is expected to start the next flow;
// the engine never loops by itself.
func (e *Engine) SetOnRoundComplete(fn func(RoundSummary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

func (e *Engine) Tuning() Tuning {
	return e.tuning
}

// StartFlow resets to the claim phase from any state, cancelling pending
// timers and any ticking round.
func (e *Engine) StartFlow(opts FlowOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startFlowLocked(opts)
}

// RequestStart starts a flow only when the engine is idle. Otherwise it
// returns ErrFlowInProgress along with the current phase.
func (e *Engine) RequestStart(opts FlowOptions) (StartResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != round.PhaseIdle {
		return StartResult{AlreadyInProgress: true, Phase: e.phase}, ErrFlowInProgress
	}
	if e.running {
		return StartResult{AlreadyRunning: true, Phase: e.phase}, ErrFlowInProgress
	}
	e.startFlowLocked(opts)
	return StartResult{Started: true, Phase: e.phase}, nil
}

// Ensure boots a flow when nothing is in progress. It reports whether it did.
func (e *Engine) Ensure() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != round.PhaseIdle || e.running {
		return false
	}
	e.startFlowLocked(FlowOptions{})
	return true
}

// StartRound cancels any flow and starts ticking a round immediately.
// With no participants it refuses and leaves the engine idle.
func (e *Engine) StartRound(p RoundParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.durations = e.tuning.Durations
	if err := e.startRoundLocked(p); err != nil {
		e.setPhaseLocked(round.PhaseIdle, time.Time{})
		return err
	}
	return nil
}

// Stop cancels all timers and stops ticking. The last state stays queryable.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.phase = round.PhaseIdle
}

func (e *Engine) Phase() round.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LastSummary returns the most recently finished round, if any.
func (e *Engine) LastSummary() (RoundSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return RoundSummary{}, false
	}
	return *e.last, true
}

// State returns a copy of the current round view. Cells are included only
// when withPixels is set.
func (e *Engine) State(withPixels bool) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := State{
		Running:          e.running,
		Phase:            e.phase,
		Width:            e.tuning.Width,
		Height:           e.tuning.Height,
		Policy:           e.tuning.Policy,
		NextPhaseAt:      unixMs(e.nextPhaseAt),
		NextRoundAt:      unixMs(e.nextRoundAt),
		FeesPoolLamports: e.feesPool,
		Holders:          cloneParticipants(e.participants),
	}
	if r := e.cur; r != nil {
		s.Tick = r.Tick
		s.Width = r.Board.Width
		s.Height = r.Board.Height
		s.RoundID = r.ID
		s.SessionID = r.SessionID
		s.Seed = r.Seed
		s.StartMs = unixMs(r.StartedAt)
		s.Quotas = append([]int(nil), r.Quotas...)
		if e.phase == round.PhaseWinner && r.Finished() {
			w := r.WinnerIndex
			s.WinnerIndex = &w
		}
		if withPixels {
			s.Pixels = r.Board.Cells()
		}
	}
	return s
}

// Attach runs fn under the engine lock with the event a new observer should
// see first (ok is false when idle). No event is published while fn runs, so
// an observer subscribed inside fn misses nothing and sees nothing twice.
func (e *Engine) Attach(fn func(eventType string, initial any, ok bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.phase {
	case round.PhaseRunning:
		if e.cur != nil {
			fn(EventSnapshot, e.snapshotEventLocked(), true)
			return
		}
	case round.PhaseWinner:
		if e.cur != nil && e.cur.Finished() {
			fn(EventWinner, e.winnerEventLocked(), true)
			return
		}
	case round.PhaseClaim, round.PhaseSnapshot, round.PhaseStarting:
		fn(EventPhase, e.phaseEventLocked(), true)
		return
	}
	fn("", nil, false)
}

func (e *Engine) startFlowLocked(opts FlowOptions) {
	e.cancelLocked()
	gen := e.gen

	d := e.tuning.Durations
	if opts.Durations != nil {
		d = *opts.Durations
	}
	e.durations = d
	e.flowParticipants = cloneParticipants(opts.Participants)
	e.feesPool = 0
	e.claimSig = ""

	e.setPhaseLocked(round.PhaseClaim, e.clock.Now().Add(d.Claim))
	e.publishPhaseLocked()

	if e.claimer != nil {
		go e.runClaim(gen)
	}
	e.phaseTimer = e.clock.AfterFunc(d.Claim, func() { e.enterSnapshot(gen) })
}

// runClaim calls the fee-claim collaborator. Its outcome only updates the
// displayed fee pool; it never gates phase progression.
func (e *Engine) runClaim(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.claimTimeout)
	defer cancel()
	res, err := e.claimer.Claim(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	if err != nil {
		e.logger.Error("claim failed", "err", err)
		return
	}
	e.logger.Info("claim succeeded",
		"claimed_lamports", res.Claimed(),
		"payout_lamports", res.PayoutLamports,
		"winner", res.WinnerAddress,
		"signature", res.Signature,
	)
	e.claimSig = res.Signature
	if res.ClaimedLamports == nil {
		return
	}
	e.feesPool = *res.ClaimedLamports
	if e.phase == round.PhaseClaim {
		e.publishPhaseLocked()
	}
}

func (e *Engine) enterSnapshot(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.phase != round.PhaseClaim {
		e.mu.Unlock()
		return
	}
	list := e.flowParticipants
	supplier := e.supplier
	e.mu.Unlock()

	// The supplier may block on the network, so it runs without the lock.
	if len(list) == 0 && supplier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.supplyTimeout)
		fetched, err := supplier.Fetch(ctx)
		cancel()
		if err != nil {
			e.logger.Warn("participant supply failed, using defaults", "err", err)
		} else {
			list = fetched
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.phase != round.PhaseClaim {
		return
	}
	if len(list) == 0 {
		list = holders.Default(e.tuning.Width * e.tuning.Height)
	}
	e.participants = normalizeParticipants(list)
	e.setPhaseLocked(round.PhaseSnapshot, e.clock.Now().Add(e.durations.Snapshot))
	e.publishPhaseLocked()
	e.phaseTimer = e.clock.AfterFunc(e.durations.Snapshot, func() { e.enterStarting(gen) })
}

func (e *Engine) enterStarting(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.phase != round.PhaseSnapshot {
		return
	}
	e.setPhaseLocked(round.PhaseStarting, e.clock.Now().Add(e.durations.Starting))
	e.publishPhaseLocked()
	e.phaseTimer = e.clock.AfterFunc(e.durations.Starting, func() { e.enterRunning(gen) })
}

func (e *Engine) enterRunning(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || e.phase != round.PhaseStarting {
		return
	}
	seed := e.clock.Now().UnixMilli() % clockSeedRange
	err := e.startRoundLocked(RoundParams{Participants: e.participants, Seed: &seed})
	if err != nil {
		e.logger.Warn("cannot start running phase", "err", err)
		e.setPhaseLocked(round.PhaseIdle, time.Time{})
		e.publishPhaseLocked()
	}
}

func (e *Engine) startRoundLocked(p RoundParams) error {
	participants := normalizeParticipants(p.Participants)
	if len(participants) == 0 {
		return ErrNoParticipants
	}

	width, height := p.Width, p.Height
	if width == 0 {
		width = e.tuning.Width
	}
	if height == 0 {
		height = e.tuning.Height
	}
	if e.topo == nil || e.topo.Width != width || e.topo.Height != height {
		topo, err := BuildTopology(width, height)
		if err != nil {
			return err
		}
		e.topo = topo
	}

	seed := DefaultSeed
	if p.Seed != nil {
		seed = *p.Seed
	}
	fights := p.FightsPerTick
	if fights <= 0 {
		fights = e.tuning.FightsPerTick
	}

	board := round.NewBoard(width, height)
	rng := NewRNG(seed)
	quotas := Allocate(board, participants, rng)

	e.roundSeq++
	r := round.New(e.roundSeq, uuid.NewString(), seed, participants, board, e.clock.Now())
	r.Quotas = quotas
	e.cur = r
	e.participants = participants
	e.stepper = NewStepper(board, e.topo, participants, e.tuning.Policy, e.tuning.Weights, fights, rng)
	e.detector = NewDetector(len(participants))
	e.running = true
	e.nextRoundAt = time.Time{}
	e.setPhaseLocked(round.PhaseRunning, time.Time{})

	e.logger.Info("round started",
		"round", r.ID,
		"session", r.SessionID,
		"seed", seed,
		"participants", len(participants),
		"cells", board.Len(),
		"policy", string(e.tuning.Policy),
	)
	e.publishPhaseLocked()
	e.pub.Publish(EventSnapshot, e.snapshotEventLocked())
	e.armTickLocked(e.gen)
	return nil
}

func (e *Engine) armTickLocked(gen uint64) {
	e.tickTimer = e.clock.AfterFunc(e.tuning.TickInterval, func() { e.tick(gen) })
}

// tick is one simulation step: a batch of contests, a throttled snapshot and
// the termination check, all under the lock so observers see tick N before N+1.
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || !e.running || e.cur == nil {
		return
	}
	e.stepper.Step()
	e.cur.Tick++

	if e.cur.Tick%e.tuning.SnapshotEvery == 0 {
		e.pub.Publish(EventSnapshot, e.snapshotEventLocked())
	}

	if w, ok := e.detector.Check(e.cur.Board); ok {
		e.declareWinnerLocked(gen, w)
		return
	}
	e.armTickLocked(gen)
}

func (e *Engine) declareWinnerLocked(gen uint64, winner int) {
	now := e.clock.Now()
	if !e.cur.Finish(winner, now) {
		return
	}
	e.running = false
	e.nextRoundAt = now.Add(e.durations.Winner)
	e.setPhaseLocked(round.PhaseWinner, e.nextRoundAt)

	summary := e.summaryLocked()
	e.last = &summary

	e.logger.Info("winner detected",
		"round", e.cur.ID,
		"winner", winner,
		"address", summary.Winner.Identity,
		"ticks", e.cur.Tick,
		"pixels", summary.Pixels,
	)
	e.pub.Publish(EventWinner, e.winnerEventLocked())

	if cb := e.onWinner; cb != nil {
		go cb(summary)
	}
	e.phaseTimer = e.clock.AfterFunc(e.durations.Winner, func() { e.finishRound(gen) })
}

func (e *Engine) finishRound(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.phase != round.PhaseWinner {
		e.mu.Unlock()
		return
	}
	e.setPhaseLocked(round.PhaseIdle, time.Time{})
	e.publishPhaseLocked()
	cb := e.onComplete
	var summary RoundSummary
	if e.last != nil {
		summary = *e.last
	}
	e.mu.Unlock()

	if cb != nil {
		cb(summary)
	}
}

func (e *Engine) cancelLocked() {
	if e.phaseTimer != nil {
		e.phaseTimer.Stop()
		e.phaseTimer = nil
	}
	if e.tickTimer != nil {
		e.tickTimer.Stop()
		e.tickTimer = nil
	}
	e.running = false
	e.gen++
}

func (e *Engine) setPhaseLocked(p round.Phase, endsAt time.Time) {
	if p != e.phase {
		e.logger.Info("phase", "from", e.phase.String(), "to", p.String(), "ends_at", unixMs(endsAt))
	}
	e.phase = p
	e.nextPhaseAt = endsAt
}

func (e *Engine) publishPhaseLocked() {
	e.pub.Publish(EventPhase, e.phaseEventLocked())
}

func (e *Engine) phaseEventLocked() PhaseEvent {
	ev := PhaseEvent{
		Type:             EventPhase,
		Phase:            e.phase,
		EndsAt:           unixMs(e.nextPhaseAt),
		FeesPoolLamports: e.feesPool,
	}
	switch e.phase {
	case round.PhaseSnapshot:
		ev.Holders = cloneParticipants(e.participants)
	case round.PhaseRunning:
		if e.cur != nil {
			ev.RoundID = e.cur.ID
		}
	}
	return ev
}

func (e *Engine) snapshotEventLocked() SnapshotEvent {
	return SnapshotEvent{
		Type:    EventSnapshot,
		Tick:    e.cur.Tick,
		StartMs: unixMs(e.cur.StartedAt),
		RoundID: e.cur.ID,
		Pixels:  e.cur.Board.Cells(),
		Holders: cloneParticipants(e.cur.Participants),
	}
}

func (e *Engine) winnerEventLocked() WinnerEvent {
	return WinnerEvent{
		Type:        EventWinner,
		RoundID:     e.cur.ID,
		Tick:        e.cur.Tick,
		WinnerIndex: e.cur.WinnerIndex,
		NextRoundAt: unixMs(e.nextRoundAt),
		Holders:     cloneParticipants(e.cur.Participants),
	}
}

func (e *Engine) summaryLocked() RoundSummary {
	r := e.cur
	s := RoundSummary{
		RoundID:          r.ID,
		SessionID:        r.SessionID,
		Seed:             r.Seed,
		Ticks:            r.Tick,
		WinnerIndex:      r.WinnerIndex,
		Pixels:           r.Board.Len(),
		FeesPoolLamports: e.feesPool,
		ClaimSignature:   e.claimSig,
		Quotas:           append([]int(nil), r.Quotas...),
		StartedAt:        r.StartedAt,
	}
	if w, ok := r.Winner(); ok {
		s.Winner = w
	}
	if r.EndedAt != nil {
		s.EndedAt = *r.EndedAt
	}
	return s
}

func normalizeParticipants(in []round.Participant) []round.Participant {
	if len(in) > round.MaxParticipants {
		in = in[:round.MaxParticipants]
	}
	return cloneParticipants(in)
}

func cloneParticipants(in []round.Participant) []round.Participant {
	if len(in) == 0 {
		return nil
	}
	out := make([]round.Participant, len(in))
	copy(out, in)
	return out
}

func unixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
