// Simulation ties the agents, the economy ledger and the decision oracle
// together and advances them one day at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/entropy"
	"github.com/talgya/mini-economy/internal/history"
	"github.com/talgya/mini-economy/internal/metrics"
)

// ErrDayInProgress is returned when a day is requested while another is
// still running.
var ErrDayInProgress = errors.New("engine: day already in progress")

// Defaults applied by New when Options leaves a field zero.
const (
	DefaultOracleTimeout = 60 * time.Second
	DefaultMaxEvents     = 1000
	recordTimeout        = 10 * time.Second
)

// Options tunes a Simulation.
type Options struct {
	OracleInterval time.Duration        // Minimum gap between consecutive oracle calls
	OracleTimeout  time.Duration        // Upper bound on a single oracle call
	MaxEvents      int                  // Size of the in-memory log ring
	Distribution   []agents.Personality // Population mix; agents.Distribution when nil
}

// Simulation holds the complete economy state. All mutation happens inside
// RunDay and Reset; readers go through Snapshot.
type Simulation struct {
	mu      sync.RWMutex
	agents  []*agents.Agent
	ledger  *economy.Ledger
	history []economy.DailyStat
	runID   string

	oracle   Oracle
	recorder history.Recorder
	rng      entropy.Source
	opts     Options

	busy   atomic.Bool
	events *eventLog
	sleep  func(ctx context.Context, d time.Duration) error
}

// Snapshot is a consistent, detached copy of the simulation state.
type Snapshot struct {
	RunID   string              `json:"run_id"`
	Day     int                 `json:"day"`
	Busy    bool                `json:"busy"`
	Ledger  economy.Ledger      `json:"ledger"`
	Agents  []agents.Agent      `json:"agents"`
	History []economy.DailyStat `json:"history"`
}

// TurnRecord describes one agent's turn: what was asked for and what was
// actually applied after clamping.
type TurnRecord struct {
	AgentID   agents.AgentID `json:"agent_id"`
	Source    string         `json:"source"`
	Requested agents.Action  `json:"requested"`
	Applied   agents.Action  `json:"applied"`
	Log       string         `json:"log"`
}

// DayResult is returned by a successful RunDay.
type DayResult struct {
	Record *history.DayRecord `json:"record"`
	Turns  []TurnRecord       `json:"turns"`
}

// New creates a simulation with a freshly spawned population and the
// initial ledger. A nil oracle means every agent plays the fallback policy;
// a nil recorder discards history.
func New(opts Options, oracle Oracle, rec history.Recorder, rng entropy.Source) *Simulation {
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = DefaultOracleTimeout
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if opts.Distribution == nil {
		opts.Distribution = agents.Distribution
	}
	if rec == nil {
		rec = history.Noop{}
	}
	if rng == nil {
		rng = entropy.NewCrypto()
	}

	s := &Simulation{
		oracle:   oracle,
		recorder: rec,
		rng:      rng,
		opts:     opts,
		events:   newEventLog(opts.MaxEvents),
		sleep:    sleepContext,
	}
	s.resetLocked()
	return s
}

// Reset regenerates the population and ledger and starts a new run.
// It fails with ErrDayInProgress while a day is running.
func (s *Simulation) Reset() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrDayInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.resetLocked()
	runID := s.runID
	s.mu.Unlock()

	slog.Info("simulation reset", "run", runID)
	return nil
}

func (s *Simulation) resetLocked() {
	s.agents = agents.NewSpawner(s.rng).SpawnPopulation(s.opts.Distribution)
	s.ledger = economy.NewLedger()
	s.history = nil
	s.runID = uuid.NewString()
	s.events.reset()
	s.events.add(s.ledger.Day, LogInfo, fmt.Sprintf("Simulation initialized with %d agents", len(s.agents)))
}

// Busy reports whether a day is currently running.
func (s *Simulation) Busy() bool {
	return s.busy.Load()
}

// RunID identifies the current run; it changes on Reset.
func (s *Simulation) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// Snapshot returns a deep copy of the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		RunID:   s.runID,
		Day:     s.ledger.Day,
		Busy:    s.busy.Load(),
		Ledger:  s.ledger.Clone(),
		Agents:  make([]agents.Agent, len(s.agents)),
		History: append([]economy.DailyStat(nil), s.history...),
	}
	for i, a := range s.agents {
		snap.Agents[i] = *a.Clone()
	}
	return snap
}

// Events returns up to limit of the most recent log entries, oldest first.
func (s *Simulation) Events(limit int) []Event {
	return s.events.recent(limit)
}

// checkpoint is the start-of-day state a failed day is rolled back to.
type checkpoint struct {
	agents  []*agents.Agent
	ledger  economy.Ledger
	history int
}

func (s *Simulation) checkpointLocked() checkpoint {
	return checkpoint{
		agents:  agents.CloneAll(s.agents),
		ledger:  s.ledger.Clone(),
		history: len(s.history),
	}
}

func (s *Simulation) restoreLocked(cp checkpoint) {
	s.agents = cp.agents
	l := cp.ledger
	s.ledger = &l
	s.history = s.history[:cp.history]
}

// dayState is the scratch carried through the phases of a single day.
type dayState struct {
	day            int
	openPrice      float64
	investedMedals int
	sources        map[agents.AgentID]string
	turns          []TurnRecord
}

// RunDay advances the simulation by exactly one day: morning distribution,
// sequential agent turns, the system buyback and finalize. On any error the
// agents and ledger are restored to their start-of-day state.
func (s *Simulation) RunDay(ctx context.Context) (*DayResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrDayInProgress
	}
	defer s.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cp := s.checkpointLocked()
	day := s.ledger.Day
	s.mu.Unlock()

	res, err := s.runPhases(ctx, day)
	if err != nil {
		s.mu.Lock()
		s.restoreLocked(cp)
		s.mu.Unlock()

		var inv *InvariantError
		switch {
		case errors.As(err, &inv):
			metrics.DayFailures.WithLabelValues("invariant").Inc()
			slog.Error("day aborted, state rolled back", "day", day, "error", err)
		default:
			metrics.DayFailures.WithLabelValues("cancelled").Inc()
			slog.Warn("day interrupted, state rolled back", "day", day, "error", err)
		}
		s.events.add(day, LogError, fmt.Sprintf("Day %d aborted: %v", day, err))
		return nil, fmt.Errorf("run day %d: %w", day, err)
	}

	metrics.DaysTotal.Inc()
	metrics.MarketPrice.Set(res.Record.Stat.Price)
	metrics.Reservoir.Set(res.Record.Stat.Reservoir)
	metrics.TotalStaked.Set(res.Record.Stat.Staked)

	s.record(ctx, res.Record)
	return res, nil
}

func (s *Simulation) runPhases(ctx context.Context, day int) (*DayResult, error) {
	d := &dayState{day: day, sources: make(map[agents.AgentID]string)}

	s.mu.Lock()
	d.openPrice = s.ledger.MarketPrice
	s.morningLocked(d)
	err := s.checkInvariantsLocked(day, "morning")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := s.runTurns(ctx, d); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buyback := s.buybackLocked(d)
	if err := s.checkInvariantsLocked(day, "buyback"); err != nil {
		return nil, err
	}

	rec := s.finalizeLocked(d, buyback)
	if err := s.checkInvariantsLocked(day, "finalize"); err != nil {
		return nil, err
	}
	return &DayResult{Record: rec, Turns: d.turns}, nil
}

// finalizeLocked settles the day: closing price and trend, tomorrow's
// medal pool, the DailyStat, the day counter and the day record.
func (s *Simulation) finalizeLocked(d *dayState, buyback *economy.BuybackRecord) *history.DayRecord {
	l := s.ledger
	l.RefreshPrice()
	l.PriceTrend = economy.TrendBetween(d.openPrice, l.MarketPrice)
	l.TotalMedalsInPool = d.investedMedals

	stat := l.Stat()
	s.history = append(s.history, stat)
	l.Day++

	rec := &history.DayRecord{
		RunID:      s.runID,
		Stat:       stat,
		Trend:      l.PriceTrend,
		Buyback:    buyback,
		Agents:     make([]history.AgentRecord, 0, len(s.agents)),
		RecordedAt: time.Now().UTC(),
	}
	for _, a := range s.agents {
		rec.Agents = append(rec.Agents, agentRecord(d, a, l))
	}

	slog.Info("daily report",
		"day", d.day,
		"price", fmt.Sprintf("%.4f", l.MarketPrice),
		"trend", l.PriceTrend,
		"reservoir", fmt.Sprintf("%.2f", l.ReservoirLvMON),
		"total_wealth", fmt.Sprintf("%.0f", l.TotalWealth),
		"total_staked", fmt.Sprintf("%.0f", l.TotalStakedMeme),
		"medal_pool", l.TotalMedalsInPool,
		"buyback", buyback != nil,
	)
	s.events.add(d.day, LogInfo, fmt.Sprintf("Day %d complete. Price %.4f (%s)", d.day, l.MarketPrice, l.PriceTrend))
	return rec
}

func agentRecord(d *dayState, a *agents.Agent, l *economy.Ledger) history.AgentRecord {
	r := history.AgentRecord{
		Day:               d.day,
		AgentID:           int(a.ID),
		Personality:       a.Personality.String(),
		Source:            d.sources[a.ID],
		Rationale:         a.LastRationale,
		ActionLog:         a.LastActionLog,
		LvMON:             a.LvMON,
		PnL:               a.PnL(),
		Meme:              a.Meme,
		StakedMeme:        a.StakedMeme,
		Wealth:            a.Wealth,
		Chests:            a.Chests,
		ChestsOpenedToday: a.ChestsOpenedToday,
		Medals:            a.Medals,
		InvestedMedals:    a.InvestedMedals,
		NetWorth:          a.NetWorth(l.MarketPrice),
		GlobalPrice:       l.MarketPrice,
		GlobalReservoir:   l.ReservoirLvMON,
		GlobalTotalWealth: l.TotalWealth,
		GlobalTotalStaked: l.TotalStakedMeme,
	}
	if a.Memory != nil {
		r.Goal = a.Memory.Goal
		r.GoalAchieved = a.Memory.Achieved
	}
	return r
}

// record hands the finished day to the history sink. Failures are logged
// and never affect the next day.
func (s *Simulation) record(ctx context.Context, rec *history.DayRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.RecordDay(ctx, rec); err != nil {
		metrics.HistoryWriteFailures.Inc()
		slog.Error("history write failed", "day", rec.Stat.Day, "run", rec.RunID, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OracleEnabled reports whether decisions come from an oracle rather than
// the fallback policy alone.
func (s *Simulation) OracleEnabled() bool {
	return s.oracle != nil
}
