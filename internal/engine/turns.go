package engine

import (
	"context"
	"time"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/metrics"
)

// runTurns gives every agent one turn in a freshly shuffled order. Oracle
// calls are strictly sequential, separated by OracleInterval, and each
// action is applied before the next agent is asked. Cancellation is
// honored between turns.
func (s *Simulation) runTurns(ctx context.Context, d *dayState) error {
	s.mu.Lock()
	order := append([]*agents.Agent(nil), s.agents...)
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	s.mu.Unlock()

	for i, a := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && s.oracle != nil {
			if err := s.sleep(ctx, s.opts.OracleInterval); err != nil {
				return err
			}
		}

		start := time.Now()

		s.mu.Lock()
		agents.RefreshGoal(a)
		req := s.decisionRequestLocked(d.day, a)
		s.mu.Unlock()

		act, source := s.decide(ctx, req)

		s.mu.Lock()
		rec := s.applyLocked(d, a, act)
		rec.Source = source
		d.sources[a.ID] = source
		agents.SetGoal(a, d.day, act.NextGoal)
		err := s.checkInvariantsLocked(d.day, "turn")
		s.mu.Unlock()

		d.turns = append(d.turns, rec)
		metrics.TurnLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
	}
	return nil
}
