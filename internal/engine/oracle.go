package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/metrics"
)

// Decision sources recorded per turn.
const (
	SourceOracle   = "oracle"
	SourceFallback = "fallback"
)

// DecisionRequest is everything an oracle sees when deciding one agent's
// turn. All fields are copies; mutating them has no effect on the economy.
type DecisionRequest struct {
	Day    int            `json:"day"`
	Ledger economy.Ledger `json:"ledger"`
	Agent  agents.Agent   `json:"agent"`
	Roster []agents.Agent `json:"roster"`
}

// Oracle chooses an action for a single agent. Any error, including a
// timeout, makes the engine substitute the fallback policy.
type Oracle interface {
	Decide(ctx context.Context, req DecisionRequest) (agents.Action, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, req DecisionRequest) (agents.Action, error)

func (f OracleFunc) Decide(ctx context.Context, req DecisionRequest) (agents.Action, error) {
	return f(ctx, req)
}

// ErrMalformedAction is wrapped by validateAction failures.
var ErrMalformedAction = errors.New("malformed action")

func (s *Simulation) decisionRequestLocked(day int, a *agents.Agent) DecisionRequest {
	req := DecisionRequest{
		Day:    day,
		Ledger: s.ledger.Clone(),
		Agent:  *a.Clone(),
		Roster: make([]agents.Agent, len(s.agents)),
	}
	for i, other := range s.agents {
		req.Roster[i] = *other.Clone()
	}
	return req
}

// decide asks the oracle for an action and falls back to the archetype
// policy on any failure. The call runs detached from ctx's cancellation so
// an in-flight turn always completes, bounded by the oracle timeout.
func (s *Simulation) decide(ctx context.Context, req DecisionRequest) (agents.Action, string) {
	if s.oracle == nil {
		metrics.OracleDecisions.WithLabelValues(SourceFallback).Inc()
		return agents.FallbackDecide(&req.Agent, &req.Ledger), SourceFallback
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.OracleTimeout)
	defer cancel()

	act, err := s.oracle.Decide(callCtx, req)
	if err == nil {
		err = validateAction(req.Agent.ID, act)
	}
	if err != nil {
		slog.Info("oracle decision failed, using fallback", "day", req.Day, "agent", req.Agent.ID, "error", err)
		metrics.OracleDecisions.WithLabelValues(SourceFallback).Inc()
		return agents.FallbackDecide(&req.Agent, &req.Ledger), SourceFallback
	}
	metrics.OracleDecisions.WithLabelValues(SourceOracle).Inc()
	return act, SourceOracle
}

// validateAction rejects actions that cannot be interpreted at all.
// Out-of-range quantities are not malformed; the applier clamps them.
func validateAction(id agents.AgentID, act agents.Action) error {
	if act.AgentID != id {
		return fmt.Errorf("%w: action for agent %d returned for agent %d", ErrMalformedAction, act.AgentID, id)
	}
	fractions := []struct {
		name string
		v    float64
	}{
		{"unstake_fraction", act.UnstakeFraction},
		{"sell_fraction", act.SellFraction},
		{"stake_fraction", act.StakeFraction},
	}
	for _, f := range fractions {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not a number", ErrMalformedAction, f.name)
		}
	}
	return nil
}
