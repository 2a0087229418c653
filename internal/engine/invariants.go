package engine

import (
	"fmt"
	"math"

	"github.com/talgya/mini-economy/internal/agents"
)

// InvariantError reports state that must never occur, such as a negative
// balance or an emptied AMM reserve. The day that produced it is rolled back.
type InvariantError struct {
	Day     int
	Phase   string
	AgentID agents.AgentID // -1 for ledger-level violations
	Field   string
	Value   float64
}

func (e *InvariantError) Error() string {
	if e.AgentID < 0 {
		return fmt.Sprintf("invariant violated on day %d after %s: ledger %s = %v", e.Day, e.Phase, e.Field, e.Value)
	}
	return fmt.Sprintf("invariant violated on day %d after %s: agent %d %s = %v", e.Day, e.Phase, e.AgentID, e.Field, e.Value)
}

func (s *Simulation) checkInvariantsLocked(day int, phase string) error {
	bad := func(v float64) bool { return math.IsNaN(v) || v < 0 }

	for _, a := range s.agents {
		fields := []struct {
			name string
			v    float64
		}{
			{"lvmon", a.LvMON},
			{"meme", a.Meme},
			{"staked_meme", a.StakedMeme},
			{"wealth", a.Wealth},
			{"medals", float64(a.Medals)},
			{"invested_medals", float64(a.InvestedMedals)},
			{"chests", float64(a.Chests)},
			{"equipment", float64(a.EquipmentCount)},
		}
		for _, f := range fields {
			if bad(f.v) {
				return &InvariantError{Day: day, Phase: phase, AgentID: a.ID, Field: f.name, Value: f.v}
			}
		}
	}

	l := s.ledger
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"reservoir_lvmon", l.ReservoirLvMON},
		{"total_wealth", l.TotalWealth},
		{"total_staked_meme", l.TotalStakedMeme},
	} {
		if bad(f.v) {
			return &InvariantError{Day: day, Phase: phase, AgentID: -1, Field: f.name, Value: f.v}
		}
	}
	if math.IsNaN(l.ReserveMeme) || l.ReserveMeme <= 0 {
		return &InvariantError{Day: day, Phase: phase, AgentID: -1, Field: "reserve_meme", Value: l.ReserveMeme}
	}
	if math.IsNaN(l.ReserveLvMON) || l.ReserveLvMON <= 0 {
		return &InvariantError{Day: day, Phase: phase, AgentID: -1, Field: "reserve_lvmon", Value: l.ReserveLvMON}
	}
	return nil
}
