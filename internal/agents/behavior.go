// Agent actions and the rule-based fallback policy.
// When the decision oracle is unavailable, each agent plays its archetype's
// default strategy from the template table.
package agents

import (
	"math"

	"github.com/talgya/mini-economy/internal/economy"
)

// FallbackRationale marks actions produced by the fallback policy.
const FallbackRationale = "Fallback Logic"

// Action is what an agent requests for its turn. Quantities are requests;
// the engine clamps them to what is feasible before applying.
type Action struct {
	AgentID         AgentID `json:"agent_id"`
	CraftCount      int     `json:"craft_count"`
	SalvageCount    int     `json:"salvage_count"`
	OpenChests      int     `json:"open_chests"`
	InvestMedals    bool    `json:"invest_medals"`
	UnstakeFraction float64 `json:"unstake_fraction"`
	SellFraction    float64 `json:"sell_fraction"`
	StakeFraction   float64 `json:"stake_fraction"`
	Rationale       string  `json:"rationale"`
	NextGoal        string  `json:"next_goal,omitempty"`
}

// FallbackDecide returns the archetype's default action for the agent's
// current balances and the ledger's price trend. Pure: no I/O, no randomness.
func FallbackDecide(a *Agent, l *economy.Ledger) Action {
	tmpl := TemplateFor(a.Personality)
	act := Action{
		AgentID:       a.ID,
		InvestMedals:  true,
		StakeFraction: tmpl.Stake,
		Rationale:     FallbackRationale,
	}

	if a.LvMON > economy.CraftCost*tmpl.CraftThreshold {
		act.CraftCount = tmpl.Craft
		act.OpenChests = tmpl.Open
	}

	if !tmpl.SellOnUpTrend || l.PriceTrend == economy.TrendUp {
		act.SellFraction = tmpl.Sell
	}

	return act
}

// NormalizeSplit clamps sell and stake fractions to [0,1] and, when they
// add up to more than 1, scales both so they sum to exactly 1.
func NormalizeSplit(sell, stake float64) (float64, float64) {
	sell = ClampFraction(sell)
	stake = ClampFraction(stake)
	sum := sell + stake
	if sum <= 1 {
		return sell, stake
	}
	sell = sell / sum
	return sell, 1 - sell
}

// ClampFraction bounds f to [0,1]; NaN becomes 0.
func ClampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
