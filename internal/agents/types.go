// Package agents provides the agent data model, personality archetypes,
// the fallback decision policy and goal memory.
package agents

import (
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/market"
)

// AgentID is a unique identifier for an agent.
type AgentID int

// Agent is one autonomous participant in the economy.
type Agent struct {
	ID          AgentID     `json:"id"`
	Personality Personality `json:"personality"`

	// Balances
	LvMON        float64 `json:"lvmon"`
	InitialLvMON float64 `json:"initial_lvmon"` // Starting balance, for PnL
	Meme         float64 `json:"meme"`
	StakedMeme   float64 `json:"staked_meme"`

	// Medal pool
	Medals         int `json:"medals"`
	InvestedMedals int `json:"invested_medals"` // Committed today, paid out next morning

	// Crafting
	Wealth         float64 `json:"wealth"` // Craft-derived score, gates chest issuance
	Chests         int     `json:"chests"`
	EquipmentCount int     `json:"equipment_count"`

	// Per-day counters
	ChestsOpenedToday int `json:"chests_opened_today"`

	LastActionLog string      `json:"last_action_log,omitempty"`
	LastRationale string      `json:"last_rationale,omitempty"`
	Memory        *GoalMemory `json:"memory,omitempty"`
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	c := *a
	if a.Memory != nil {
		m := *a.Memory
		c.Memory = &m
	}
	return &c
}

// NetWorth values the agent's holdings at the given MEME price. Wealth is
// weighted at 1.5 LvMON per point.
func (a *Agent) NetWorth(price float64) float64 {
	return a.LvMON + (a.Meme+a.StakedMeme)*price + a.Wealth*1.5
}

// PnL is the change in liquid LvMON since the agent was created.
func (a *Agent) PnL() float64 {
	return a.LvMON - a.InitialLvMON
}

// MaxCraft is how many items the agent can afford right now.
func (a *Agent) MaxCraft() int {
	return int(a.LvMON / economy.CraftCost)
}

// MaxOpen is how many chests the agent both holds and can afford to open.
func (a *Agent) MaxOpen() int {
	return min(a.Chests, int(a.LvMON/economy.ChestOpenCost))
}

// ChestEntitlement is floor(wealth/100).
func (a *Agent) ChestEntitlement() int {
	return market.ChestsForWealth(a.Wealth)
}

// CloneAll deep-copies a roster.
func CloneAll(list []*Agent) []*Agent {
	out := make([]*Agent, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}
