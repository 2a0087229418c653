package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/entropy"
	"github.com/talgya/mini-economy/internal/market"
	"github.com/talgya/mini-economy/internal/metrics"
)

// applyLocked validates and applies one agent's action in the fixed
// sub-order salvage, craft, open, invest, unstake, sell/stake. Each step
// sees the balances left by the previous one. Infeasible requests are
// clamped and noted in the action log, never rejected.
func (s *Simulation) applyLocked(d *dayState, a *agents.Agent, req agents.Action) TurnRecord {
	l := s.ledger
	applied := agents.Action{AgentID: a.ID, Rationale: req.Rationale, NextGoal: req.NextGoal}
	var notes []string

	// Salvage
	if n := clampCount(&notes, "salvage", req.SalvageCount, a.EquipmentCount); n > 0 {
		refund := float64(n) * economy.CraftCost * economy.SalvageRefundRate
		lost := float64(n) * economy.WealthPerItem
		a.EquipmentCount -= n
		a.LvMON += refund
		a.Wealth -= lost
		l.TotalWealth -= lost
		l.DailyNewWealth -= lost
		applied.SalvageCount = n
		notes = append(notes, fmt.Sprintf("Salvaged %d items for %s LvMON", n, amount(refund)))
	}

	// Craft
	if n := clampCount(&notes, "craft", req.CraftCount, affordable(a.LvMON, economy.CraftCost)); n > 0 {
		cost := float64(n) * economy.CraftCost
		gain := float64(n) * economy.WealthPerItem
		before := market.ChestsForWealth(a.Wealth)
		a.LvMON -= cost
		a.Wealth += gain
		a.EquipmentCount += n
		l.TotalWealth += gain
		l.DailyNewWealth += gain
		l.ReservoirLvMON += cost * economy.ReservoirContributionRate
		earned := market.ChestsForWealth(a.Wealth) - before
		a.Chests += earned
		applied.CraftCount = n
		notes = append(notes, fmt.Sprintf("Crafted %d items for %s LvMON (+%d chests)", n, amount(cost), earned))
	}

	// Open chests
	if n := clampCount(&notes, "open", req.OpenChests, min(a.Chests, affordable(a.LvMON, economy.ChestOpenCost))); n > 0 {
		cost := float64(n) * economy.ChestOpenCost
		medals := 0
		for i := 0; i < n; i++ {
			medals += entropy.IntBetween(s.rng, economy.MedalRewardMin, economy.MedalRewardMax)
		}
		a.LvMON -= cost
		a.Chests -= n
		a.ChestsOpenedToday += n
		a.Medals += medals
		l.DailyChestRevenue += cost
		applied.OpenChests = n
		notes = append(notes, fmt.Sprintf("Opened %d chests, found %d medals", n, medals))
	}

	// Invest medals
	if req.InvestMedals && a.Medals > 0 {
		n := a.Medals
		a.InvestedMedals += n
		a.Medals = 0
		d.investedMedals += n
		applied.InvestMedals = true
		notes = append(notes, fmt.Sprintf("Invested %d medals", n))
	}

	// Unstake
	unstake := agents.ClampFraction(req.UnstakeFraction)
	if unstake != req.UnstakeFraction {
		noteClamp(&notes, "unstake", fmt.Sprintf("unstake fraction %.2f to %.2f", req.UnstakeFraction, unstake))
	}
	applied.UnstakeFraction = unstake
	if amt := math.Floor(a.StakedMeme * unstake); amt > 0 {
		a.StakedMeme -= amt
		a.Meme += amt
		l.TotalStakedMeme -= amt
		notes = append(notes, fmt.Sprintf("Unstaked %s MEME", amount(amt)))
	}

	// Sell / stake
	sell, stake := agents.NormalizeSplit(req.SellFraction, req.StakeFraction)
	if sell != req.SellFraction || stake != req.StakeFraction {
		noteClamp(&notes, "split", fmt.Sprintf("sell/stake %.2f/%.2f to %.3f/%.3f", req.SellFraction, req.StakeFraction, sell, stake))
	}
	applied.SellFraction = sell
	applied.StakeFraction = stake

	liquid := a.Meme
	if amt := math.Floor(liquid * sell); amt > 0 {
		if out := l.MemePool().Swap(amt); out > 0 {
			a.Meme -= amt
			a.LvMON += out
			l.RefreshPrice()
			notes = append(notes, fmt.Sprintf("Sold %s MEME for %s LvMON", amount(amt), amount(out)))
			s.events.add(d.day, LogMarket, fmt.Sprintf("Agent %d sold %s MEME, price now %.4f", a.ID, amount(amt), l.MarketPrice))
		}
	}
	if amt := math.Min(math.Floor(liquid*stake), a.Meme); amt > 0 {
		a.Meme -= amt
		a.StakedMeme += amt
		l.TotalStakedMeme += amt
		notes = append(notes, fmt.Sprintf("Staked %s MEME", amount(amt)))
	}

	log := "Held"
	if len(notes) > 0 {
		log = strings.Join(notes, ". ")
	}
	a.LastActionLog = log
	a.LastRationale = req.Rationale
	s.events.add(d.day, LogAction, fmt.Sprintf("Agent %d (%s): %s", a.ID, a.Personality, log))

	return TurnRecord{AgentID: a.ID, Requested: req, Applied: applied, Log: log}
}

// clampCount bounds a requested quantity to [0, limit], noting any reduction.
func clampCount(notes *[]string, step string, want, limit int) int {
	got := want
	if got > limit {
		got = limit
	}
	if got < 0 {
		got = 0
	}
	if got != want {
		noteClamp(notes, step, fmt.Sprintf("%s %d to %d", step, want, got))
	}
	return got
}

func noteClamp(notes *[]string, step, detail string) {
	metrics.ActionClamps.WithLabelValues(step).Inc()
	*notes = append(*notes, "Clamped "+detail)
}

// affordable is how many units at price the balance covers, guarding
// against float division rounding up past the balance.
func affordable(balance, price float64) int {
	if balance <= 0 || price <= 0 {
		return 0
	}
	n := int(balance / price)
	for n > 0 && float64(n)*price > balance {
		n--
	}
	return n
}

func amount(f float64) string {
	return humanize.CommafWithDigits(f, 2)
}
