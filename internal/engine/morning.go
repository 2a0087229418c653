package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-economy/internal/economy"
)

// morningLocked pays yesterday's medal pool, issues the chest stipend and
// redistributes the collected tax by wealth.
func (s *Simulation) morningLocked(d *dayState) {
	l := s.ledger
	l.DailyChestRevenue = 0
	l.DailyNewWealth = 0
	l.DailyTaxPool = 0

	for _, a := range s.agents {
		a.ChestsOpenedToday = 0
	}

	pool := l.TotalMedalsInPool
	distributed := 0.0
	if pool > 0 {
		for _, a := range s.agents {
			if a.InvestedMedals <= 0 {
				continue
			}
			share := float64(a.InvestedMedals) / float64(pool)
			raw := economy.DailyMemeReward * share
			tax := raw * economy.TaxRate
			a.Meme += raw - tax
			l.DailyTaxPool += tax
			distributed += raw - tax
			a.InvestedMedals = 0
		}
	}

	// Stipend is the full entitlement, not the increase since yesterday.
	stipend := 0
	for _, a := range s.agents {
		n := a.ChestEntitlement()
		a.Chests += n
		stipend += n
	}

	redistributed := 0.0
	if l.DailyTaxPool > 0 && l.TotalWealth > 0 {
		for _, a := range s.agents {
			if a.Wealth <= 0 {
				continue
			}
			share := l.DailyTaxPool * a.Wealth / l.TotalWealth
			a.Meme += share
			redistributed += share
		}
	}

	slog.Debug("morning distribution",
		"day", d.day,
		"medal_pool", pool,
		"rewards", fmt.Sprintf("%.2f", distributed),
		"tax", fmt.Sprintf("%.2f", l.DailyTaxPool),
		"redistributed", fmt.Sprintf("%.2f", redistributed),
		"chest_stipend", stipend,
	)
	if pool > 0 {
		s.events.add(d.day, LogInfo, fmt.Sprintf("Distributed %s MEME to %d medals (tax %s)",
			amount(distributed), pool, amount(l.DailyTaxPool)))
	}
}
