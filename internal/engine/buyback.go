package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/market"
	"github.com/talgya/mini-economy/internal/metrics"
)

// buybackLocked spends part of the reservoir plus today's chest revenue
// buying MEME from the pool. A tenth of the MEME bought is paid to stakers
// pro rata; the rest is burned. Returns nil when the buyback was skipped.
func (s *Simulation) buybackLocked(d *dayState) *economy.BuybackRecord {
	l := s.ledger
	rate := market.BuybackRate(l.DailyNewWealth)
	fromReservoir := l.ReservoirLvMON * rate
	budget := fromReservoir + l.DailyChestRevenue

	if budget <= 0 || l.ReserveMeme <= economy.MinBuybackLiquidity {
		slog.Debug("buyback skipped", "day", d.day, "budget", budget, "reserve_meme", l.ReserveMeme)
		s.events.add(d.day, LogInfo, "Buyback skipped")
		return nil
	}

	bought := l.LvMONPool().Swap(budget)
	if bought <= 0 {
		s.events.add(d.day, LogInfo, "Buyback skipped")
		return nil
	}
	l.ReservoirLvMON -= fromReservoir

	dividend := bought * economy.StakingDividendRate
	if l.TotalStakedMeme <= 0 {
		dividend = 0
	}
	burned := bought - dividend
	if dividend > 0 {
		for _, a := range s.agents {
			if a.StakedMeme > 0 {
				a.Meme += dividend * a.StakedMeme / l.TotalStakedMeme
			}
		}
	}
	l.RefreshPrice()

	rec := economy.BuybackRecord{
		Day:             d.day,
		Rate:            rate,
		AmountLvMON:     budget,
		BurnedMeme:      burned,
		DistributedMeme: dividend,
	}
	l.BuybackHistory = append(l.BuybackHistory, rec)

	metrics.BuybackLvMON.Add(budget)
	metrics.BurnedMeme.Add(burned)
	slog.Info("buyback executed",
		"day", d.day,
		"rate", fmt.Sprintf("%.4f", rate),
		"lvmon", fmt.Sprintf("%.2f", budget),
		"burned", fmt.Sprintf("%.2f", burned),
		"dividend", fmt.Sprintf("%.2f", dividend),
	)
	s.events.add(d.day, LogMarket, fmt.Sprintf("Buyback spent %s LvMON, burned %s MEME, paid %s MEME to stakers",
		amount(budget), amount(burned), amount(dividend)))
	return &rec
}
