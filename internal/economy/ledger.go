// Package economy holds the day-level aggregate state of the simulated
// economy: AMM reserves, the buyback reservoir, global totals and history.
package economy

import "github.com/talgya/mini-economy/internal/market"

// Economy constants.
const (
	CraftCost                 = 300.0     // LvMON per crafted item
	WealthPerItem             = 286.0     // Wealth gained per crafted item
	SalvageRefundRate         = 0.5       // Fraction of CraftCost refunded on salvage
	ChestOpenCost             = 10.0      // LvMON per opened chest
	MedalRewardMin            = 5         // Medals per chest, inclusive
	MedalRewardMax            = 15        // Medals per chest, inclusive
	DailyMemeReward           = 1_000_000 // MEME shared by yesterday's medal pool
	ReservoirContributionRate = 0.5       // Fraction of craft spend routed to the reservoir
	TaxRate                   = 0.1       // Tax on pool rewards
	StakingDividendRate       = 0.1       // Fraction of buyback MEME paid to stakers
	MinBuybackLiquidity       = 1000.0    // MEME reserve floor below which buyback is skipped

	InitialReserveMeme  = 1_000_000.0
	InitialReserveLvMON = 2_000_000.0
)

// Trend describes how the MEME price moved over the last day.
type Trend string

const (
	TrendUp     Trend = "Up"
	TrendDown   Trend = "Down"
	TrendStable Trend = "Stable"
)

// TrendBetween compares a day's closing price with its opening price.
func TrendBetween(open, last float64) Trend {
	switch {
	case last > open:
		return TrendUp
	case last < open:
		return TrendDown
	default:
		return TrendStable
	}
}

// BuybackRecord is one executed system buyback.
type BuybackRecord struct {
	Day             int     `json:"day" db:"day"`
	Rate            float64 `json:"rate" db:"rate"`
	AmountLvMON     float64 `json:"amount_lvmon" db:"amount_lvmon"`
	BurnedMeme      float64 `json:"burned_meme" db:"burned_meme"`
	DistributedMeme float64 `json:"distributed_meme" db:"distributed_meme"`
}

// DailyStat is the global snapshot appended after every finished day.
type DailyStat struct {
	Day       int     `json:"day" db:"day"`
	Price     float64 `json:"price" db:"price"`
	Wealth    float64 `json:"wealth" db:"wealth"`
	Reservoir float64 `json:"reservoir" db:"reservoir"`
	Staked    float64 `json:"staked" db:"staked"`
}

// Ledger is the economy-wide state. The day orchestrator is its only writer.
type Ledger struct {
	Day               int     `json:"day"`
	ReserveMeme       float64 `json:"reserve_meme"`
	ReserveLvMON      float64 `json:"reserve_lvmon"`
	ReservoirLvMON    float64 `json:"reservoir_lvmon"` // Fed by crafting, drained by buyback
	TotalWealth       float64 `json:"total_wealth"`
	TotalStakedMeme   float64 `json:"total_staked_meme"`
	TotalMedalsInPool int     `json:"total_medals_in_pool"` // Committed yesterday, paid out this morning

	// Per-day scratch, reset every morning.
	DailyChestRevenue float64 `json:"daily_chest_revenue"`
	DailyNewWealth    float64 `json:"daily_new_wealth"` // Last finished day's value once finalized
	DailyTaxPool      float64 `json:"daily_tax_pool"`

	MarketPrice    float64         `json:"market_price"`
	PriceTrend     Trend           `json:"price_trend"`
	BuybackHistory []BuybackRecord `json:"buyback_history"`
}

// NewLedger returns the day-1 ledger with the initial AMM reserves.
func NewLedger() *Ledger {
	return &Ledger{
		Day:          1,
		ReserveMeme:  InitialReserveMeme,
		ReserveLvMON: InitialReserveLvMON,
		MarketPrice:  market.SpotPrice(InitialReserveLvMON, InitialReserveMeme),
		PriceTrend:   TrendStable,
	}
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps being mutated.
func (l *Ledger) Clone() Ledger {
	c := *l
	c.BuybackHistory = append([]BuybackRecord(nil), l.BuybackHistory...)
	return c
}

// MemePool returns the pool for selling MEME into LvMON.
func (l *Ledger) MemePool() market.Pool {
	return market.Pool{In: &l.ReserveMeme, Out: &l.ReserveLvMON}
}

// LvMONPool returns the pool for buying MEME with LvMON.
func (l *Ledger) LvMONPool() market.Pool {
	return market.Pool{In: &l.ReserveLvMON, Out: &l.ReserveMeme}
}

// RefreshPrice recomputes the spot price from the current reserves.
func (l *Ledger) RefreshPrice() {
	l.MarketPrice = market.SpotPrice(l.ReserveLvMON, l.ReserveMeme)
}

// LastDividend returns the MEME paid to stakers by the most recent buyback.
func (l *Ledger) LastDividend() float64 {
	if len(l.BuybackHistory) == 0 {
		return 0
	}
	return l.BuybackHistory[len(l.BuybackHistory)-1].DistributedMeme
}

// StakingAPY annualizes the last staking dividend against the staked total.
func (l *Ledger) StakingAPY() float64 {
	if l.TotalStakedMeme <= 0 {
		return 0
	}
	return l.LastDividend() * 365 / l.TotalStakedMeme
}

// Stat builds the DailyStat for the ledger's current state.
func (l *Ledger) Stat() DailyStat {
	return DailyStat{
		Day:       l.Day,
		Price:     l.MarketPrice,
		Wealth:    l.TotalWealth,
		Reservoir: l.ReservoirLvMON,
		Staked:    l.TotalStakedMeme,
	}
}
