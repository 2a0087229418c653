// Package market provides the constant-product LvMON/MEME exchange math.
// Functions here are pure: callers own the reserves and apply the deltas.
package market

import "math"

// Fee is the swap fee retained in the pool (0.3%).
const Fee = 0.003

// Buyback rate sigmoid parameters.
const (
	buybackBase   = 0.02
	buybackRange  = 0.08
	buybackSlope  = 0.0001
	buybackCenter = 50000
)

// WealthPerChest is how much wealth earns one chest.
const WealthPerChest = 100

// SpotPrice returns the LvMON price of one MEME. Zero when the MEME reserve
// is empty.
func SpotPrice(reserveLvMON, reserveMeme float64) float64 {
	if reserveMeme == 0 {
		return 0
	}
	return reserveLvMON / reserveMeme
}

// AmountOut returns how much of the output reserve a trade of amountIn buys,
// Uniswap v2 style. Returns 0 if any input is not positive.
func AmountOut(amountIn, reserveIn, reserveOut float64) float64 {
	if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	net := amountIn * (1 - Fee)
	return net * reserveOut / (reserveIn + net)
}

// Pool is a pair of reserves a swap is applied to.
type Pool struct {
	In  *float64
	Out *float64
}

// Swap executes amountIn against the pool, applies both reserve deltas and
// returns the output amount. No-op (returns 0) when AmountOut is 0.
func (p Pool) Swap(amountIn float64) float64 {
	out := AmountOut(amountIn, *p.In, *p.Out)
	if out <= 0 {
		return 0
	}
	*p.In += amountIn
	*p.Out -= out
	return out
}

// BuybackRate maps the day's net new wealth onto a buyback fraction of the
// reservoir. Bounded in (0.02, 0.10) and strictly increasing.
func BuybackRate(dailyNewWealth float64) float64 {
	return buybackBase + buybackRange/(1+math.Exp(-buybackSlope*(dailyNewWealth-buybackCenter)))
}

// ChestsForWealth converts wealth into the number of chests it entitles.
func ChestsForWealth(wealth float64) int {
	if wealth <= 0 {
		return 0
	}
	return int(math.Floor(wealth / WealthPerChest))
}
