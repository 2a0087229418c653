package market

import (
	"math"
	"testing"
)

func TestAmountOut_ReferenceTrade(t *testing.T) {
	// 10,000 MEME into a 1,000,000 MEME / 2,000,000 LvMON pool.
	out := AmountOut(10000, 1_000_000, 2_000_000)
	want := 9970.0 * 2_000_000 / 1_009_970
	if math.Abs(out-want) > 0.01 {
		t.Fatalf("AmountOut = %.4f, want %.4f", out, want)
	}
	if math.Abs(out-19743.16) > 0.01 {
		t.Errorf("AmountOut = %.4f, want ~19743.16", out)
	}
}

func TestAmountOut_NonPositiveInputs(t *testing.T) {
	cases := []struct {
		name                string
		amountIn, rIn, rOut float64
	}{
		{"zero amount", 0, 100, 100},
		{"negative amount", -5, 100, 100},
		{"empty reserve in", 10, 0, 100},
		{"empty reserve out", 10, 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AmountOut(tc.amountIn, tc.rIn, tc.rOut); got != 0 {
				t.Errorf("AmountOut = %v, want 0", got)
			}
		})
	}
}

func TestSwap_ConstantProductNonDecreasing(t *testing.T) {
	trades := []float64{1, 250, 10_000, 333_333, 5_000_000}
	for _, amt := range trades {
		meme, lv := 1_000_000.0, 2_000_000.0
		k := meme * lv
		priceBefore := SpotPrice(lv, meme)

		out := Pool{In: &meme, Out: &lv}.Swap(amt)
		if out <= 0 {
			t.Fatalf("swap %v returned %v", amt, out)
		}
		if meme*lv < k {
			t.Errorf("swap %v: k decreased %.2f -> %.2f", amt, k, meme*lv)
		}
		if lv <= 0 || meme <= 0 {
			t.Errorf("swap %v: reserve exhausted (meme=%v lv=%v)", amt, meme, lv)
		}
		// Selling MEME pushes its LvMON price down.
		if p := SpotPrice(lv, meme); p >= priceBefore {
			t.Errorf("swap %v: price %v did not fall below %v", amt, p, priceBefore)
		}
	}
}

func TestSwap_BuyRaisesPrice(t *testing.T) {
	meme, lv := 1_000_000.0, 2_000_000.0
	before := SpotPrice(lv, meme)
	Pool{In: &lv, Out: &meme}.Swap(50_000)
	if after := SpotPrice(lv, meme); after <= before {
		t.Errorf("price after buy = %v, want > %v", after, before)
	}
}

func TestSpotPrice_ZeroMemeReserve(t *testing.T) {
	if got := SpotPrice(100, 0); got != 0 {
		t.Errorf("SpotPrice = %v, want 0", got)
	}
	if got := SpotPrice(2_000_000, 1_000_000); got != 2 {
		t.Errorf("SpotPrice = %v, want 2", got)
	}
}

func TestBuybackRate_BoundedAndIncreasing(t *testing.T) {
	for _, x := range []float64{math.Inf(-1), -1e12, -1e6, 0, 50000, 1e6, 1e12, math.Inf(1)} {
		r := BuybackRate(x)
		if r < 0.02 || r > 0.10 {
			t.Errorf("BuybackRate(%v) = %v, out of [0.02, 0.10]", x, r)
		}
	}

	prev := BuybackRate(-100_000)
	for x := -99_000.0; x <= 200_000; x += 1000 {
		r := BuybackRate(x)
		if r <= prev {
			t.Fatalf("BuybackRate not strictly increasing at %v: %v <= %v", x, r, prev)
		}
		prev = r
	}

	if mid := BuybackRate(50000); math.Abs(mid-0.06) > 1e-12 {
		t.Errorf("BuybackRate(center) = %v, want 0.06", mid)
	}
}

func TestChestsForWealth(t *testing.T) {
	cases := map[float64]int{0: 0, -10: 0, 99: 0, 100: 1, 250: 2, 536: 5}
	for w, want := range cases {
		if got := ChestsForWealth(w); got != want {
			t.Errorf("ChestsForWealth(%v) = %d, want %d", w, got, want)
		}
	}
}
