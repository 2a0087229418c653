package economy

import "testing"

func TestNewLedger_InitialPrice(t *testing.T) {
	l := NewLedger()
	if l.MarketPrice != 2 {
		t.Fatalf("initial price = %v, want 2", l.MarketPrice)
	}
	if l.PriceTrend != TrendStable || l.Day != 1 {
		t.Errorf("unexpected initial ledger: %+v", l)
	}
}

func TestTrendBetween(t *testing.T) {
	cases := []struct {
		open, last float64
		want       Trend
	}{
		{2, 2.1, TrendUp},
		{2, 1.9, TrendDown},
		{2, 2, TrendStable},
	}
	for _, tc := range cases {
		if got := TrendBetween(tc.open, tc.last); got != tc.want {
			t.Errorf("TrendBetween(%v, %v) = %s, want %s", tc.open, tc.last, got, tc.want)
		}
	}
}

func TestClone_DetachesHistory(t *testing.T) {
	l := NewLedger()
	l.BuybackHistory = append(l.BuybackHistory, BuybackRecord{Day: 1, DistributedMeme: 50})
	c := l.Clone()
	l.BuybackHistory[0].DistributedMeme = 99
	l.ReserveMeme = 1

	if c.BuybackHistory[0].DistributedMeme != 50 {
		t.Error("clone shares buyback history with the original")
	}
	if c.ReserveMeme != InitialReserveMeme {
		t.Error("clone shares reserves with the original")
	}
}

func TestStakingAPY(t *testing.T) {
	l := NewLedger()
	if l.StakingAPY() != 0 {
		t.Error("APY with nothing staked should be 0")
	}
	l.TotalStakedMeme = 36500
	l.BuybackHistory = []BuybackRecord{{Day: 1, DistributedMeme: 100}}
	if got := l.StakingAPY(); got != 1 {
		t.Errorf("StakingAPY = %v, want 1", got)
	}
}

func TestPools_ApplyDeltas(t *testing.T) {
	l := NewLedger()
	out := l.MemePool().Swap(10000)
	if out <= 0 {
		t.Fatal("expected LvMON out")
	}
	if l.ReserveMeme != InitialReserveMeme+10000 {
		t.Errorf("ReserveMeme = %v", l.ReserveMeme)
	}
	if l.ReserveLvMON != InitialReserveLvMON-out {
		t.Errorf("ReserveLvMON = %v", l.ReserveLvMON)
	}
	l.RefreshPrice()
	if l.MarketPrice >= 2 {
		t.Errorf("price after sell = %v, want < 2", l.MarketPrice)
	}
}
