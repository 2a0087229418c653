package agents

import (
	"math"
	"testing"

	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/entropy"
)

func TestFallbackDecide_ByPersonality(t *testing.T) {
	cases := []struct {
		name        string
		p           Personality
		lvmon       float64
		trend       economy.Trend
		craft, open int
		sell, stake float64
	}{
		{"whale rich uptrend", Whale, 100000, economy.TrendUp, 10, 10, 0.2, 0.8},
		{"whale rich downtrend", Whale, 100000, economy.TrendDown, 10, 10, 0, 0.8},
		{"whale below threshold", Whale, 3000, economy.TrendStable, 0, 0, 0, 0.8},
		{"degen", Degen, 301, economy.TrendDown, 5, 5, 0.5, 0.5},
		{"degen broke", Degen, 300, economy.TrendDown, 0, 0, 0.5, 0.5},
		{"farmer", Farmer, 1501, economy.TrendStable, 2, 1, 1, 0},
		{"farmer thin", Farmer, 1500, economy.TrendStable, 0, 0, 1, 0},
		{"paperhand", PaperHand, 5000, economy.TrendUp, 1, 0, 1, 0},
		{"diamondhand", DiamondHand, 5000, economy.TrendDown, 1, 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &Agent{ID: 3, Personality: tc.p, LvMON: tc.lvmon}
			l := economy.NewLedger()
			l.PriceTrend = tc.trend

			act := FallbackDecide(a, l)
			if act.AgentID != 3 {
				t.Errorf("AgentID = %d", act.AgentID)
			}
			if act.CraftCount != tc.craft || act.OpenChests != tc.open {
				t.Errorf("craft/open = %d/%d, want %d/%d", act.CraftCount, act.OpenChests, tc.craft, tc.open)
			}
			if act.SellFraction != tc.sell || act.StakeFraction != tc.stake {
				t.Errorf("sell/stake = %v/%v, want %v/%v", act.SellFraction, act.StakeFraction, tc.sell, tc.stake)
			}
			if !act.InvestMedals || act.SalvageCount != 0 || act.UnstakeFraction != 0 {
				t.Errorf("unexpected fixed fields: %+v", act)
			}
			if act.Rationale != FallbackRationale {
				t.Errorf("rationale = %q", act.Rationale)
			}
		})
	}
}

func TestFallbackDecide_IsPure(t *testing.T) {
	a := &Agent{Personality: Degen, LvMON: 5000}
	l := economy.NewLedger()
	first := FallbackDecide(a, l)
	for i := 0; i < 10; i++ {
		if FallbackDecide(a, l) != first {
			t.Fatal("fallback produced different actions for the same input")
		}
	}
	if a.LvMON != 5000 {
		t.Error("fallback mutated the agent")
	}
}

func TestNormalizeSplit(t *testing.T) {
	sell, stake := NormalizeSplit(0.7, 0.6)
	if math.Abs(sell-0.538) > 0.001 || math.Abs(stake-0.462) > 0.001 {
		t.Errorf("split = %v/%v, want ~0.538/0.462", sell, stake)
	}
	if sell+stake != 1.0 {
		t.Errorf("sum = %v, want exactly 1", sell+stake)
	}

	sell, stake = NormalizeSplit(0.3, 0.4)
	if sell != 0.3 || stake != 0.4 {
		t.Errorf("under-one split changed: %v/%v", sell, stake)
	}

	sell, stake = NormalizeSplit(-1, math.NaN())
	if sell != 0 || stake != 0 {
		t.Errorf("invalid fractions not clamped: %v/%v", sell, stake)
	}

	sell, stake = NormalizeSplit(5, 5)
	if sell != 0.5 || stake != 0.5 {
		t.Errorf("over-range split = %v/%v, want 0.5/0.5", sell, stake)
	}
}

func TestParseGoal(t *testing.T) {
	cases := []struct {
		text   string
		lvmon  float64
		medals int
		chests int
		has    [3]bool
	}{
		{"Save 500 LvMON to open 50 chests", 500, 0, 50, [3]bool{true, false, true}},
		{"reach 2.5k lvmon and 120 medals", 2500, 120, 0, [3]bool{true, true, false}},
		{"Craft 5 items and invest medals", 0, 0, 0, [3]bool{}},
		{"get 3k medals", 0, 3, 0, [3]bool{false, true, false}},
		{"1 chest, 10 medal, 40 LVMON", 40, 10, 1, [3]bool{true, true, true}},
		{"Accumulate 1000 MEME then stake", 0, 0, 0, [3]bool{}},
		{"Hold 20,000 LvMON by tomorrow", 20000, 0, 0, [3]bool{true, false, false}},
		{"Reach 20,000 LvMON and invest 1,500 medals", 20000, 1500, 0, [3]bool{true, true, false}},
		{"Target 1,000,000.5 LvMON", 1000000.5, 0, 0, [3]bool{true, false, false}},
		{"open 2 chests, 300 medals", 0, 300, 2, [3]bool{false, true, true}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := ParseGoal(tc.text)
			if (got.LvMON != nil) != tc.has[0] || (got.Medals != nil) != tc.has[1] || (got.Chests != nil) != tc.has[2] {
				t.Fatalf("ParseGoal(%q) = %+v, presence want %v", tc.text, got, tc.has)
			}
			if got.LvMON != nil && *got.LvMON != tc.lvmon {
				t.Errorf("LvMON = %v, want %v", *got.LvMON, tc.lvmon)
			}
			if got.Medals != nil && *got.Medals != tc.medals {
				t.Errorf("Medals = %v, want %v", *got.Medals, tc.medals)
			}
			if got.Chests != nil && *got.Chests != tc.chests {
				t.Errorf("Chests = %v, want %v", *got.Chests, tc.chests)
			}
		})
	}
}

func TestCheckGoalCompletion(t *testing.T) {
	targets := ParseGoal("hold 1k LvMON with 100 medals and 3 chests")
	a := &Agent{LvMON: 1000, Medals: 40, InvestedMedals: 60, Chests: 1, ChestsOpenedToday: 2}
	if !CheckGoalCompletion(a, targets) {
		t.Error("committed medals and opened chests should count toward the goal")
	}

	a.LvMON = 999
	if CheckGoalCompletion(a, targets) {
		t.Error("LvMON shortfall should fail the goal")
	}

	grouped := ParseGoal("Hold 20,000 LvMON by tomorrow")
	if CheckGoalCompletion(&Agent{LvMON: 10}, grouped) {
		t.Error("10 LvMON must not meet a 20,000 LvMON goal")
	}
	if !CheckGoalCompletion(&Agent{LvMON: 20000}, grouped) {
		t.Error("20,000 LvMON should meet a 20,000 LvMON goal")
	}

	if CheckGoalCompletion(&Agent{LvMON: 1e9}, ParseGoal("be happy")) {
		t.Error("a goal with no targets must not be reported as achieved")
	}
}

func TestSetGoalAndRefresh(t *testing.T) {
	a := &Agent{LvMON: 100}
	SetGoal(a, 4, "  ")
	if a.Memory != nil {
		t.Fatal("blank goal should not create memory")
	}
	SetGoal(a, 4, "Save 200 LvMON")
	RefreshGoal(a)
	if a.Memory.Achieved || a.Memory.SetOnDay != 4 {
		t.Fatalf("unexpected memory %+v", a.Memory)
	}
	a.LvMON = 250
	RefreshGoal(a)
	if !a.Memory.Achieved {
		t.Error("goal should be achieved at 250 LvMON")
	}
}

func TestSpawnPopulation_CapitalRanges(t *testing.T) {
	s := NewSpawner(entropy.NewSeeded(1))
	pop := s.SpawnPopulation(Distribution)
	if len(pop) != 10 {
		t.Fatalf("spawned %d agents, want 10", len(pop))
	}
	for i, a := range pop {
		if a.ID != AgentID(i) {
			t.Errorf("agent %d has ID %d", i, a.ID)
		}
		tmpl := TemplateFor(a.Personality)
		if a.LvMON < float64(tmpl.MinStart) || a.LvMON > float64(tmpl.MaxStart) {
			t.Errorf("%s starts with %v, outside [%d, %d]", a.Personality, a.LvMON, tmpl.MinStart, tmpl.MaxStart)
		}
		if a.InitialLvMON != a.LvMON || a.Wealth != 0 || a.Chests != 0 {
			t.Errorf("agent %d not fresh: %+v", i, a)
		}
	}
}

func TestPersonality_TextRoundTrip(t *testing.T) {
	for i := 0; i < NumPersonalities; i++ {
		p := Personality(i)
		b, err := p.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Personality
		if err := back.UnmarshalText(b); err != nil || back != p {
			t.Errorf("round trip %s -> %s (%v)", p, back, err)
		}
	}
	if _, err := ParsePersonality("Shrimp"); err == nil {
		t.Error("expected error for unknown personality")
	}
}

func TestClone_DeepCopiesMemory(t *testing.T) {
	a := &Agent{LvMON: 10}
	SetGoal(a, 1, "50 medals")
	c := a.Clone()
	c.Memory.Goal = "changed"
	c.LvMON = 0
	if a.Memory.Goal == "changed" || a.LvMON != 10 {
		t.Error("clone shares state with the original")
	}
}
