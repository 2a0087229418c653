// Personality archetypes: the five fixed behavioral templates.
// Each archetype carries its starting capital range and the parameters
// the fallback policy uses when no oracle decision is available.
package agents

import (
	"fmt"
	"strings"
)

// Personality is an agent's fixed behavioral archetype.
type Personality uint8

const (
	Whale Personality = iota
	Degen
	Farmer
	PaperHand
	DiamondHand
)

// NumPersonalities is the number of archetypes.
const NumPersonalities = 5

var personalityNames = [NumPersonalities]string{"Whale", "Degen", "Farmer", "PaperHand", "DiamondHand"}

// String returns the archetype name.
func (p Personality) String() string {
	if int(p) < len(personalityNames) {
		return personalityNames[p]
	}
	return fmt.Sprintf("Personality(%d)", uint8(p))
}

// MarshalText encodes the archetype by name.
func (p Personality) MarshalText() ([]byte, error) {
	if int(p) >= NumPersonalities {
		return nil, fmt.Errorf("unknown personality %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes an archetype name (case-insensitive).
func (p *Personality) UnmarshalText(b []byte) error {
	parsed, err := ParsePersonality(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePersonality looks up an archetype by name.
func ParsePersonality(name string) (Personality, error) {
	for i, n := range personalityNames {
		if strings.EqualFold(n, name) {
			return Personality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown personality %q", name)
}

// Template defines an archetype's capital and default strategy.
type Template struct {
	MinStart, MaxStart int // Starting LvMON range, inclusive

	// Fallback policy. Crafting happens only when LvMON exceeds
	// CraftThreshold × CraftCost.
	CraftThreshold float64
	Craft          int
	Open           int
	Sell           float64
	SellOnUpTrend  bool // Sell only while the price trend is Up
	Stake          float64

	Description string // Strategy summary shown to the oracle
}

// templates maps each archetype to its behavior template.
var templates = [NumPersonalities]Template{
	Whale: {
		MinStart: 80000, MaxStart: 150000,
		CraftThreshold: 10, Craft: 10, Open: 10,
		Sell: 0.2, SellOnUpTrend: true, Stake: 0.8,
		Description: "Wealthy, stakes to control the market, sells only into strength.",
	},
	Degen: {
		MinStart: 1000, MaxStart: 8000,
		CraftThreshold: 1, Craft: 5, Open: 5,
		Sell: 0.5, Stake: 0.5,
		Description: "High risk, crafts and opens chests aggressively, flips MEME daily.",
	},
	Farmer: {
		MinStart: 15000, MaxStart: 30000,
		CraftThreshold: 5, Craft: 2, Open: 1,
		Sell:        1.0,
		Description: "ROI focused, crafts only when profitable, sells MEME to lock profits.",
	},
	PaperHand: {
		MinStart: 5000, MaxStart: 20000,
		CraftThreshold: 1, Craft: 1,
		Sell:        1.0,
		Description: "Risk averse, crafts cautiously, sells MEME immediately, never stakes.",
	},
	DiamondHand: {
		MinStart: 5000, MaxStart: 20000,
		CraftThreshold: 1, Craft: 1,
		Stake:       1.0,
		Description: "Accumulates MEME, stakes everything, never sells.",
	},
}

// TemplateFor returns the archetype's template.
func TemplateFor(p Personality) Template {
	if int(p) >= NumPersonalities {
		return Template{}
	}
	return templates[p]
}

// Distribution is the fixed population mix: two agents per archetype.
var Distribution = []Personality{
	Whale, Whale,
	Degen, Degen,
	Farmer, Farmer,
	PaperHand, PaperHand,
	DiamondHand, DiamondHand,
}
