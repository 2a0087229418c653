// Daily agent decisions: one model call per agent turn, validated against
// a JSON schema before the engine applies it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/engine"
)

// ErrNoJSON is returned when a reply carries no JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

const decisionMaxTokens = 600

const actionSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["agent_id", "craft_count", "salvage_count", "open_chests", "invest_medals",
               "unstake_fraction", "sell_fraction", "stake_fraction", "rationale"],
  "properties": {
    "agent_id":         {"type": "integer", "minimum": 0},
    "craft_count":      {"type": "integer", "minimum": 0},
    "salvage_count":    {"type": "integer", "minimum": 0},
    "open_chests":      {"type": "integer", "minimum": 0},
    "invest_medals":    {"type": "boolean"},
    "unstake_fraction": {"type": "number"},
    "sell_fraction":    {"type": "number"},
    "stake_fraction":   {"type": "number"},
    "rationale":        {"type": "string"},
    "next_goal":        {"type": "string"}
  }
}`

// Oracle asks the model for each agent's action. It satisfies engine.Oracle.
type Oracle struct {
	client *Client
	schema *jsonschema.Schema
}

// NewOracle wraps client. Returns nil when the client is disabled so the
// engine runs on the fallback policy alone.
func NewOracle(client *Client) *Oracle {
	if !client.Enabled() {
		return nil
	}
	return &Oracle{
		client: client,
		schema: jsonschema.MustCompileString("action.schema.json", actionSchema),
	}
}

// Decide implements engine.Oracle.
func (o *Oracle) Decide(ctx context.Context, req engine.DecisionRequest) (agents.Action, error) {
	reply, err := o.client.Complete(ctx, buildDecisionSystemPrompt(), buildDecisionUserPrompt(req), decisionMaxTokens)
	if err != nil {
		return agents.Action{}, fmt.Errorf("agent %d decision: %w", req.Agent.ID, err)
	}
	act, err := o.parseDecision(reply)
	if err != nil {
		return agents.Action{}, fmt.Errorf("agent %d decision: %w", req.Agent.ID, err)
	}
	return act, nil
}

func buildDecisionSystemPrompt() string {
	return fmt.Sprintf(
		`You control one trading agent in a token economy with two currencies: LvMON (base money) and MEME (a token traded against LvMON on a constant-product AMM with a %.1f%% fee).

The only real profit path is a full cycle:
1. Craft: each item costs %.0f LvMON and adds %.0f wealth. Half the cost feeds the buyback reservoir.
2. Every 100 wealth earns a chest. Opening one costs %.0f LvMON and yields %d-%d medals.
3. Invested medals share %s MEME paid the next morning, pro rata, minus %.0f%% tax that is redistributed to wealth holders.
Crafting without opening chests and investing medals only loses money.

MEME can be sold into the AMM for LvMON or staked. Each day the system buys MEME back with part of the reservoir plus all chest fees; %.0f%% of what it buys is paid to stakers and the rest is burned.
Salvaging an item refunds half its craft cost and removes its wealth.

Net worth = LvMON + (MEME + staked MEME) x price + wealth x 1.5. Maximize it in a way that fits your personality.

Rules the engine enforces (requests beyond them are reduced):
- craft_count <= floor(LvMON / %.0f); salvage_count <= equipment held
- open_chests <= chests held and <= floor(LvMON / %.0f) after crafting
- fractions are between 0 and 1; sell_fraction + stake_fraction <= 1
- order: salvage, craft, open chests, invest medals, unstake, sell, stake

Respond ONLY with one JSON object:
{"agent_id": <int>, "craft_count": <int>, "salvage_count": <int>, "open_chests": <int>,
 "invest_medals": <bool>, "unstake_fraction": <0..1>, "sell_fraction": <0..1>,
 "stake_fraction": <0..1>, "rationale": "<one or two sentences>",
 "next_goal": "<optional plan for tomorrow, e.g. 'hold 5k LvMON and 200 medals'>"}`,
		0.3, economy.CraftCost, economy.WealthPerItem, economy.ChestOpenCost,
		economy.MedalRewardMin, economy.MedalRewardMax, "1,000,000", economy.TaxRate*100,
		economy.StakingDividendRate*100, economy.CraftCost, economy.ChestOpenCost,
	)
}

func buildDecisionUserPrompt(req engine.DecisionRequest) string {
	var b strings.Builder
	a := req.Agent
	l := req.Ledger
	tmpl := agents.TemplateFor(a.Personality)

	fmt.Fprintf(&b, "Day %d. You are agent %d, a %s: %s\n\n", req.Day, a.ID, a.Personality, tmpl.Description)

	b.WriteString("Market:\n")
	fmt.Fprintf(&b, "- MEME price: %.4f LvMON (trend %s)\n", l.MarketPrice, l.PriceTrend)
	fmt.Fprintf(&b, "- AMM reserves: %.0f MEME / %.0f LvMON\n", l.ReserveMeme, l.ReserveLvMON)
	fmt.Fprintf(&b, "- Buyback reservoir: %.0f LvMON\n", l.ReservoirLvMON)
	fmt.Fprintf(&b, "- Medals competing for tomorrow's pool so far: %d\n", l.TotalMedalsInPool)
	fmt.Fprintf(&b, "- Total staked: %.0f MEME, staking APY %.1f%%\n\n", l.TotalStakedMeme, l.StakingAPY()*100)

	b.WriteString("Your holdings:\n")
	fmt.Fprintf(&b, "- LvMON: %.0f (started with %.0f, PnL %+.0f)\n", math.Floor(a.LvMON), a.InitialLvMON, a.PnL())
	fmt.Fprintf(&b, "- MEME: %.0f liquid, %.0f staked\n", math.Floor(a.Meme), math.Floor(a.StakedMeme))
	fmt.Fprintf(&b, "- Wealth: %.0f from %d items\n", a.Wealth, a.EquipmentCount)
	fmt.Fprintf(&b, "- Chests: %d, medals: %d held, %d invested\n", a.Chests, a.Medals, a.InvestedMedals)
	fmt.Fprintf(&b, "- Net worth: %.0f LvMON\n", a.NetWorth(l.MarketPrice))
	fmt.Fprintf(&b, "- You can afford to craft at most %d items today\n\n", a.MaxCraft())

	if a.Memory != nil {
		fmt.Fprintf(&b, "Your plan from day %d: %q. Achieved: %t\n\n", a.Memory.SetOnDay, a.Memory.Goal, a.Memory.Achieved)
	}

	if len(req.Roster) > 1 {
		b.WriteString("Other agents:\n")
		for _, other := range req.Roster {
			if other.ID == a.ID {
				continue
			}
			fmt.Fprintf(&b, "- #%d %s: %.0f LvMON, %.0f MEME, %.0f staked, %d medals invested\n",
				other.ID, other.Personality, math.Floor(other.LvMON), math.Floor(other.Meme),
				math.Floor(other.StakedMeme), other.InvestedMedals)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Decide today's action for agent %d. Respond with the JSON object only.", a.ID)
	return b.String()
}

// parseDecision extracts the JSON object from the reply, validates it
// against the action schema and decodes it.
func (o *Oracle) parseDecision(reply string) (agents.Action, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end <= start {
		return agents.Action{}, ErrNoJSON
	}
	raw := []byte(reply[start : end+1])

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return agents.Action{}, fmt.Errorf("parse decision: %w", err)
	}
	if err := o.schema.Validate(doc); err != nil {
		return agents.Action{}, fmt.Errorf("invalid decision: %w", err)
	}

	var act agents.Action
	if err := json.Unmarshal(raw, &act); err != nil {
		return agents.Action{}, fmt.Errorf("decode decision: %w", err)
	}
	return act, nil
}
