// Goal memory: an agent's free-text plan for tomorrow and the numeric
// targets that can be read out of it. Parsing is best-effort keyword and
// number matching.
package agents

import (
	"regexp"
	"strconv"
	"strings"
)

// GoalTargets are the numeric targets extracted from a plan. Nil means the
// plan did not mention that quantity.
type GoalTargets struct {
	LvMON  *float64 `json:"lvmon,omitempty"`
	Medals *int     `json:"medals,omitempty"`
	Chests *int     `json:"chests,omitempty"`
}

// Empty reports whether no target was extracted.
func (t GoalTargets) Empty() bool {
	return t.LvMON == nil && t.Medals == nil && t.Chests == nil
}

// GoalMemory is the plan an agent set for itself on its previous turn.
type GoalMemory struct {
	Goal     string      `json:"goal"`
	Targets  GoalTargets `json:"targets"`
	Achieved bool        `json:"achieved"`
	SetOnDay int         `json:"set_on_day"`
}

// goalPattern matches "<number>[k] <keyword>", e.g. "500 LvMON", "2.5k lvmon",
// "20,000 LvMON", "50 chests", "100 medals".
var goalPattern = regexp.MustCompile(`(?i)((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*(k)?\s*(lvmon|medals?|chests?)\b`)

// ParseGoal extracts up to three targets from a plan. The first match for
// each quantity wins. A trailing "k" multiplies by 1000 for LvMON only.
func ParseGoal(text string) GoalTargets {
	var t GoalTargets
	for _, m := range goalPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		kilo := m[2] != ""

		switch kw := strings.ToLower(m[3]); {
		case kw == "lvmon":
			if t.LvMON == nil {
				if kilo {
					n *= 1000
				}
				t.LvMON = &n
			}
		case strings.HasPrefix(kw, "medal"):
			if t.Medals == nil {
				v := int(n)
				t.Medals = &v
			}
		case strings.HasPrefix(kw, "chest"):
			if t.Chests == nil {
				v := int(n)
				t.Chests = &v
			}
		}
	}
	return t
}

// CheckGoalCompletion reports whether the agent meets every extracted
// target. LvMON is checked against the liquid balance, medals against held
// plus invested, chests against held plus opened today. Returns false when
// there is nothing to verify.
func CheckGoalCompletion(a *Agent, t GoalTargets) bool {
	if t.Empty() {
		return false
	}
	if t.LvMON != nil && a.LvMON < *t.LvMON {
		return false
	}
	if t.Medals != nil && a.Medals+a.InvestedMedals < *t.Medals {
		return false
	}
	if t.Chests != nil && a.Chests+a.ChestsOpenedToday < *t.Chests {
		return false
	}
	return true
}

// SetGoal replaces the agent's plan. Blank text leaves the current plan.
func SetGoal(a *Agent, day int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.Memory = &GoalMemory{
		Goal:     text,
		Targets:  ParseGoal(text),
		SetOnDay: day,
	}
}

// RefreshGoal re-evaluates whether the agent's current plan has been met.
func RefreshGoal(a *Agent) {
	if a.Memory == nil {
		return
	}
	a.Memory.Achieved = CheckGoalCompletion(a, a.Memory.Targets)
}
