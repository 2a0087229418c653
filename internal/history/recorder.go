// Package history defines the append-only day record the engine emits after
// every finished day, and the sinks that receive it.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/talgya/mini-economy/internal/economy"
)

// AgentRecord is one agent's end-of-day state.
type AgentRecord struct {
	Day               int     `json:"day" db:"day"`
	AgentID           int     `json:"agent_id" db:"agent_id"`
	Personality       string  `json:"personality" db:"personality"`
	Source            string  `json:"source" db:"source"` // "oracle" or "fallback"
	Rationale         string  `json:"rationale" db:"rationale"`
	ActionLog         string  `json:"action_log" db:"action_log"`
	Goal              string  `json:"goal,omitempty" db:"goal"`
	GoalAchieved      bool    `json:"goal_achieved" db:"goal_achieved"`
	LvMON             float64 `json:"lvmon" db:"lvmon"`
	PnL               float64 `json:"pnl" db:"pnl"`
	Meme              float64 `json:"meme" db:"meme"`
	StakedMeme        float64 `json:"staked_meme" db:"staked_meme"`
	Wealth            float64 `json:"wealth" db:"wealth"`
	Chests            int     `json:"chests" db:"chests"`
	ChestsOpenedToday int     `json:"chests_opened_today" db:"chests_opened_today"`
	Medals            int     `json:"medals" db:"medals"`
	InvestedMedals    int     `json:"invested_medals" db:"invested_medals"`
	NetWorth          float64 `json:"net_worth" db:"net_worth"`

	GlobalPrice       float64 `json:"global_price" db:"global_price"`
	GlobalReservoir   float64 `json:"global_reservoir" db:"global_reservoir"`
	GlobalTotalWealth float64 `json:"global_total_wealth" db:"global_total_wealth"`
	GlobalTotalStaked float64 `json:"global_total_staked" db:"global_total_staked"`
}

// DayRecord is everything emitted for one finished day.
type DayRecord struct {
	RunID      string                 `json:"run_id"`
	Stat       economy.DailyStat      `json:"stat"`
	Trend      economy.Trend          `json:"trend"`
	Buyback    *economy.BuybackRecord `json:"buyback,omitempty"`
	Agents     []AgentRecord          `json:"agents"`
	RecordedAt time.Time              `json:"recorded_at"`
}

// Recorder receives day records. Implementations must not retain or mutate
// the record after returning.
type Recorder interface {
	RecordDay(ctx context.Context, rec *DayRecord) error
}

// Noop discards every record.
type Noop struct{}

func (Noop) RecordDay(context.Context, *DayRecord) error { return nil }

// Multi fans a record out to every recorder, attempting all of them and
// joining their errors.
type Multi []Recorder

func (m Multi) RecordDay(ctx context.Context, rec *DayRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordDay(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
