package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/history"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dayRecord(run string, day int, withBuyback bool) *history.DayRecord {
	rec := &history.DayRecord{
		RunID:      run,
		Stat:       economy.DailyStat{Day: day, Price: 2 + float64(day)/100, Wealth: 286 * float64(day), Reservoir: 150, Staked: 10},
		Trend:      economy.TrendUp,
		RecordedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for id := 0; id < 3; id++ {
		rec.Agents = append(rec.Agents, history.AgentRecord{
			Day: day, AgentID: id, Personality: "Farmer", Source: "fallback",
			Rationale: "Fallback Logic", ActionLog: "Held", Goal: "hold 1k LvMON", GoalAchieved: id == 1,
			LvMON: 1000 + float64(day), Chests: day, Medals: id,
		})
	}
	if withBuyback {
		rec.Buyback = &economy.BuybackRecord{Day: day, Rate: 0.05, AmountLvMON: 500, BurnedMeme: 90, DistributedMeme: 10}
	}
	return rec
}

func TestRecordDay_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		if err := db.RecordDay(ctx, dayRecord("run-1", day, day%2 == 0)); err != nil {
			t.Fatalf("RecordDay %d: %v", day, err)
		}
	}
	if err := db.RecordDay(ctx, dayRecord("run-2", 1, false)); err != nil {
		t.Fatal(err)
	}

	stats, err := db.RecentDays(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("RecentDays: %v", err)
	}
	if len(stats) != 3 || stats[0].Day != 3 || stats[2].Day != 5 {
		t.Errorf("stats = %+v, want days 3..5", stats)
	}
	if stats[2].Wealth != 286*5 {
		t.Errorf("wealth = %v", stats[2].Wealth)
	}

	bbs, err := db.Buybacks(ctx, "run-1")
	if err != nil {
		t.Fatalf("Buybacks: %v", err)
	}
	if len(bbs) != 2 || bbs[0].Day != 2 || bbs[1].DistributedMeme != 10 {
		t.Errorf("buybacks = %+v", bbs)
	}

	days, err := db.AgentDays(ctx, "run-1", 1, 10)
	if err != nil {
		t.Fatalf("AgentDays: %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("agent days = %d, want 5", len(days))
	}
	if !days[0].GoalAchieved || days[4].LvMON != 1005 || days[4].Goal != "hold 1k LvMON" {
		t.Errorf("agent record = %+v", days[4])
	}

	last, err := db.GetMeta("last_run")
	if err != nil || last != "run-2" {
		t.Errorf("last_run = %q, %v", last, err)
	}
}

func TestRecordDay_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rec := dayRecord("run-1", 1, true)

	for i := 0; i < 2; i++ {
		if err := db.RecordDay(ctx, rec); err != nil {
			t.Fatalf("RecordDay #%d: %v", i+1, err)
		}
	}
	stats, err := db.RecentDays(ctx, "run-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Errorf("stats = %d rows, want 1", len(stats))
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("seed", "42"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("seed")
	if err != nil || v != "42" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}
}
