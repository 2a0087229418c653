// Package persistence provides the SQLite history store: one row per day,
// per buyback and per agent-day, grouped by simulation run.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-economy/internal/economy"
	"github.com/talgya/mini-economy/internal/history"
)

// DB wraps a SQLite connection for simulation history.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		price REAL NOT NULL,
		wealth REAL NOT NULL,
		reservoir REAL NOT NULL,
		staked REAL NOT NULL,
		trend TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS buybacks (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		rate REAL NOT NULL,
		amount_lvmon REAL NOT NULL,
		burned_meme REAL NOT NULL,
		distributed_meme REAL NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS agent_days (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		personality TEXT NOT NULL,
		source TEXT NOT NULL,
		rationale TEXT NOT NULL,
		action_log TEXT NOT NULL,
		goal TEXT NOT NULL,
		goal_achieved INTEGER NOT NULL,
		lvmon REAL NOT NULL,
		pnl REAL NOT NULL,
		meme REAL NOT NULL,
		staked_meme REAL NOT NULL,
		wealth REAL NOT NULL,
		chests INTEGER NOT NULL,
		chests_opened_today INTEGER NOT NULL,
		medals INTEGER NOT NULL,
		invested_medals INTEGER NOT NULL,
		net_worth REAL NOT NULL,
		global_price REAL NOT NULL,
		global_reservoir REAL NOT NULL,
		global_total_wealth REAL NOT NULL,
		global_total_staked REAL NOT NULL,
		PRIMARY KEY (run_id, day, agent_id)
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agent_days_agent ON agent_days(run_id, agent_id, day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RecordDay writes a finished day in one transaction. It satisfies
// history.Recorder.
func (db *DB) RecordDay(ctx context.Context, rec *history.DayRecord) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)",
		rec.RunID, rec.RecordedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	st := rec.Stat
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO daily_stats (run_id, day, price, wealth, reservoir, staked, trend)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, st.Day, st.Price, st.Wealth, st.Reservoir, st.Staked, string(rec.Trend),
	); err != nil {
		return fmt.Errorf("insert daily stat %d: %w", st.Day, err)
	}

	if b := rec.Buyback; b != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO buybacks (run_id, day, rate, amount_lvmon, burned_meme, distributed_meme)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.RunID, b.Day, b.Rate, b.AmountLvMON, b.BurnedMeme, b.DistributedMeme,
		); err != nil {
			return fmt.Errorf("insert buyback %d: %w", b.Day, err)
		}
	}

	stmt, err := tx.PrepareNamedContext(ctx, `INSERT OR REPLACE INTO agent_days
		(run_id, day, agent_id, personality, source, rationale, action_log, goal, goal_achieved,
		 lvmon, pnl, meme, staked_meme, wealth, chests, chests_opened_today, medals, invested_medals,
		 net_worth, global_price, global_reservoir, global_total_wealth, global_total_staked)
		VALUES (:run_id, :day, :agent_id, :personality, :source, :rationale, :action_log, :goal, :goal_achieved,
		 :lvmon, :pnl, :meme, :staked_meme, :wealth, :chests, :chests_opened_today, :medals, :invested_medals,
		 :net_worth, :global_price, :global_reservoir, :global_total_wealth, :global_total_staked)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range rec.Agents {
		row := agentRow{RunID: rec.RunID, AgentRecord: a}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert agent %d day %d: %w", a.AgentID, a.Day, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES ('last_run', ?)", rec.RunID,
	); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("day persisted", "run", rec.RunID, "day", st.Day, "agents", len(rec.Agents))
	return nil
}

type agentRow struct {
	RunID string `db:"run_id"`
	history.AgentRecord
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// RecentDays returns up to limit of the run's most recent daily stats,
// oldest first.
func (db *DB) RecentDays(ctx context.Context, runID string, limit int) ([]economy.DailyStat, error) {
	var stats []economy.DailyStat
	err := db.conn.SelectContext(ctx, &stats,
		`SELECT day, price, wealth, reservoir, staked FROM (
			SELECT * FROM daily_stats WHERE run_id = ? ORDER BY day DESC LIMIT ?
		) ORDER BY day ASC`,
		runID, limit,
	)
	return stats, err
}

// Buybacks returns every executed buyback of the run in day order.
func (db *DB) Buybacks(ctx context.Context, runID string) ([]economy.BuybackRecord, error) {
	var recs []economy.BuybackRecord
	err := db.conn.SelectContext(ctx, &recs,
		`SELECT day, rate, amount_lvmon, burned_meme, distributed_meme
		FROM buybacks WHERE run_id = ? ORDER BY day ASC`,
		runID,
	)
	return recs, err
}

// AgentDays returns up to limit of one agent's most recent daily records,
// oldest first.
func (db *DB) AgentDays(ctx context.Context, runID string, agentID, limit int) ([]history.AgentRecord, error) {
	var recs []history.AgentRecord
	err := db.conn.SelectContext(ctx, &recs,
		`SELECT day, agent_id, personality, source, rationale, action_log, goal, goal_achieved,
			lvmon, pnl, meme, staked_meme, wealth, chests, chests_opened_today, medals, invested_medals,
			net_worth, global_price, global_reservoir, global_total_wealth, global_total_staked
		FROM (
			SELECT * FROM agent_days WHERE run_id = ? AND agent_id = ? ORDER BY day DESC LIMIT ?
		) ORDER BY day ASC`,
		runID, agentID, limit,
	)
	return recs, err
}
