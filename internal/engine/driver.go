package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Driver advances the simulation automatically on a fixed interval.
// A tick that finds a day still running is skipped, never queued.
type Driver struct {
	sim   *Simulation
	cron  *cron.Cron
	every time.Duration
	ctx   context.Context

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// NewDriver creates a paused driver. Days it runs use ctx, so cancelling
// ctx interrupts the current day between turns.
func NewDriver(ctx context.Context, sim *Simulation, every time.Duration) *Driver {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	c.Start()
	return &Driver{sim: sim, cron: c, every: every, ctx: ctx}
}

// Start schedules automatic day advancement. Starting a running driver is
// a no-op.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	id, err := d.cron.AddFunc("@every "+d.every.String(), d.tick)
	if err != nil {
		return fmt.Errorf("schedule auto-advance: %w", err)
	}
	d.entry = id
	d.running = true
	slog.Info("auto-advance started", "every", d.every)
	return nil
}

// Pause stops scheduling new days. A day already in flight runs to its end.
func (d *Driver) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.cron.Remove(d.entry)
	d.running = false
	slog.Info("auto-advance paused")
}

// Running reports whether automatic advancement is scheduled.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Every is the interval between scheduled days.
func (d *Driver) Every() time.Duration {
	return d.every
}

// Stop halts the scheduler and waits for an in-flight day to finish.
func (d *Driver) Stop() {
	d.Pause()
	<-d.cron.Stop().Done()
}

func (d *Driver) tick() {
	if d.sim.Busy() {
		slog.Debug("auto-advance tick skipped, day in progress")
		return
	}
	_, err := d.sim.RunDay(d.ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrDayInProgress):
		slog.Debug("auto-advance tick skipped, day in progress")
	default:
		var inv *InvariantError
		if errors.As(err, &inv) {
			d.Pause()
		}
		slog.Error("auto-advance day failed", "error", err)
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
