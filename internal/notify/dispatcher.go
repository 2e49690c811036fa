package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"doughline/internal/engine"
	"doughline/internal/tracker"
)

const (
	defaultInterval = 30 * time.Second
	defaultBatch    = 50
	lockFileName    = "notify.lock"
)

// ErrLocked means another dispatcher already runs for the workspace.
var ErrLocked = errors.New("notification dispatcher already running")

// Dispatcher polls for due reminders, sends them and records each attempt.
// Failed sends stay due and are retried on the next tick.
type Dispatcher struct {
	Engine   engine.Engine
	Notifier Notifier
	Logger   *log.Logger
	Interval time.Duration
	Batch    int
	// StateDir holds the lock file that keeps one dispatcher per workspace.
	StateDir string
	Location *time.Location
}

// Result counts the outcome of one tick.
type Result struct {
	Sent   int
	Failed int
}

func (d Dispatcher) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// Run ticks until ctx is done. It returns ErrLocked when another process holds the lock.
func (d Dispatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.StateDir, 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(d.StateDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer lock.Unlock()

	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	d.logger().Info("notification dispatcher started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := d.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger().Error("dispatch failed", "err", err)
		}
		select {
		case <-ctx.Done():
			d.logger().Info("notification dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick sends every reminder due now.
func (d Dispatcher) Tick(ctx context.Context) (Result, error) {
	batch := d.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	now := time.Now()
	if d.Engine.Now != nil {
		now = d.Engine.Now()
	}
	due, err := d.Engine.DueNotifications(ctx, now, batch)
	if err != nil {
		return Result{}, fmt.Errorf("fetch due reminders: %w", err)
	}
	var res Result
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		msg := Message{
			Phone:      r.PhoneRef,
			Text:       tracker.ReminderText(r.Step, d.Location),
			ScheduleID: r.ScheduleID,
			Step:       r.Step.StepNumber,
		}
		sendErr := d.Notifier.Send(ctx, msg)
		if _, err := d.Engine.RecordNotificationAttempt(ctx, r.ScheduleID, msg.Step, sendErr); err != nil {
			d.logger().Error("record attempt failed", "schedule", r.ScheduleID, "step", msg.Step, "err", err)
		}
		if sendErr != nil {
			res.Failed++
			d.logger().Warn("reminder delivery failed", "schedule", r.ScheduleID, "step", msg.Step, "err", sendErr)
			continue
		}
		if _, err := d.Engine.MarkNotified(ctx, r.ScheduleID, msg.Step); err != nil {
			res.Failed++
			d.logger().Error("mark notified failed", "schedule", r.ScheduleID, "step", msg.Step, "err", err)
			continue
		}
		res.Sent++
		d.logger().Debug("reminder sent", "schedule", r.ScheduleID, "step", msg.Step)
	}
	return res, nil
}
