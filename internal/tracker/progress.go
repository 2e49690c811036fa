package tracker

import (
	"fmt"
	"math"
	"time"

	"doughline/internal/domain"
)

// NextPendingStep returns the first step still pending or in progress.
func NextPendingStep(s domain.ActiveSchedule) (domain.RuntimeStep, bool) {
	for _, st := range s.Steps {
		if !st.Status.Done() {
			return st, true
		}
	}
	return domain.RuntimeStep{}, false
}

// CompletionPercentage is the floored share of finished steps, 0 without steps.
func CompletionPercentage(s domain.ActiveSchedule) int {
	if len(s.Steps) == 0 {
		return 0
	}
	done := 0
	for _, st := range s.Steps {
		if st.Status.Done() {
			done++
		}
	}
	return done * 100 / len(s.Steps)
}

// MinutesToNextStep is negative when the next step is overdue and nil when
// nothing is left.
func MinutesToNextStep(s domain.ActiveSchedule, now time.Time) *int {
	st, ok := NextPendingStep(s)
	if !ok {
		return nil
	}
	m := int(math.Floor(st.ScheduledTime.Sub(now).Minutes()))
	return &m
}

// OverdueWindow is how long after its scheduled time a step can still be
// reminded of.
const OverdueWindow = 30 * time.Minute

// DueNotifications lists open steps inside their reminder window that were
// not notified yet. The window opens the lead before the scheduled time and
// closes OverdueWindow after it.
func DueNotifications(s domain.ActiveSchedule, now time.Time) []domain.RuntimeStep {
	if !s.Notifications.Enabled || s.Status.Terminal() || s.Status == domain.SchedulePaused {
		return nil
	}
	lead := time.Duration(s.Notifications.ReminderLeadMinutes) * time.Minute
	var due []domain.RuntimeStep
	for _, st := range s.Steps {
		if st.Status.Done() || st.NotificationSent {
			continue
		}
		if now.Before(st.ScheduledTime.Add(-lead)) || now.After(st.ScheduledTime.Add(OverdueWindow)) {
			continue
		}
		due = append(due, st)
	}
	return due
}

// MarkNotified flags a step as notified.
func MarkNotified(s domain.ActiveSchedule, step int) (domain.ActiveSchedule, error) {
	next := clone(s)
	i := stepIndex(&next, step)
	if i < 0 {
		return s, domain.ValidationError{Field: "step", Value: step, Msg: "no such step"}
	}
	next.Steps[i].NotificationSent = true
	return next, nil
}

// ReminderText is the message sent for a due step.
func ReminderText(st domain.RuntimeStep, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("Step %d at %s: %s", st.StepNumber, st.ScheduledTime.In(loc).Format("15:04"), st.Title)
}
