// Package tracker is the live state machine of an active schedule. Every
// function is pure: it takes a schedule value and returns a new one.
package tracker

import (
	"fmt"
	"time"

	"doughline/internal/domain"
	"doughline/internal/schedule"
)

// DefaultTolerance is the window around a step's scheduled time that counts as on time.
const DefaultTolerance = 5 * time.Minute

const maxLeadMinutes = 24 * 60

type CommandKind string

const (
	CmdStart                CommandKind = "start"
	CmdPause                CommandKind = "pause"
	CmdResume               CommandKind = "resume"
	CmdCancel               CommandKind = "cancel"
	CmdCompleteStep         CommandKind = "complete-step"
	CmdSkipStep             CommandKind = "skip-step"
	CmdRescheduleTo         CommandKind = "reschedule-to"
	CmdRescheduleBy         CommandKind = "reschedule-by"
	CmdEnableNotifications  CommandKind = "enable-notifications"
	CmdDisableNotifications CommandKind = "disable-notifications"
)

// Commands lists every command kind in a stable order.
func Commands() []CommandKind {
	return []CommandKind{
		CmdStart, CmdPause, CmdResume, CmdCancel, CmdCompleteStep, CmdSkipStep,
		CmdRescheduleTo, CmdRescheduleBy, CmdEnableNotifications, CmdDisableNotifications,
	}
}

// Command carries the arguments of one transition. Only the fields used by Kind are read.
type Command struct {
	Kind        CommandKind       `json:"command"`
	Step        int               `json:"step,omitempty"`
	Status      domain.StepStatus `json:"status,omitempty"`
	BakeTime    time.Time         `json:"bake_time,omitempty"`
	Minutes     int               `json:"minutes,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	LeadMinutes int               `json:"lead_minutes,omitempty"`
}

// New builds a planning schedule from generated steps.
func New(steps []domain.ScheduleStep, target time.Time, notif domain.NotificationSettings, owner string, now time.Time) (domain.ActiveSchedule, error) {
	if err := schedule.CheckOrder(steps); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if target.IsZero() {
		return domain.ActiveSchedule{}, fmt.Errorf("%w: target bake time is required", domain.ErrInvalidBakeTime)
	}
	if err := checkNotifications(notif); err != nil {
		return domain.ActiveSchedule{}, err
	}
	rs := make([]domain.RuntimeStep, len(steps))
	for i, st := range steps {
		rs[i] = domain.RuntimeStep{ScheduleStep: st, Status: domain.StepPending}
	}
	now = now.UTC()
	return domain.ActiveSchedule{
		OwnerRef:       owner,
		Status:         domain.SchedulePlanning,
		TargetBakeTime: target.UTC(),
		Steps:          rs,
		Notifications:  notif,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func checkNotifications(n domain.NotificationSettings) error {
	if n.Enabled && n.PhoneRef == "" {
		return domain.ValidationError{Field: "phone", Msg: "required when notifications are enabled"}
	}
	if n.ReminderLeadMinutes < 0 || n.ReminderLeadMinutes > maxLeadMinutes {
		return domain.ValidationError{Field: "lead_minutes", Value: n.ReminderLeadMinutes, Msg: "must be between 0 and 1440"}
	}
	return nil
}

func clone(s domain.ActiveSchedule) domain.ActiveSchedule {
	out := s
	out.Steps = make([]domain.RuntimeStep, len(s.Steps))
	copy(out.Steps, s.Steps)
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func reject(cmd CommandKind, from domain.ScheduleStatus, reason string) error {
	return domain.TransitionError{Command: string(cmd), From: string(from), Reason: reason}
}

// Apply runs cmd against s at now. On error s is returned unchanged.
func Apply(s domain.ActiveSchedule, cmd Command, now time.Time, tolerance time.Duration) (domain.ActiveSchedule, error) {
	if s.Status.Terminal() {
		return s, reject(cmd.Kind, s.Status, "schedule is "+string(s.Status))
	}
	now = now.UTC()
	next := clone(s)
	var err error
	switch cmd.Kind {
	case CmdStart:
		err = start(&next, now)
	case CmdPause:
		err = pause(&next, now)
	case CmdResume:
		err = resume(&next)
	case CmdCancel:
		next.Status = domain.ScheduleCancelled
		next.CancelledAt = timePtr(now)
	case CmdCompleteStep:
		err = completeStep(&next, cmd.Step, cmd.Status, now, tolerance)
	case CmdSkipStep:
		err = finishStep(&next, cmd.Kind, cmd.Step, domain.StepSkipped, now)
	case CmdRescheduleTo:
		err = rescheduleTo(&next, cmd.BakeTime)
	case CmdRescheduleBy:
		err = rescheduleTo(&next, s.BakeTime().Add(time.Duration(cmd.Minutes)*time.Minute))
	case CmdEnableNotifications:
		n := domain.NotificationSettings{Enabled: true, PhoneRef: cmd.Phone, ReminderLeadMinutes: cmd.LeadMinutes}
		if err = checkNotifications(n); err == nil {
			next.Notifications = n
		}
	case CmdDisableNotifications:
		next.Notifications.Enabled = false
	default:
		err = domain.ValidationError{Field: "command", Value: cmd.Kind, Msg: "unknown command"}
	}
	if err != nil {
		return s, err
	}
	next.UpdatedAt = now
	return next, nil
}

func start(s *domain.ActiveSchedule, now time.Time) error {
	if s.Status != domain.SchedulePlanning {
		return reject(CmdStart, s.Status, "only a planning schedule can start")
	}
	s.Status = domain.ScheduleInProgress
	s.StartedAt = timePtr(now)
	advance(s)
	return nil
}

func pause(s *domain.ActiveSchedule, now time.Time) error {
	if s.Status != domain.ScheduleInProgress {
		return reject(CmdPause, s.Status, "only a running schedule can pause")
	}
	s.Status = domain.SchedulePaused
	s.PausedAt = timePtr(now)
	return nil
}

func resume(s *domain.ActiveSchedule) error {
	if s.Status != domain.SchedulePaused {
		return reject(CmdResume, s.Status, "only a paused schedule can resume")
	}
	s.Status = domain.ScheduleInProgress
	s.PausedAt = nil
	return nil
}

func stepIndex(s *domain.ActiveSchedule, n int) int {
	for i, st := range s.Steps {
		if st.StepNumber == n {
			return i
		}
	}
	return -1
}

// CompletionStatus classifies a completion at actual against scheduled.
func CompletionStatus(scheduled, actual time.Time, tolerance time.Duration) domain.StepStatus {
	switch {
	case actual.Before(scheduled.Add(-tolerance)):
		return domain.StepCompletedEarly
	case actual.After(scheduled.Add(tolerance)):
		return domain.StepCompletedLate
	}
	return domain.StepCompleted
}

func completeStep(s *domain.ActiveSchedule, n int, override domain.StepStatus, now time.Time, tolerance time.Duration) error {
	status := override
	switch override {
	case "":
		if i := stepIndex(s, n); i >= 0 {
			status = CompletionStatus(s.Steps[i].ScheduledTime, now, tolerance)
		}
	case domain.StepCompleted, domain.StepCompletedEarly, domain.StepCompletedLate:
	default:
		return domain.ValidationError{Field: "status", Value: override, Msg: "must be completed, completed-early or completed-late"}
	}
	return finishStep(s, CmdCompleteStep, n, status, now)
}

func finishStep(s *domain.ActiveSchedule, cmd CommandKind, n int, status domain.StepStatus, now time.Time) error {
	if s.Status != domain.ScheduleInProgress {
		return reject(cmd, s.Status, "steps can only change while the schedule is running")
	}
	i := stepIndex(s, n)
	if i < 0 {
		return domain.ValidationError{Field: "step", Value: n, Msg: "no such step"}
	}
	if s.Steps[i].Status.Done() {
		return reject(cmd, s.Status, fmt.Sprintf("step %d is already %s", n, s.Steps[i].Status))
	}
	s.Steps[i].Status = status
	s.Steps[i].ActualTime = timePtr(now)
	advance(s)
	if CompletionPercentage(*s) == 100 {
		s.Status = domain.ScheduleCompleted
		s.CompletedAt = timePtr(now)
	}
	return nil
}

// advance marks the first pending step in progress when none is.
func advance(s *domain.ActiveSchedule) {
	for _, st := range s.Steps {
		if st.Status == domain.StepInProgress {
			return
		}
	}
	for i := range s.Steps {
		if s.Steps[i].Status == domain.StepPending {
			s.Steps[i].Status = domain.StepInProgress
			return
		}
	}
}

// rescheduleTo shifts every live step by the same delta. Finished steps keep
// their times even when the result precedes them. Keeping the current bake
// time is always accepted.
func rescheduleTo(s *domain.ActiveSchedule, bake time.Time) error {
	if bake.IsZero() {
		return fmt.Errorf("%w: bake time is required", domain.ErrInvalidBakeTime)
	}
	bake = bake.UTC()
	origin := s.CreatedAt
	if s.StartedAt != nil {
		origin = *s.StartedAt
	}
	delta := bake.Sub(s.BakeTime())
	if delta != 0 && bake.Before(origin) {
		return fmt.Errorf("%w: %s is before the process started at %s", domain.ErrInvalidBakeTime,
			bake.Format(time.RFC3339), origin.Format(time.RFC3339))
	}
	for i := range s.Steps {
		if s.Steps[i].Status.Done() {
			continue
		}
		s.Steps[i].ScheduledTime = s.Steps[i].ScheduledTime.Add(delta)
		s.Steps[i].NotificationSent = false
	}
	s.AdjustedBakeTime = timePtr(bake)
	return nil
}
