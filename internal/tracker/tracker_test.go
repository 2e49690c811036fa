package tracker

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"doughline/internal/domain"
	"doughline/internal/schedule"
)

var (
	t0   = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	bake = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
)

func newSchedule(t *testing.T) domain.ActiveSchedule {
	t.Helper()
	res := domain.FormulationResult{
		Style:             domain.StyleNeapolitan,
		Method:            domain.MethodRoomTemperature,
		NumberOfUnits:     4,
		BallWeightGrams:   250,
		FermentationHours: 8,
		RoomTempC:         22,
		Percentages:       domain.BakersPercentages{Flour: 100, Water: 65},
	}
	steps, err := schedule.Generate(res, "", bake)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s, err := New(steps, bake, domain.NotificationSettings{Enabled: true, PhoneRef: "+15550100", ReminderLeadMinutes: 10}, "owner-1", t0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func mustApply(t *testing.T, s domain.ActiveSchedule, cmd Command, now time.Time) domain.ActiveSchedule {
	t.Helper()
	out, err := Apply(s, cmd, now, DefaultTolerance)
	if err != nil {
		t.Fatalf("%s: %v", cmd.Kind, err)
	}
	return out
}

func times(s domain.ActiveSchedule) []time.Time {
	out := make([]time.Time, len(s.Steps))
	for i, st := range s.Steps {
		out[i] = st.ScheduledTime
	}
	return out
}

func TestStatusTransitions(t *testing.T) {
	s := newSchedule(t)
	if s.Status != domain.SchedulePlanning {
		t.Fatalf("status %s", s.Status)
	}
	if _, err := Apply(s, Command{Kind: CmdPause}, t0, DefaultTolerance); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pause from planning: %v", err)
	}
	s = mustApply(t, s, Command{Kind: CmdStart}, t0)
	if s.Status != domain.ScheduleInProgress || s.StartedAt == nil || s.Steps[0].Status != domain.StepInProgress {
		t.Fatalf("after start %+v", s)
	}
	if _, err := Apply(s, Command{Kind: CmdStart}, t0, DefaultTolerance); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double start: %v", err)
	}
	s = mustApply(t, s, Command{Kind: CmdPause}, t0.Add(time.Minute))
	if s.Status != domain.SchedulePaused || s.PausedAt == nil {
		t.Fatalf("after pause %+v", s)
	}
	if _, err := Apply(s, Command{Kind: CmdCompleteStep, Step: 1}, t0, DefaultTolerance); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("complete while paused: %v", err)
	}
	s = mustApply(t, s, Command{Kind: CmdResume}, t0.Add(2*time.Minute))
	if s.Status != domain.ScheduleInProgress || s.PausedAt != nil {
		t.Fatalf("after resume %+v", s)
	}
	s = mustApply(t, s, Command{Kind: CmdCancel}, t0.Add(3*time.Minute))
	if s.Status != domain.ScheduleCancelled || s.CancelledAt == nil {
		t.Fatalf("after cancel %+v", s)
	}
	for _, k := range Commands() {
		out, err := Apply(s, Command{Kind: k, Step: 2, Minutes: 5, Phone: "x"}, t0, DefaultTolerance)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s on cancelled: %v", k, err)
		}
		if !reflect.DeepEqual(out, s) {
			t.Fatalf("%s changed a cancelled schedule", k)
		}
	}
}

func TestCompletionClassification(t *testing.T) {
	sched := t0
	cases := []struct {
		at   time.Time
		want domain.StepStatus
	}{
		{sched, domain.StepCompleted},
		{sched.Add(5 * time.Minute), domain.StepCompleted},
		{sched.Add(-5 * time.Minute), domain.StepCompleted},
		{sched.Add(-6 * time.Minute), domain.StepCompletedEarly},
		{sched.Add(6 * time.Minute), domain.StepCompletedLate},
	}
	for _, c := range cases {
		if got := CompletionStatus(sched, c.at, DefaultTolerance); got != c.want {
			t.Fatalf("at %v: %s, want %s", c.at.Sub(sched), got, c.want)
		}
	}
}

func TestCompleteStepAndOverride(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	first := s.Steps[0].ScheduledTime
	s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: 1}, first.Add(30*time.Minute))
	if s.Steps[0].Status != domain.StepCompletedLate || s.Steps[0].ActualTime == nil {
		t.Fatalf("step 1 %+v", s.Steps[0])
	}
	if s.Steps[1].Status != domain.StepInProgress {
		t.Fatalf("step 2 should be in progress, got %s", s.Steps[1].Status)
	}
	s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: 2, Status: domain.StepCompleted}, first.Add(5*time.Hour))
	if s.Steps[1].Status != domain.StepCompleted {
		t.Fatalf("override ignored: %s", s.Steps[1].Status)
	}
	if _, err := Apply(s, Command{Kind: CmdCompleteStep, Step: 3, Status: domain.StepSkipped}, first, DefaultTolerance); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("skipped is not a completion status: %v", err)
	}
	if _, err := Apply(s, Command{Kind: CmdCompleteStep, Step: 99}, first, DefaultTolerance); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown step: %v", err)
	}
}

func TestCompletePendingStepOutOfOrder(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: 3}, s.Steps[2].ScheduledTime)
	if !s.Steps[2].Status.Done() || s.Steps[0].Status != domain.StepInProgress || s.Steps[1].Status != domain.StepPending {
		t.Fatalf("statuses %s %s %s", s.Steps[0].Status, s.Steps[1].Status, s.Steps[2].Status)
	}
}

func TestCompletingCompletedStepRejected(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: 1}, s.Steps[0].ScheduledTime)
	out, err := Apply(s, Command{Kind: CmdCompleteStep, Step: 1}, s.Steps[0].ScheduledTime.Add(time.Minute), DefaultTolerance)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !reflect.DeepEqual(out, s) {
		t.Fatalf("state changed on rejected completion")
	}
	if _, err := Apply(s, Command{Kind: CmdSkipStep, Step: 1}, t0, DefaultTolerance); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("skip of a completed step: %v", err)
	}
}

func TestFinishingAllStepsCompletesSchedule(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	n := len(s.Steps)
	for i := 1; i <= n; i++ {
		kind := CmdCompleteStep
		if i%2 == 0 {
			kind = CmdSkipStep
		}
		s = mustApply(t, s, Command{Kind: kind, Step: i}, s.Steps[i-1].ScheduledTime)
		if i < n && CompletionPercentage(s) != i*100/n {
			t.Fatalf("after %d: %d%%", i, CompletionPercentage(s))
		}
	}
	if s.Status != domain.ScheduleCompleted || s.CompletedAt == nil {
		t.Fatalf("status %s", s.Status)
	}
	if CompletionPercentage(s) != 100 {
		t.Fatalf("completion %d", CompletionPercentage(s))
	}
	if _, ok := NextPendingStep(s); ok {
		t.Fatalf("no step should be pending")
	}
	if MinutesToNextStep(s, t0) != nil {
		t.Fatalf("minutes to next should be nil")
	}
	// completed schedules reject cancel
	if _, err := Apply(s, Command{Kind: CmdCancel}, t0, DefaultTolerance); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel of completed: %v", err)
	}
}

func TestRescheduleShiftsLiveSteps(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: 1}, s.Steps[0].ScheduledTime)
	s, _ = MarkNotified(s, 3)
	before := times(s)
	actual := *s.Steps[0].ActualTime

	s = mustApply(t, s, Command{Kind: CmdRescheduleBy, Minutes: 120}, t0.Add(time.Hour))
	after := times(s)
	if !after[0].Equal(before[0]) || !s.Steps[0].ActualTime.Equal(actual) {
		t.Fatalf("completed step moved")
	}
	for i := 1; i < len(after); i++ {
		if after[i].Sub(before[i]) != 120*time.Minute {
			t.Fatalf("step %d shifted by %v", i+1, after[i].Sub(before[i]))
		}
	}
	if s.Steps[2].NotificationSent {
		t.Fatalf("reschedule should reset the notification flag")
	}
	if s.AdjustedBakeTime == nil || !s.AdjustedBakeTime.Equal(bake.Add(2*time.Hour)) {
		t.Fatalf("adjusted bake %v", s.AdjustedBakeTime)
	}
	if !s.TargetBakeTime.Equal(bake) {
		t.Fatalf("target bake time changed")
	}

	s = mustApply(t, s, Command{Kind: CmdRescheduleTo, BakeTime: bake}, t0.Add(time.Hour))
	restored := times(s)
	for i := range restored {
		if !restored[i].Equal(before[i]) {
			t.Fatalf("step %d not restored", i+1)
		}
	}
}

func TestRescheduleByZeroIsIdentity(t *testing.T) {
	s := newSchedule(t)
	out := mustApply(t, s, Command{Kind: CmdRescheduleBy, Minutes: 0}, t0)
	if !reflect.DeepEqual(times(out), times(s)) {
		t.Fatalf("times changed")
	}
}

func TestRescheduleByZeroOnPastTarget(t *testing.T) {
	steps, err := schedule.Generate(domain.FormulationResult{
		Style:             domain.StyleNeapolitan,
		Method:            domain.MethodRoomTemperature,
		NumberOfUnits:     4,
		BallWeightGrams:   250,
		FermentationHours: 8,
		RoomTempC:         22,
		Percentages:       domain.BakersPercentages{Flour: 100, Water: 65},
	}, "", bake)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	late := bake.Add(time.Hour)
	s, err := New(steps, bake, domain.NotificationSettings{}, "owner-1", late)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out := mustApply(t, s, Command{Kind: CmdRescheduleBy, Minutes: 0}, late)
	if !reflect.DeepEqual(times(out), times(s)) {
		t.Fatalf("times changed")
	}
	if _, err := Apply(s, Command{Kind: CmdRescheduleBy, Minutes: 10}, late, DefaultTolerance); !errors.Is(err, domain.ErrInvalidBakeTime) {
		t.Fatalf("moving to a time still before creation: %v", err)
	}
}

func TestRescheduleBeforeStartRejected(t *testing.T) {
	s := mustApply(t, newSchedule(t), Command{Kind: CmdStart}, t0)
	out, err := Apply(s, Command{Kind: CmdRescheduleTo, BakeTime: t0.Add(-time.Minute)}, t0, DefaultTolerance)
	if !errors.Is(err, domain.ErrInvalidBakeTime) {
		t.Fatalf("expected ErrInvalidBakeTime, got %v", err)
	}
	if !reflect.DeepEqual(out, s) {
		t.Fatalf("state changed")
	}
}

func TestDueNotifications(t *testing.T) {
	s := newSchedule(t)
	third := s.Steps[2].ScheduledTime
	due := DueNotifications(s, third.Add(-10*time.Minute))
	if len(due) != 3 || due[2].StepNumber != 3 {
		t.Fatalf("due %v", due)
	}
	if got := DueNotifications(s, third.Add(-11*time.Minute)); len(got) != 2 {
		t.Fatalf("expected two steps before the reminder window, got %d", len(got))
	}
	s, err := MarkNotified(s, 1)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got := DueNotifications(s, third.Add(-10*time.Minute)); len(got) != 2 || got[0].StepNumber != 2 {
		t.Fatalf("notified step still due: %v", got)
	}
	if _, err := MarkNotified(s, 42); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown step: %v", err)
	}

	off := mustApply(t, s, Command{Kind: CmdDisableNotifications}, t0)
	if len(DueNotifications(off, bake)) != 0 {
		t.Fatalf("disabled schedules have nothing due")
	}
	on := mustApply(t, off, Command{Kind: CmdEnableNotifications, Phone: "+15550199", LeadMinutes: 30}, t0)
	if !on.Notifications.Enabled || on.Notifications.PhoneRef != "+15550199" || on.Notifications.ReminderLeadMinutes != 30 {
		t.Fatalf("notifications %+v", on.Notifications)
	}
	if _, err := Apply(off, Command{Kind: CmdEnableNotifications}, t0, DefaultTolerance); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing phone: %v", err)
	}
}

func TestDueIncludesCurrentStep(t *testing.T) {
	res := domain.FormulationResult{
		Style:             domain.StyleNeapolitan,
		Method:            domain.MethodCold,
		NumberOfUnits:     4,
		BallWeightGrams:   250,
		FermentationHours: 24,
		RoomTempC:         22,
		FridgeTempC:       4,
		Percentages:       domain.BakersPercentages{Flour: 100, Water: 65},
	}
	coldBake := t0.Add(30 * time.Hour)
	steps, err := schedule.Generate(res, "", coldBake)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	s, err := New(steps, coldBake, domain.NotificationSettings{Enabled: true, PhoneRef: "+15550100", ReminderLeadMinutes: 15}, "owner-1", t0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s = mustApply(t, s, Command{Kind: CmdStart}, t0)
	remove := -1
	for i, st := range s.Steps {
		if st.Kind == domain.StepRemoveFridge {
			remove = i
			break
		}
		s = mustApply(t, s, Command{Kind: CmdCompleteStep, Step: st.StepNumber}, st.ScheduledTime)
	}
	if remove < 0 {
		t.Fatalf("cold schedule has no remove-from-fridge step")
	}
	current := s.Steps[remove]
	if current.Status != domain.StepInProgress {
		t.Fatalf("step %d status %s", current.StepNumber, current.Status)
	}

	due := DueNotifications(s, current.ScheduledTime.Add(-10*time.Minute))
	if len(due) == 0 || due[0].StepNumber != current.StepNumber {
		t.Fatalf("in-progress step not due: %v", due)
	}
	s, _ = MarkNotified(s, current.StepNumber)
	for _, st := range DueNotifications(s, current.ScheduledTime.Add(-10*time.Minute)) {
		if st.StepNumber == current.StepNumber {
			t.Fatalf("notified step still due")
		}
	}
}

func TestDueSkipsLongOverdueSteps(t *testing.T) {
	s := newSchedule(t)
	third := s.Steps[2].ScheduledTime
	due := DueNotifications(s, third.Add(OverdueWindow))
	if len(due) != 1 || due[0].StepNumber != 3 {
		t.Fatalf("due at the edge of the window: %v", due)
	}
	if got := DueNotifications(s, third.Add(OverdueWindow+time.Minute)); len(got) != 0 {
		t.Fatalf("overdue steps still due: %v", got)
	}
}

func TestMinutesToNextStep(t *testing.T) {
	s := newSchedule(t)
	first := s.Steps[0].ScheduledTime
	m := MinutesToNextStep(s, first.Add(-90*time.Minute))
	if m == nil || *m != 90 {
		t.Fatalf("minutes %v", m)
	}
	m = MinutesToNextStep(s, first.Add(30*time.Second))
	if m == nil || *m != -1 {
		t.Fatalf("overdue minutes %v", m)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	steps := []domain.ScheduleStep{{StepNumber: 1, ScheduledTime: bake}}
	if _, err := New(steps, time.Time{}, domain.NotificationSettings{}, "o", t0); !errors.Is(err, domain.ErrInvalidBakeTime) {
		t.Fatalf("zero bake: %v", err)
	}
	if _, err := New(nil, bake, domain.NotificationSettings{}, "o", t0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("no steps: %v", err)
	}
	if _, err := New(steps, bake, domain.NotificationSettings{Enabled: true}, "o", t0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("no phone: %v", err)
	}
}
