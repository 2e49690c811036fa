package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"doughline/internal/config"
	"doughline/internal/domain"
	"doughline/internal/events"
	"doughline/internal/formulation"
	"doughline/internal/repo"
	"doughline/internal/schedule"
	"doughline/internal/tracker"
)

// NotifierActor is the actor recorded for reminder bookkeeping.
const NotifierActor = "notifier"

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Calc   formulation.Calculator
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default("local-user")
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Calc:   formulation.New(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// writer shares the engine clock with the event log.
func (e Engine) writer() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) tolerance() time.Duration {
	if e.Config == nil {
		return tracker.DefaultTolerance
	}
	return e.Config.Tolerance()
}

// owned hides records of other owners behind ErrNotFound. An empty owner sees everything.
func owned(owner, recordOwner string) error {
	if owner != "" && owner != recordOwner {
		return repo.ErrNotFound
	}
	return nil
}

// ComputeFormulation computes req and, when save is set, persists it with a
// formulation.computed event. Unsaved records have no ID.
func (e Engine) ComputeFormulation(ctx context.Context, owner string, req domain.FormulationRequest, save bool) (domain.FormulationRecord, error) {
	res, err := e.Calc.Compute(req)
	if err != nil {
		return domain.FormulationRecord{}, err
	}
	rec := domain.FormulationRecord{
		OwnerRef:  owner,
		Request:   req,
		Result:    res,
		CreatedAt: e.now().Format(time.RFC3339),
	}
	if !save {
		return rec, nil
	}
	if owner == "" {
		return domain.FormulationRecord{}, domain.ValidationError{Field: "owner", Msg: "required to save a formulation"}
	}
	rec.ID = uuid.NewString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.FormulationRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertFormulation(ctx, tx, rec); err != nil {
		return domain.FormulationRecord{}, fmt.Errorf("insert formulation: %w", err)
	}
	if err := e.writer().Append(ctx, tx, "formulation.computed", owner, events.KindFormulation, rec.ID, owner, events.EventPayload{
		"style":           res.Style,
		"method":          res.Method,
		"total_grams":     res.TotalDoughGrams,
		"preferment":      res.Preferment != nil,
		"fresh_yeast_pct": res.FreshYeastPct,
	}); err != nil {
		return domain.FormulationRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FormulationRecord{}, err
	}
	return rec, nil
}

func (e Engine) GetFormulation(ctx context.Context, owner, id string) (domain.FormulationRecord, error) {
	rec, err := e.Repo.GetFormulation(ctx, id)
	if err != nil {
		return rec, err
	}
	if err := owned(owner, rec.OwnerRef); err != nil {
		return domain.FormulationRecord{}, err
	}
	return rec, nil
}

func (e Engine) ListFormulations(ctx context.Context, owner string, limit int) ([]domain.FormulationRecord, error) {
	return e.Repo.ListFormulations(ctx, repo.FormulationFilters{OwnerID: owner, Limit: limit})
}

// ScheduleCreateOptions are parameters for creating an active schedule.
// Either FormulationID or Steps must be set.
type ScheduleCreateOptions struct {
	OwnerID       string
	FormulationID string
	Steps         []domain.ScheduleStep
	Style         domain.Style
	Method        domain.Method
	BakeTime      time.Time
	Notifications *domain.NotificationSettings
	ActorID       string
}

func (e Engine) CreateSchedule(ctx context.Context, opts ScheduleCreateOptions) (domain.ActiveSchedule, error) {
	if opts.OwnerID == "" {
		return domain.ActiveSchedule{}, domain.ValidationError{Field: "owner", Msg: "required"}
	}
	if opts.BakeTime.IsZero() {
		return domain.ActiveSchedule{}, fmt.Errorf("%w: bake time is required", domain.ErrInvalidBakeTime)
	}
	steps := opts.Steps
	style, method := opts.Style, opts.Method
	if opts.FormulationID != "" {
		rec, err := e.GetFormulation(ctx, opts.OwnerID, opts.FormulationID)
		if err != nil {
			return domain.ActiveSchedule{}, err
		}
		if method == "" {
			method = rec.Result.Method
		}
		style = rec.Result.Style
		steps, err = schedule.Generate(rec.Result, method, opts.BakeTime)
		if err != nil {
			return domain.ActiveSchedule{}, err
		}
	} else if len(steps) == 0 {
		return domain.ActiveSchedule{}, domain.ValidationError{Field: "steps", Msg: "a formulation id or explicit steps are required"}
	}

	notif := domain.NotificationSettings{ReminderLeadMinutes: e.Config.Defaults.ReminderLeadMinutes}
	if opts.Notifications != nil {
		notif = *opts.Notifications
	}
	now := e.now()
	s, err := tracker.New(steps, opts.BakeTime, notif, opts.OwnerID, now)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	s.ID = uuid.NewString()
	s.FormulationRef = opts.FormulationID
	s.Style = style
	s.Method = method
	s.Version = 1

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSchedule(ctx, tx, s); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := e.writer().Append(ctx, tx, "schedule.created", s.OwnerRef, events.KindSchedule, s.ID, opts.ActorID, events.EventPayload{
		"formulation_id":   opts.FormulationID,
		"target_bake_time": s.TargetBakeTime.Format(time.RFC3339),
		"steps":            len(s.Steps),
	}); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ActiveSchedule{}, err
	}
	return s, nil
}

func (e Engine) GetSchedule(ctx context.Context, owner, id string) (domain.ActiveSchedule, error) {
	s, err := e.Repo.GetSchedule(ctx, id)
	if err != nil {
		return s, err
	}
	if err := owned(owner, s.OwnerRef); err != nil {
		return domain.ActiveSchedule{}, err
	}
	return s, nil
}

func (e Engine) ListSchedules(ctx context.Context, owner string, status domain.ScheduleStatus, limit int) ([]domain.ActiveSchedule, error) {
	return e.Repo.ListSchedules(ctx, repo.ScheduleFilters{OwnerID: owner, Status: string(status), Limit: limit})
}

// TransitionOptions address one command at a schedule. ExpectedVersion 0
// applies the command to whatever version is current.
type TransitionOptions struct {
	ID              string
	OwnerID         string
	ExpectedVersion int64
	Command         tracker.Command
	ActorID         string
}

// Transition applies a command as a single compare-and-swap on the schedule
// version and records a schedule.<command> event.
func (e Engine) Transition(ctx context.Context, opts TransitionOptions) (domain.ActiveSchedule, error) {
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	defer tx.Rollback()

	cur, err := e.Repo.GetScheduleTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := owned(opts.OwnerID, cur.OwnerRef); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if opts.ExpectedVersion != 0 && opts.ExpectedVersion != cur.Version {
		return domain.ActiveSchedule{}, fmt.Errorf("%w: schedule %s is at version %d, not %d",
			domain.ErrConcurrentModification, cur.ID, cur.Version, opts.ExpectedVersion)
	}
	next, err := tracker.Apply(cur, opts.Command, now, e.tolerance())
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := e.Repo.UpdateScheduleCAS(ctx, tx, next, cur.Version); err != nil {
		return domain.ActiveSchedule{}, err
	}
	next.Version = cur.Version + 1

	payload := events.EventPayload{
		"from":    cur.Status,
		"to":      next.Status,
		"version": next.Version,
	}
	switch opts.Command.Kind {
	case tracker.CmdCompleteStep, tracker.CmdSkipStep:
		payload["step"] = opts.Command.Step
		for _, st := range next.Steps {
			if st.StepNumber == opts.Command.Step {
				payload["step_status"] = st.Status
			}
		}
	case tracker.CmdRescheduleTo, tracker.CmdRescheduleBy:
		payload["bake_time"] = next.BakeTime().Format(time.RFC3339)
	}
	if err := e.writer().Append(ctx, tx, "schedule."+string(opts.Command.Kind), cur.OwnerRef, events.KindSchedule, cur.ID, opts.ActorID, payload); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ActiveSchedule{}, err
	}
	return next, nil
}

// Reminder is one step due for a notification.
type Reminder struct {
	ScheduleID string
	OwnerRef   string
	PhoneRef   string
	Step       domain.RuntimeStep
}

// DueNotifications collects due reminders across every owner's live schedules.
func (e Engine) DueNotifications(ctx context.Context, now time.Time, limit int) ([]Reminder, error) {
	schedules, err := e.Repo.ListNotifiable(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []Reminder
	for _, s := range schedules {
		for _, st := range tracker.DueNotifications(s, now) {
			out = append(out, Reminder{ScheduleID: s.ID, OwnerRef: s.OwnerRef, PhoneRef: s.Notifications.PhoneRef, Step: st})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ScheduleDue lists the due reminders of a single schedule.
func (e Engine) ScheduleDue(ctx context.Context, owner, id string) ([]domain.RuntimeStep, error) {
	s, err := e.GetSchedule(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	return tracker.DueNotifications(s, e.now()), nil
}

const markNotifiedAttempts = 3

// MarkNotified flags a step as notified. It retries when a user command
// bumps the version in between.
func (e Engine) MarkNotified(ctx context.Context, scheduleID string, step int) (domain.ActiveSchedule, error) {
	var lastErr error
	for i := 0; i < markNotifiedAttempts; i++ {
		s, err := e.markNotifiedOnce(ctx, scheduleID, step)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return domain.ActiveSchedule{}, err
		}
		lastErr = err
	}
	return domain.ActiveSchedule{}, lastErr
}

func (e Engine) markNotifiedOnce(ctx context.Context, scheduleID string, step int) (domain.ActiveSchedule, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	defer tx.Rollback()
	cur, err := e.Repo.GetScheduleTx(ctx, tx, scheduleID)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	next, err := tracker.MarkNotified(cur, step)
	if err != nil {
		return domain.ActiveSchedule{}, err
	}
	next.UpdatedAt = e.now()
	if err := e.Repo.UpdateScheduleCAS(ctx, tx, next, cur.Version); err != nil {
		return domain.ActiveSchedule{}, err
	}
	next.Version = cur.Version + 1
	if err := e.writer().Append(ctx, tx, "schedule.notified", cur.OwnerRef, events.KindSchedule, cur.ID, NotifierActor, events.EventPayload{
		"step":    step,
		"version": next.Version,
	}); err != nil {
		return domain.ActiveSchedule{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ActiveSchedule{}, err
	}
	return next, nil
}

// RecordNotificationAttempt stores the outcome of one delivery.
func (e Engine) RecordNotificationAttempt(ctx context.Context, scheduleID string, step int, sendErr error) (domain.NotificationAttempt, error) {
	a := domain.NotificationAttempt{
		ScheduleID: scheduleID,
		StepNumber: step,
		TS:         e.now().Format(time.RFC3339),
		Success:    sendErr == nil,
	}
	if sendErr != nil {
		a.Error = sendErr.Error()
	}
	id, err := e.Repo.InsertNotificationAttempt(ctx, nil, a)
	if err != nil {
		return a, fmt.Errorf("record notification attempt: %w", err)
	}
	a.ID = id
	return a, nil
}

func (e Engine) NotificationAttempts(ctx context.Context, owner, scheduleID string) ([]domain.NotificationAttempt, error) {
	if _, err := e.GetSchedule(ctx, owner, scheduleID); err != nil {
		return nil, err
	}
	return e.Repo.ListNotificationAttempts(ctx, scheduleID)
}

// ScheduleEvents returns the schedule's event history, newest first.
func (e Engine) ScheduleEvents(ctx context.Context, owner, id string, limit int) ([]domain.Event, error) {
	if _, err := e.GetSchedule(ctx, owner, id); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, repo.EventFilters{EntityKind: events.KindSchedule, EntityID: id, Limit: limit})
}

// Progress summarizes a schedule at the engine clock.
type Progress struct {
	CompletionPct     int                 `json:"completion_pct"`
	NextStep          *domain.RuntimeStep `json:"next_step,omitempty"`
	MinutesToNextStep *int                `json:"minutes_to_next_step,omitempty"`
}

func (e Engine) Progress(s domain.ActiveSchedule) Progress {
	now := e.now()
	p := Progress{CompletionPct: tracker.CompletionPercentage(s), MinutesToNextStep: tracker.MinutesToNextStep(s, now)}
	if st, ok := tracker.NextPendingStep(s); ok {
		p.NextStep = &st
	}
	return p
}

const apiKeyPrefix = "dl_"

// CreateAPIKey issues a key for owner and returns it with its raw secret.
// Only the hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, owner, name string) (domain.APIKey, string, error) {
	if owner == "" {
		return domain.APIKey{}, "", domain.ValidationError{Field: "owner", Msg: "required"}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		OwnerRef:  owner,
		Name:      name,
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.now().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.writer().Append(ctx, tx, "api_key.created", owner, events.KindAPIKey, key.ID, owner, events.EventPayload{"name": name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, raw, nil
}

// ListAPIKeys returns the owner's keys.
func (e Engine) ListAPIKeys(ctx context.Context, owner string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, owner)
}

// RevokeAPIKey deletes one of the owner's keys.
func (e Engine) RevokeAPIKey(ctx context.Context, owner, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, owner, id); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, "api_key.revoked", owner, events.KindAPIKey, id, owner, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListEvents lists the owner's events newest first.
func (e Engine) ListEvents(ctx context.Context, owner string, f repo.EventFilters) ([]domain.Event, error) {
	if owner == "" {
		return nil, domain.ValidationError{Field: "owner", Msg: "required"}
	}
	f.OwnerID = owner
	return e.Repo.LatestEvents(ctx, f)
}

// EventsAfter lists the owner's events past cursor, oldest first, for tailing.
func (e Engine) EventsAfter(ctx context.Context, owner string, cursor int64, limit int) ([]domain.Event, error) {
	return e.Repo.EventsAfter(ctx, limit, cursor, owner)
}
