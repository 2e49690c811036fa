package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"doughline/internal/domain"
)

type ScheduleFilters struct {
	OwnerID string
	Status  string
	Limit   int
}

const scheduleColumns = `id,owner_id,formulation_id,style,method,status,target_bake_time,adjusted_bake_time,
notifications_enabled,phone_ref,reminder_lead_minutes,created_at,started_at,paused_at,completed_at,cancelled_at,updated_at,version`

// InsertSchedule stores the schedule and its steps at s.Version.
func (r Repo) InsertSchedule(ctx context.Context, tx *sql.Tx, s domain.ActiveSchedule) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO schedules(`+scheduleColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.OwnerRef, nullable(s.FormulationRef), nullable(string(s.Style)), nullable(string(s.Method)), s.Status,
		formatTime(s.TargetBakeTime), nullableTime(s.AdjustedBakeTime),
		boolInt(s.Notifications.Enabled), nullable(s.Notifications.PhoneRef), s.Notifications.ReminderLeadMinutes,
		formatTime(s.CreatedAt), nullableTime(s.StartedAt), nullableTime(s.PausedAt), nullableTime(s.CompletedAt),
		nullableTime(s.CancelledAt), formatTime(s.UpdatedAt), s.Version)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	for _, st := range s.Steps {
		_, err := tx.ExecContext(ctx, `INSERT INTO schedule_steps(schedule_id,step_number,kind,title,scheduled_time,duration_minutes,temperature_c,status,actual_time,notification_sent)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
			s.ID, st.StepNumber, st.Kind, st.Title, formatTime(st.ScheduledTime), st.DurationMinutes,
			nullableFloatPtr(st.TemperatureC), st.Status, nullableTime(st.ActualTime), boolInt(st.NotificationSent))
		if err != nil {
			return fmt.Errorf("insert step %d: %w", st.StepNumber, err)
		}
	}
	return nil
}

// UpdateScheduleCAS writes s only if the stored version still equals
// expected, bumping it by one. A stale version yields ErrConcurrentModification.
func (r Repo) UpdateScheduleCAS(ctx context.Context, tx *sql.Tx, s domain.ActiveSchedule, expected int64) error {
	res, err := tx.ExecContext(ctx, `UPDATE schedules SET status=?, adjusted_bake_time=?, notifications_enabled=?, phone_ref=?, reminder_lead_minutes=?,
started_at=?, paused_at=?, completed_at=?, cancelled_at=?, updated_at=?, version=version+1 WHERE id=? AND version=?`,
		s.Status, nullableTime(s.AdjustedBakeTime), boolInt(s.Notifications.Enabled), nullable(s.Notifications.PhoneRef),
		s.Notifications.ReminderLeadMinutes, nullableTime(s.StartedAt), nullableTime(s.PausedAt), nullableTime(s.CompletedAt),
		nullableTime(s.CancelledAt), formatTime(s.UpdatedAt), s.ID, expected)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: schedule %s is no longer at version %d", domain.ErrConcurrentModification, s.ID, expected)
	}
	for _, st := range s.Steps {
		_, err := tx.ExecContext(ctx, `UPDATE schedule_steps SET scheduled_time=?, status=?, actual_time=?, notification_sent=? WHERE schedule_id=? AND step_number=?`,
			formatTime(st.ScheduledTime), st.Status, nullableTime(st.ActualTime), boolInt(st.NotificationSent), s.ID, st.StepNumber)
		if err != nil {
			return fmt.Errorf("update step %d: %w", st.StepNumber, err)
		}
	}
	return nil
}

func scanSchedule(row rowScanner) (domain.ActiveSchedule, error) {
	var s domain.ActiveSchedule
	var formulationID, style, method, adjusted, phone, started, paused, completed, cancelled sql.NullString
	var target, created, updated string
	var enabled int
	err := row.Scan(&s.ID, &s.OwnerRef, &formulationID, &style, &method, &s.Status, &target, &adjusted,
		&enabled, &phone, &s.Notifications.ReminderLeadMinutes, &created, &started, &paused, &completed, &cancelled, &updated, &s.Version)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.FormulationRef = formulationID.String
	s.Style = domain.Style(style.String)
	s.Method = domain.Method(method.String)
	s.Notifications.Enabled = enabled == 1
	s.Notifications.PhoneRef = phone.String
	if s.TargetBakeTime, err = parseTime(target); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updated); err != nil {
		return s, err
	}
	if s.AdjustedBakeTime, err = parseNullTime(adjusted); err != nil {
		return s, err
	}
	if s.StartedAt, err = parseNullTime(started); err != nil {
		return s, err
	}
	if s.PausedAt, err = parseNullTime(paused); err != nil {
		return s, err
	}
	if s.CompletedAt, err = parseNullTime(completed); err != nil {
		return s, err
	}
	if s.CancelledAt, err = parseNullTime(cancelled); err != nil {
		return s, err
	}
	return s, nil
}

func (r Repo) listSteps(ctx context.Context, q queryer, scheduleID string) ([]domain.RuntimeStep, error) {
	rows, err := q.QueryContext(ctx, `SELECT step_number,kind,title,scheduled_time,duration_minutes,temperature_c,status,actual_time,notification_sent
FROM schedule_steps WHERE schedule_id=? ORDER BY step_number`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var steps []domain.RuntimeStep
	for rows.Next() {
		var st domain.RuntimeStep
		var scheduled string
		var temp sql.NullFloat64
		var actual sql.NullString
		var sent int
		if err := rows.Scan(&st.StepNumber, &st.Kind, &st.Title, &scheduled, &st.DurationMinutes, &temp, &st.Status, &actual, &sent); err != nil {
			return nil, err
		}
		if st.ScheduledTime, err = parseTime(scheduled); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			st.TemperatureC = &v
		}
		if st.ActualTime, err = parseNullTime(actual); err != nil {
			return nil, err
		}
		st.NotificationSent = sent == 1
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (r Repo) getSchedule(ctx context.Context, q queryer, id string) (domain.ActiveSchedule, error) {
	s, err := scanSchedule(q.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id=?`, id))
	if err != nil {
		return s, err
	}
	s.Steps, err = r.listSteps(ctx, q, id)
	return s, err
}

func (r Repo) GetSchedule(ctx context.Context, id string) (domain.ActiveSchedule, error) {
	return r.getSchedule(ctx, r.DB, id)
}

func (r Repo) GetScheduleTx(ctx context.Context, tx *sql.Tx, id string) (domain.ActiveSchedule, error) {
	return r.getSchedule(ctx, tx, id)
}

// ListSchedules returns schedules with their steps, newest first.
func (r Repo) ListSchedules(ctx context.Context, f ScheduleFilters) ([]domain.ActiveSchedule, error) {
	var clauses []string
	var args []any
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedules ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.querySchedules(ctx, query, args...)
}

// ListNotifiable returns live schedules with notifications enabled across all owners.
func (r Repo) ListNotifiable(ctx context.Context, limit int) ([]domain.ActiveSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE notifications_enabled=1 AND status IN ('planning','in-progress') ORDER BY id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.querySchedules(ctx, query, args...)
}

func (r Repo) querySchedules(ctx context.Context, query string, args ...any) ([]domain.ActiveSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.ActiveSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Steps, err = r.listSteps(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}
