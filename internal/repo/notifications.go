package repo

import (
	"context"
	"database/sql"

	"doughline/internal/domain"
)

func (r Repo) InsertNotificationAttempt(ctx context.Context, tx *sql.Tx, a domain.NotificationAttempt) (int64, error) {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO notification_attempts(schedule_id,step_number,ts,success,error) VALUES (?,?,?,?,?)`,
		a.ScheduleID, a.StepNumber, a.TS, boolInt(a.Success), nullable(a.Error))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotificationAttempts returns attempts for a schedule in insertion order.
func (r Repo) ListNotificationAttempts(ctx context.Context, scheduleID string) ([]domain.NotificationAttempt, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,schedule_id,step_number,ts,success,COALESCE(error,'') FROM notification_attempts WHERE schedule_id=? ORDER BY id`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NotificationAttempt
	for rows.Next() {
		var a domain.NotificationAttempt
		var ok int
		if err := rows.Scan(&a.ID, &a.ScheduleID, &a.StepNumber, &a.TS, &ok, &a.Error); err != nil {
			return nil, err
		}
		a.Success = ok == 1
		res = append(res, a)
	}
	return res, rows.Err()
}
