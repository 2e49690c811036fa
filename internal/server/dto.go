package server

import (
	"time"

	"doughline/internal/config"
	"doughline/internal/domain"
	"doughline/internal/engine"
	"doughline/internal/tracker"
)

// Request payloads

type CreateScheduleRequest struct {
	BakeTime      time.Time                  `json:"bake_time" format:"date-time"`
	Method        domain.Method              `json:"method,omitempty" enum:"room-temperature,cold,mixed,same-day"`
	Notifications *NotificationSettingsInput `json:"notifications,omitempty"`
}

type NotificationSettingsInput struct {
	Enabled             bool   `json:"enabled"`
	PhoneRef            string `json:"phone_ref,omitempty"`
	ReminderLeadMinutes *int   `json:"reminder_lead_minutes,omitempty"`
}

type CommandRequest struct {
	Command         string            `json:"command" enum:"start,pause,resume,cancel,complete-step,skip-step,reschedule-to,reschedule-by,enable-notifications,disable-notifications"`
	Step            int               `json:"step,omitempty"`
	Status          domain.StepStatus `json:"status,omitempty" enum:"completed,completed-early,completed-late"`
	BakeTime        *time.Time        `json:"bake_time,omitempty" format:"date-time"`
	Minutes         int               `json:"minutes,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	LeadMinutes     *int              `json:"lead_minutes,omitempty"`
	ExpectedVersion int64             `json:"expected_version,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// Response payloads

type ScheduleResponse struct {
	domain.ActiveSchedule
	Progress engine.Progress `json:"progress"`
}

type FormulationList struct {
	Items []domain.FormulationRecord `json:"items"`
}

type ScheduleList struct {
	Items []ScheduleResponse `json:"items"`
}

type DueResponse struct {
	Items []domain.RuntimeStep `json:"items"`
}

type AttemptList struct {
	Items []domain.NotificationAttempt `json:"items"`
}

type StyleList struct {
	Items []domain.StyleSpec `json:"items"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type APIKeyResponse struct {
	domain.APIKey
	Key string `json:"key,omitempty"`
}

type APIKeyList struct {
	Items []domain.APIKey `json:"items"`
}

func scheduleResponse(e engine.Engine, s domain.ActiveSchedule) ScheduleResponse {
	if s.Steps == nil {
		s.Steps = []domain.RuntimeStep{}
	}
	return ScheduleResponse{ActiveSchedule: s, Progress: e.Progress(s)}
}

func (r NotificationSettingsInput) settings(cfg *config.Config) domain.NotificationSettings {
	lead := cfg.Defaults.ReminderLeadMinutes
	if r.ReminderLeadMinutes != nil {
		lead = *r.ReminderLeadMinutes
	}
	return domain.NotificationSettings{Enabled: r.Enabled, PhoneRef: r.PhoneRef, ReminderLeadMinutes: lead}
}

func (r CommandRequest) command(cfg *config.Config) tracker.Command {
	cmd := tracker.Command{
		Kind:    tracker.CommandKind(r.Command),
		Step:    r.Step,
		Status:  r.Status,
		Minutes: r.Minutes,
		Phone:   r.Phone,
	}
	if r.BakeTime != nil {
		cmd.BakeTime = *r.BakeTime
	}
	cmd.LeadMinutes = cfg.Defaults.ReminderLeadMinutes
	if r.LeadMinutes != nil {
		cmd.LeadMinutes = *r.LeadMinutes
	}
	return cmd
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
