package doughlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Doughline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// FormulationRequest holds the inputs of a formulation. Zero fields take the
// server's style and workspace defaults.
type FormulationRequest struct {
	Style                  string      `json:"style,omitempty"`
	BallWeightGrams        float64     `json:"ball_weight_grams,omitempty"`
	NumberOfUnits          int         `json:"number_of_units,omitempty"`
	HydrationPct           float64     `json:"hydration_pct,omitempty"`
	SaltPct                float64     `json:"salt_pct,omitempty"`
	OilPct                 float64     `json:"oil_pct,omitempty"`
	SugarPct               float64     `json:"sugar_pct,omitempty"`
	YeastKind              string      `json:"yeast_kind,omitempty"`
	Method                 string      `json:"method,omitempty"`
	TotalFermentationHours int         `json:"total_fermentation_hours,omitempty"`
	RoomTempC              float64     `json:"room_temp_c,omitempty"`
	FridgeTempC            float64     `json:"fridge_temp_c,omitempty"`
	MixerType              string      `json:"mixer_type,omitempty"`
	FlourTempC             *float64    `json:"flour_temp_c,omitempty"`
	Preferment             *Preferment `json:"preferment,omitempty"`
	StarterGrams           *float64    `json:"starter_grams,omitempty"`
	YeastPctOverride       *float64    `json:"yeast_pct_override,omitempty"`
	FlourBlend             []FlourPart `json:"flour_blend,omitempty"`
}

// FlourPart is one flour of a blend.
type FlourPart struct {
	Name       string   `json:"name"`
	Pct        float64  `json:"pct"`
	StrengthW  *float64 `json:"strength_w,omitempty"`
	ProteinPct *float64 `json:"protein_pct,omitempty"`
}

type Preferment struct {
	Type  string   `json:"type"`
	Pct   *float64 `json:"pct,omitempty"`
	Hours *int     `json:"hours,omitempty"`
}

// Ingredients are absolute masses in grams.
type Ingredients struct {
	Flour float64 `json:"flour"`
	Water float64 `json:"water"`
	Salt  float64 `json:"salt"`
	Yeast float64 `json:"yeast"`
	Oil   float64 `json:"oil"`
	Sugar float64 `json:"sugar"`
}

// Formulation represents the API formulation model (partial).
type Formulation struct {
	ID     string `json:"id"`
	Result struct {
		Style           string      `json:"style"`
		Method          string      `json:"method"`
		TotalDoughGrams float64     `json:"total_dough_grams"`
		Ingredients     Ingredients `json:"ingredients"`
		Warnings        []string    `json:"warnings"`
	} `json:"result"`
}

type Step struct {
	StepNumber       int        `json:"step_number"`
	Kind             string     `json:"kind"`
	Title            string     `json:"title"`
	ScheduledTime    time.Time  `json:"scheduled_time"`
	DurationMinutes  int        `json:"duration_minutes"`
	Status           string     `json:"status"`
	ActualTime       *time.Time `json:"actual_time,omitempty"`
	NotificationSent bool       `json:"notification_sent"`
}

type Notifications struct {
	Enabled             bool   `json:"enabled"`
	PhoneRef            string `json:"phone_ref,omitempty"`
	ReminderLeadMinutes *int   `json:"reminder_lead_minutes,omitempty"`
}

type Progress struct {
	CompletionPct     int   `json:"completion_pct"`
	NextStep          *Step `json:"next_step,omitempty"`
	MinutesToNextStep *int  `json:"minutes_to_next_step,omitempty"`
}

// Schedule represents a live schedule and its progress.
type Schedule struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	TargetBakeTime   time.Time  `json:"target_bake_time"`
	AdjustedBakeTime *time.Time `json:"adjusted_bake_time,omitempty"`
	Steps            []Step     `json:"steps"`
	Version          int64      `json:"version"`
	Progress         Progress   `json:"progress"`
}

// Command is one schedule transition.
type Command struct {
	Command         string     `json:"command"`
	Step            int        `json:"step,omitempty"`
	Status          string     `json:"status,omitempty"`
	BakeTime        *time.Time `json:"bake_time,omitempty"`
	Minutes         int        `json:"minutes,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	LeadMinutes     *int       `json:"lead_minutes,omitempty"`
	ExpectedVersion int64      `json:"expected_version,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsConflict reports a stale expected_version or a rejected transition.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// ComputeFormulation computes and stores a formulation.
func (c *Client) ComputeFormulation(ctx context.Context, req FormulationRequest) (Formulation, error) {
	var resp Formulation
	err := c.do(ctx, http.MethodPost, "formulations", req, &resp)
	return resp, err
}

func (c *Client) GetFormulation(ctx context.Context, id string) (Formulation, error) {
	var resp Formulation
	err := c.do(ctx, http.MethodGet, "formulations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateSchedule lays out a formulation backward from bake.
func (c *Client) CreateSchedule(ctx context.Context, formulationID string, bake time.Time, n *Notifications) (Schedule, error) {
	body := map[string]any{"bake_time": bake.Format(time.RFC3339)}
	if n != nil {
		body["notifications"] = n
	}
	var resp Schedule
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("formulations/%s/schedules", url.PathEscape(formulationID)), body, &resp)
	return resp, err
}

func (c *Client) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	var resp Schedule
	err := c.do(ctx, http.MethodGet, "schedules/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Apply sends a command to a schedule.
func (c *Client) Apply(ctx context.Context, id string, cmd Command) (Schedule, error) {
	var resp Schedule
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("schedules/%s/commands", url.PathEscape(id)), cmd, &resp)
	return resp, err
}

func (c *Client) Start(ctx context.Context, id string) (Schedule, error) {
	return c.Apply(ctx, id, Command{Command: "start"})
}

func (c *Client) CompleteStep(ctx context.Context, id string, step int) (Schedule, error) {
	return c.Apply(ctx, id, Command{Command: "complete-step", Step: step})
}

func (c *Client) RescheduleBy(ctx context.Context, id string, minutes int) (Schedule, error) {
	return c.Apply(ctx, id, Command{Command: "reschedule-by", Minutes: minutes})
}

// Due returns the steps whose reminder is due.
func (c *Client) Due(ctx context.Context, id string) ([]Step, error) {
	var resp struct {
		Items []Step `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("schedules/%s/due", url.PathEscape(id)), nil, &resp)
	return resp.Items, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, "events", limit, "")
	return page.Items, err
}

// ScheduleEvents returns a schedule's history, newest first.
func (c *Client) ScheduleEvents(ctx context.Context, id string, limit int, cursor string) (PaginatedEvents, error) {
	return c.EventsPage(ctx, fmt.Sprintf("schedules/%s/events", url.PathEscape(id)), limit, cursor)
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, endpoint string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
