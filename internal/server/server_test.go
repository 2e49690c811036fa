package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"doughline/internal/config"
	"doughline/internal/db"
	"doughline/internal/domain"
	"doughline/internal/engine"
	"doughline/internal/migrate"
)

const testSecret = "test-secret"

var clock = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("baker"))
	e.Now = func() time.Time { return clock }
	quiet := log.New(io.Discard)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyOwnerHeader: true, Logger: quiet},
		Logger:   quiet,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func as(owner string) map[string]string {
	return map[string]string{"X-Owner-Id": owner}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error.Code
}

func createFormulation(t *testing.T, srv *testServer, owner string) domain.FormulationRecord {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/formulations", map[string]any{
		"style":           "neapolitan",
		"number_of_units": 4,
	}, as(owner))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("compute status %d: %s", res.StatusCode, string(data))
	}
	var rec domain.FormulationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal formulation: %v", err)
	}
	return rec
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected invalid credentials, got %d %s", res.StatusCode, string(data))
	}
}

func TestJWTAndAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	token, err := SignToken(testSecret, "baker", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/api-keys", map[string]any{"name": "kitchen tablet"}, bearer)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key status %d: %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if key.Key == "" || key.OwnerRef != "baker" {
		t.Fatalf("unexpected key %+v", key)
	}

	rec := createFormulation(t, srv, "baker")
	withKey := map[string]string{"X-Api-Key": key.Key}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/formulations/"+rec.ID, nil, withKey)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get with api key status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/api-keys/"+key.ID, nil, bearer)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/formulations/"+rec.ID, nil, withKey)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key still accepted: %d", res.StatusCode)
	}
}

func TestComputeFormulation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	rec := createFormulation(t, srv, "baker")
	if rec.Request.HydrationPct != 65 || rec.Request.BallWeightGrams != 250 || rec.Request.RoomTempC != 22 {
		t.Fatalf("defaults not applied: %+v", rec.Request)
	}
	if got := rec.Result.Ingredients.Sum(); math.Abs(got-1000) > 0.5 {
		t.Fatalf("mass sum %.2f, want 1000", got)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/formulations/"+rec.ID, nil, as("intruder"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("other owner saw formulation: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/formulations?dry_run=true", map[string]any{"style": "focaccia"}, as("baker"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("dry run status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/formulations", nil, as("baker"))
	var list FormulationList
	if err := json.Unmarshal(data, &list); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %v", res.StatusCode, err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("dry run was stored: %d formulations", len(list.Items))
	}
}

func TestFormulationErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"hydration out of range", map[string]any{"hydration_pct": 30}, http.StatusBadRequest, "bad_request"},
		{"unknown yeast", map[string]any{"yeast_kind": "magic"}, http.StatusBadRequest, "bad_request"},
		{"preferment larger than flour allows", map[string]any{
			"hydration_pct": 50,
			"preferment":    map[string]any{"type": "poolish", "pct": 90, "hours": 12},
		}, http.StatusUnprocessableEntity, "domain_rule_violation"},
		{"sourdough without starter", map[string]any{"yeast_kind": "sourdough"}, http.StatusUnprocessableEntity, "domain_rule_violation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/formulations", tc.body, as("baker"))
			if res.StatusCode != tc.status {
				t.Fatalf("status %d, want %d: %s", res.StatusCode, tc.status, string(data))
			}
			if code := errorCode(t, data); code != tc.code {
				t.Fatalf("code %q, want %q", code, tc.code)
			}
		})
	}
}

func TestScheduleLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	rec := createFormulation(t, srv, "baker")

	bake := clock.Add(12 * time.Hour)
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/formulations/"+rec.ID+"/schedules", map[string]any{
		"bake_time":     bake.Format(time.RFC3339),
		"notifications": map[string]any{"enabled": true, "phone_ref": "+15550100"},
	}, as("baker"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create schedule status %d: %s", res.StatusCode, string(data))
	}
	var s ScheduleResponse
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal schedule: %v", err)
	}
	if s.Status != domain.SchedulePlanning || s.Version != 1 || len(s.Steps) == 0 {
		t.Fatalf("unexpected schedule %+v", s.ActiveSchedule)
	}
	if !s.Steps[len(s.Steps)-1].ScheduledTime.Equal(bake) {
		t.Fatalf("bake step at %s, want %s", s.Steps[len(s.Steps)-1].ScheduledTime, bake)
	}
	if s.Notifications.ReminderLeadMinutes != 15 {
		t.Fatalf("default lead not applied: %+v", s.Notifications)
	}

	command := func(body map[string]any) (int, []byte) {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedules/"+s.ID+"/commands", body, as("baker"))
		return res.StatusCode, data
	}
	if code, data := command(map[string]any{"command": "start"}); code != http.StatusOK {
		t.Fatalf("start: %d %s", code, string(data))
	}
	code, data := command(map[string]any{"command": "pause", "expected_version": 1})
	if code != http.StatusConflict || errorCode(t, data) != "conflict" {
		t.Fatalf("stale version: %d %s", code, string(data))
	}
	if code, data := command(map[string]any{"command": "pause", "expected_version": 2}); code != http.StatusOK {
		t.Fatalf("pause: %d %s", code, string(data))
	}
	code, data = command(map[string]any{"command": "complete-step", "step": 1})
	if code != http.StatusConflict || errorCode(t, data) != "invalid_transition" {
		t.Fatalf("complete while paused: %d %s", code, string(data))
	}
	if code, data := command(map[string]any{"command": "resume"}); code != http.StatusOK {
		t.Fatalf("resume: %d %s", code, string(data))
	}
	code, data = command(map[string]any{"command": "complete-step", "step": 1})
	if code != http.StatusOK {
		t.Fatalf("complete: %d %s", code, string(data))
	}
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Version != 5 || !s.Steps[0].Status.Done() {
		t.Fatalf("unexpected state after completion: version %d step %s", s.Version, s.Steps[0].Status)
	}
	if s.Progress.CompletionPct <= 0 || s.Progress.NextStep == nil || s.Progress.NextStep.StepNumber != 2 {
		t.Fatalf("progress %+v", s.Progress)
	}

	code, data = command(map[string]any{"command": "fly"})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown command: %d %s", code, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules/"+s.ID+"/events?limit=2", nil, as("baker"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Type != "schedule.complete-step" || page.NextCursor == "" {
		t.Fatalf("first page %+v", page)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules/"+s.ID+"/events?cursor="+page.NextCursor, nil, as("baker"))
	var rest paginatedEvents
	if err := json.Unmarshal(data, &rest); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("second page: %d %v", res.StatusCode, err)
	}
	if len(rest.Items) != 3 || rest.Items[2].Type != "schedule.created" || rest.NextCursor != "" {
		t.Fatalf("second page %+v", rest)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules/"+s.ID, nil, as("intruder"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("other owner saw schedule: %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedules/"+s.ID+"/commands", map[string]any{"command": "cancel"}, as("intruder"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("other owner cancelled schedule: %d", res.StatusCode)
	}
}

func TestRescheduleAndDue(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	rec := createFormulation(t, srv, "baker")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/formulations/"+rec.ID+"/schedules", map[string]any{
		"bake_time":     clock.Add(8 * time.Hour).Format(time.RFC3339),
		"notifications": map[string]any{"enabled": true, "phone_ref": "+15550100", "reminder_lead_minutes": 60},
	}, as("baker"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create schedule: %d %s", res.StatusCode, string(data))
	}
	var s ScheduleResponse
	_ = json.Unmarshal(data, &s)
	first := s.Steps[0].ScheduledTime

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedules/"+s.ID+"/commands", map[string]any{
		"command": "reschedule-by",
		"minutes": 90,
	}, as("baker"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reschedule: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &s)
	if !s.Steps[0].ScheduledTime.Equal(first.Add(90 * time.Minute)) {
		t.Fatalf("first step at %s, want %s", s.Steps[0].ScheduledTime, first.Add(90*time.Minute))
	}
	if s.AdjustedBakeTime == nil || !s.AdjustedBakeTime.Equal(clock.Add(8*time.Hour+90*time.Minute)) {
		t.Fatalf("adjusted bake time %v", s.AdjustedBakeTime)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/schedules/"+s.ID+"/commands", map[string]any{
		"command": "reschedule-to",
	}, as("baker"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("reschedule-to without time: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/schedules/"+s.ID+"/due", nil, as("baker"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("due: %d %s", res.StatusCode, string(data))
	}
	var due DueResponse
	if err := json.Unmarshal(data, &due); err != nil {
		t.Fatalf("unmarshal due: %v", err)
	}
	for _, st := range due.Items {
		if st.ScheduledTime.Add(-time.Hour).After(clock) {
			t.Fatalf("step %d is not due yet", st.StepNumber)
		}
	}
}

func TestStylesAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/styles", nil, as("baker"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("styles: %d %s", res.StatusCode, string(data))
	}
	var styles StyleList
	if err := json.Unmarshal(data, &styles); err != nil || len(styles.Items) != len(domain.Styles()) {
		t.Fatalf("styles %d %v", len(styles.Items), err)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !bytes.Contains(data, []byte("schedule-command")) {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	var doc struct {
		Components struct {
			Schemas map[string]json.RawMessage `json:"schemas"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("openapi json: %v", err)
	}
	if _, ok := doc.Components.Schemas["ApiError"]; !ok {
		t.Fatalf("error envelope schema missing from components")
	}
}
