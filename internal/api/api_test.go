package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/calendar"
	"github.com/nhle/studysync/internal/credential"
	"github.com/nhle/studysync/internal/logging"
	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
	lmssync "github.com/nhle/studysync/internal/sync"
	"github.com/nhle/studysync/internal/tasks"
	"github.com/nhle/studysync/internal/testutil"
)

const owner = "owner-1"

// memCalendar keeps events in memory.
type memCalendar struct {
	events map[string]source.EventPayload
	next   int
}

func (c *memCalendar) TestConnection(_ context.Context, id string) (source.CalendarInfo, error) {
	return source.CalendarInfo{ID: id, Summary: "Study"}, nil
}

func (c *memCalendar) ListEvents(context.Context, string) ([]source.RemoteEvent, error) {
	var out []source.RemoteEvent
	for id, p := range c.events {
		out = append(out, source.RemoteEvent{ID: id, Summary: p.Summary, Date: p.Date, TaskID: p.TaskID})
	}
	return out, nil
}

func (c *memCalendar) CreateEvent(_ context.Context, _ string, p source.EventPayload) (string, error) {
	c.next++
	id := fmt.Sprintf("evt-%d", c.next)
	c.events[id] = p
	return id, nil
}

func (c *memCalendar) UpdateEvent(_ context.Context, _, id string, p source.EventPayload) error {
	c.events[id] = p
	return nil
}

func (c *memCalendar) DeleteEvent(_ context.Context, _, id string) error {
	delete(c.events, id)
	return nil
}

// memLMS serves one course with two upcoming assignments. A token of
// "bad" is rejected.
type memLMS struct {
	token string
	due   time.Time
}

func (l memLMS) TestConnection(context.Context) (source.Profile, error) {
	if l.token == "bad" {
		return source.Profile{}, &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusUnauthorized}
	}
	return source.Profile{ID: "u1", Name: "Ada Student"}, nil
}

func (l memLMS) ListCourses(context.Context) ([]source.RemoteCourse, error) {
	return []source.RemoteCourse{{ID: "c1", Name: "Chemistry", CourseCode: "CHEM1"}}, nil
}

func (l memLMS) ListAssignments(context.Context, string) ([]source.RemoteAssignment, error) {
	later := l.due.Add(10 * 24 * time.Hour)
	return []source.RemoteAssignment{
		{ID: "a1", CourseID: "c1", Name: "Titration", Description: "<p>Report</p>", DueAt: &l.due},
		{ID: "a2", CourseID: "c1", Name: "Final", DueAt: &later},
	}, nil
}

func (l memLMS) GetSubmission(context.Context, string, string) (*source.RemoteSubmission, error) {
	return nil, &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusNotFound}
}

func (l memLMS) ListAnnouncements(context.Context, string) ([]source.RemoteAnnouncement, error) {
	return nil, nil
}

func (l memLMS) ListEnrollments(context.Context) ([]source.RemoteEnrollment, error) {
	return nil, nil
}

type testServer struct {
	*httptest.Server
	store *store.SQLiteStore
	cal   *memCalendar
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := testutil.NewTestStore(t)
	cal := &memCalendar{events: map[string]source.EventPayload{}}
	logger := logging.Discard()

	syncer := calendar.NewSyncer(st, calendar.OpenerFunc(func(context.Context, string) (source.Calendar, error) {
		return cal, nil
	}), logger)
	svc := tasks.NewService(st, syncer, logger)
	due := time.Now().Add(48 * time.Hour)
	ingestor := lmssync.NewIngestor(st,
		credential.NewVault(keyring.NewArrayKeyring(nil)),
		func(_, token string) source.LMS { return memLMS{token: token, due: due} },
		logger)

	r := NewRouter(Deps{
		Store:    st,
		Tasks:    svc,
		Calendar: syncer,
		Ingestor: ingestor,
		Bridge:   lmssync.NewBridge(st, svc, nil, logger),
		Logger:   logger,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: st, cal: cal}
}

// do sends body as JSON with the owner header and decodes the data
// envelope into out when it is non-nil.
func (s *testServer) do(t *testing.T, method, path string, body, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set(OwnerHeader, owner)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && resp.StatusCode < 300 {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
		require.NoError(t, json.Unmarshal(env.Data, out), string(raw))
	}
	if resp.StatusCode >= 400 {
		var e ErrorResponse
		require.NoError(t, json.Unmarshal(raw, &e), string(raw))
		resp.Header.Set("X-Test-Error-Code", e.Error)
	}
	return resp
}

func errorCode(resp *http.Response) string {
	return resp.Header.Get("X-Test-Error-Code")
}

func TestHealthNeedsNoOwner(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingOwnerIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/api/tasks")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	var created model.Task
	resp := s.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": "  Read chapter 4 "}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Read chapter 4", created.Title)
	assert.Equal(t, model.StatusTodo, created.Status)
	assert.Equal(t, model.PriorityMedium, created.Priority)

	var list []model.Task
	resp = s.do(t, http.MethodGet, "/api/tasks?status=todo", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)

	var updated model.Task
	resp = s.do(t, http.MethodPatch, "/api/tasks/"+created.ID, map[string]any{"priority": "high"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.PriorityHigh, updated.Priority)

	var withSub model.Task
	resp = s.do(t, http.MethodPost, "/api/tasks/"+created.ID+"/subtasks", map[string]any{"title": "Notes"}, &withSub)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, withSub.Subtasks, 1)

	var toggled model.Task
	resp = s.do(t, http.MethodPost,
		"/api/tasks/"+created.ID+"/subtasks/"+withSub.Subtasks[0].ID+"/toggle", nil, &toggled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, toggled.Subtasks[0].Done)

	resp = s.do(t, http.MethodDelete, "/api/tasks/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/tasks/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, errorCode(resp))
}

func TestTaskValidationErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeValidation, errorCode(resp))

	resp = s.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": "x", "colour": "red"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/tasks?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCalendarFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/calendar/resync", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeNotConnected, errorCode(resp))

	var cs model.CalendarSettings
	resp = s.do(t, http.MethodPost, "/api/calendar/connect", map[string]any{}, &cs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, calendar.DefaultCalendarID, cs.CalendarID)
	assert.True(t, cs.SyncEnabled)

	var task model.Task
	s.do(t, http.MethodPost, "/api/tasks", map[string]any{"title": "Essay"}, &task)
	assert.Len(t, s.cal.events, 1)

	resp = s.do(t, http.MethodPut, "/api/tasks/"+task.ID+"/status", map[string]any{"status": "completed"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, s.cal.events, "completing a task removes its event")

	resp = s.do(t, http.MethodPut, "/api/calendar/sync-enabled", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/calendar/sync-enabled", map[string]any{"enabled": false}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/calendar/auth-url", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLMSFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/lms/sync", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeNotConnected, errorCode(resp))

	resp = s.do(t, http.MethodPost, "/api/lms/connect", map[string]any{"base_url": "https://lms.example", "token": "bad"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, CodeRemoteRejected, errorCode(resp))

	resp = s.do(t, http.MethodPost, "/api/lms/connect", map[string]any{"base_url": " "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var conn model.LMSConnection
	resp = s.do(t, http.MethodPost, "/api/lms/connect", map[string]any{"base_url": "https://lms.example", "token": "t"}, &conn)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada Student", conn.UserName)

	var report lmssync.IngestReport
	resp = s.do(t, http.MethodPost, "/api/lms/sync", nil, &report)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, report.Courses)
	assert.Equal(t, 2, report.Assignments)
	assert.Empty(t, report.Errors)

	var assignments []model.Assignment
	s.do(t, http.MethodGet, "/api/lms/assignments", nil, &assignments)
	require.Len(t, assignments, 2)

	var bridged lmssync.BridgeReport
	resp = s.do(t, http.MethodPost, "/api/lms/assignments/sync-to-tasks", nil, &bridged)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, bridged.Created)

	resp = s.do(t, http.MethodPost, "/api/lms/assignments/sync-to-tasks", nil, &bridged)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, bridged.Created)

	var list []model.Task
	s.do(t, http.MethodGet, "/api/tasks?sort=due_date", nil, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "[CHEM1] Titration", list[0].Title)
	assert.Equal(t, model.PriorityHigh, list[0].Priority)
	assert.Equal(t, model.PriorityLow, list[1].Priority)

	var overview struct {
		Connection model.LMSConnection `json:"connection"`
		Counts     store.MirrorCounts  `json:"counts"`
	}
	s.do(t, http.MethodGet, "/api/lms", nil, &overview)
	assert.Equal(t, 2, overview.Counts.Assignments)
	assert.NotNil(t, overview.Connection.LastSyncAt)

	resp = s.do(t, http.MethodPost, "/api/lms/disconnect", nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.do(t, http.MethodPost, "/api/lms/sync", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPreferences(t *testing.T) {
	s := newTestServer(t)

	var got preferencesView
	resp := s.do(t, http.MethodGet, "/api/preferences", nil, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.ReminderEnabled)
	assert.Equal(t, model.Timing24h, got.ReminderTiming)
	require.Len(t, got.Reminders.Overrides, 1)
	assert.Equal(t, 1440, got.Reminders.Overrides[0].Minutes)

	resp = s.do(t, http.MethodPut, "/api/preferences",
		map[string]any{"reminder_timing": "1h", "email_enabled": true}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.Timing1h, got.ReminderTiming)
	assert.Len(t, got.Reminders.Overrides, 2)

	resp = s.do(t, http.MethodPut, "/api/preferences", map[string]any{"reminder_enabled": false}, &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, got.Reminders.Overrides)
	assert.Empty(t, got.Reminders.Overrides)

	resp = s.do(t, http.MethodPut, "/api/preferences", map[string]any{"reminder_timing": "2w"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeValidation, errorCode(resp))
}
