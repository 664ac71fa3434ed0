package calendar

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
	"github.com/nhle/studysync/internal/testutil"
)

const owner = "owner-1"

// fakeCalendar is an in-memory source.Calendar.
type fakeCalendar struct {
	events  map[string]source.EventPayload
	nextID  int
	calls   []string
	failOn  map[string]error
	listing []source.RemoteEvent
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]source.EventPayload{}, failOn: map[string]error{}}
}

func (f *fakeCalendar) TestConnection(_ context.Context, calendarID string) (source.CalendarInfo, error) {
	f.calls = append(f.calls, "test")
	if err := f.failOn["test"]; err != nil {
		return source.CalendarInfo{}, err
	}
	return source.CalendarInfo{ID: calendarID, Summary: "Study"}, nil
}

func (f *fakeCalendar) ListEvents(context.Context, string) ([]source.RemoteEvent, error) {
	f.calls = append(f.calls, "list")
	return f.listing, f.failOn["list"]
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, p source.EventPayload) (string, error) {
	f.calls = append(f.calls, "create")
	if err := f.failOn["create"]; err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.events[id] = p
	return id, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, _, eventID string, p source.EventPayload) error {
	f.calls = append(f.calls, "update")
	if err := f.failOn["update"]; err != nil {
		return err
	}
	if _, ok := f.events[eventID]; !ok {
		return &source.RemoteError{Kind: source.KindCalendar, StatusCode: http.StatusNotFound, Body: "Not Found"}
	}
	f.events[eventID] = p
	return nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _, eventID string) error {
	f.calls = append(f.calls, "delete")
	if err := f.failOn["delete"]; err != nil {
		return err
	}
	if _, ok := f.events[eventID]; !ok {
		return &source.RemoteError{Kind: source.KindCalendar, StatusCode: http.StatusGone, Body: "Gone"}
	}
	delete(f.events, eventID)
	return nil
}

type fixture struct {
	store  *store.SQLiteStore
	cal    *fakeCalendar
	syncer *Syncer
	today  time.Time
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	cal := newFakeCalendar()
	s := NewSyncer(st, OpenerFunc(func(context.Context, string) (source.Calendar, error) {
		return cal, nil
	}), nil)
	today := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return today }

	if connected {
		require.NoError(t, st.UpsertCalendarSettings(context.Background(), model.CalendarSettings{
			OwnerID: owner, CalendarID: "primary", Connected: true, SyncEnabled: true,
		}))
	}
	return &fixture{store: st, cal: cal, syncer: s, today: today}
}

func (f *fixture) task(t *testing.T, in model.Task) model.Task {
	t.Helper()
	in.OwnerID = owner
	out, err := f.store.CreateTask(context.Background(), in)
	require.NoError(t, err)
	return *out
}

func (f *fixture) mapping(t *testing.T, taskID string) *model.EventMapping {
	t.Helper()
	m, err := f.store.GetEventMapping(context.Background(), owner, taskID)
	require.NoError(t, err)
	return m
}

func TestTaskCreated_CreatesEventAndMapping(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	due := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	task := f.task(t, model.Task{Title: "Essay", Priority: model.PriorityHigh, DueDate: &due})

	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	m := f.mapping(t, task.ID)
	require.NotNil(t, m)
	ev := f.cal.events[m.EventID]
	assert.Equal(t, "○ Essay", ev.Summary)
	assert.Equal(t, "11", ev.ColorID)
	assert.Equal(t, due, ev.Date)
	assert.Equal(t, task.ID, ev.TaskID)
	assert.Equal(t, []source.Reminder{{Method: "popup", Minutes: 1440}}, ev.Reminders)

	got, err := f.store.GetTask(ctx, owner, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CalendarEventID)
	assert.Equal(t, m.EventID, *got.CalendarEventID)
	assert.NotNil(t, got.LastSyncedAt)
}

func TestTaskCreated_UndatedTaskLandsToday(t *testing.T) {
	f := newFixture(t, true)
	task := f.task(t, model.Task{Title: "Someday"})

	require.NoError(t, f.syncer.TaskCreated(context.Background(), task))

	m := f.mapping(t, task.ID)
	require.NotNil(t, m)
	assert.Equal(t, model.TruncateDate(f.today), f.cal.events[m.EventID].Date)
	assert.Equal(t, "5", f.cal.events[m.EventID].ColorID)
}

func TestTaskCreated_NoopWhenDisconnectedOrCompleted(t *testing.T) {
	f := newFixture(t, false)
	task := f.task(t, model.Task{Title: "Offline"})
	require.NoError(t, f.syncer.TaskCreated(context.Background(), task))
	assert.Empty(t, f.cal.calls)

	g := newFixture(t, true)
	done := g.task(t, model.Task{Title: "Done", Status: model.StatusCompleted})
	require.NoError(t, g.syncer.TaskCreated(context.Background(), done))
	assert.Empty(t, g.cal.calls)
}

func TestTaskCreated_SyncDisabled(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.syncer.SetSyncEnabled(context.Background(), owner, false))
	task := f.task(t, model.Task{Title: "Paused"})

	require.NoError(t, f.syncer.TaskCreated(context.Background(), task))
	assert.Empty(t, f.cal.calls)
	assert.Nil(t, f.mapping(t, task.ID))
}

func TestTaskCreated_RemoteFailureLeavesNoMapping(t *testing.T) {
	f := newFixture(t, true)
	f.cal.failOn["create"] = &source.RemoteError{StatusCode: http.StatusInternalServerError}
	task := f.task(t, model.Task{Title: "Flaky"})

	require.Error(t, f.syncer.TaskCreated(context.Background(), task))
	assert.Nil(t, f.mapping(t, task.ID))
}

func TestTaskUpdated_UpdatesInPlace(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Draft"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))
	before := f.mapping(t, task.ID)

	task.Title = "Draft v2"
	task.Status = model.StatusInProgress
	task.Priority = model.PriorityLow
	require.NoError(t, f.syncer.TaskUpdated(ctx, task))

	after := f.mapping(t, task.ID)
	assert.Equal(t, before.EventID, after.EventID)
	ev := f.cal.events[after.EventID]
	assert.Equal(t, "◐ Draft v2", ev.Summary)
	assert.Equal(t, "2", ev.ColorID)
	assert.Len(t, f.cal.events, 1)
}

func TestTaskUpdated_WithoutMappingCreates(t *testing.T) {
	f := newFixture(t, true)
	task := f.task(t, model.Task{Title: "Late joiner"})

	require.NoError(t, f.syncer.TaskUpdated(context.Background(), task))

	assert.Equal(t, []string{"create"}, f.cal.calls)
	assert.NotNil(t, f.mapping(t, task.ID))
}

func TestTaskUpdated_RecreatesEventDeletedRemotely(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Vanishing"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))
	old := f.mapping(t, task.ID)
	delete(f.cal.events, old.EventID)

	require.NoError(t, f.syncer.TaskUpdated(ctx, task))

	m := f.mapping(t, task.ID)
	require.NotNil(t, m)
	assert.NotEqual(t, old.EventID, m.EventID)
	assert.Len(t, f.cal.events, 1)
}

func TestTaskUpdated_CompletionDeletesEventAndMapping(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Finish me"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	task.Status = model.StatusCompleted
	require.NoError(t, f.syncer.TaskUpdated(ctx, task))

	assert.Empty(t, f.cal.events)
	assert.Nil(t, f.mapping(t, task.ID))
	got, err := f.store.GetTask(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CalendarEventID)
}

func TestTaskUpdated_CompletionDropsMappingEvenIfRemoteDeleteFails(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Stubborn"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))
	f.cal.failOn["delete"] = &source.RemoteError{StatusCode: http.StatusInternalServerError, Body: "boom"}

	task.Status = model.StatusCompleted
	require.NoError(t, f.syncer.TaskUpdated(ctx, task))

	assert.Contains(t, f.cal.calls, "delete")
	assert.Nil(t, f.mapping(t, task.ID))
}

func TestTaskUpdated_CompletedWithoutMappingIsNoop(t *testing.T) {
	f := newFixture(t, true)
	task := f.task(t, model.Task{Title: "Never synced", Status: model.StatusCompleted})

	require.NoError(t, f.syncer.TaskUpdated(context.Background(), task))
	assert.Empty(t, f.cal.calls)
}

func TestTaskDeleted_RemovesEventAndMapping(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Trash"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	require.NoError(t, f.syncer.TaskDeleted(ctx, owner, task.ID))

	assert.Empty(t, f.cal.events)
	assert.Nil(t, f.mapping(t, task.ID))
}

func TestTaskDeleted_AlreadyGoneRemotelyIsSuccess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Ghost"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))
	f.cal.events = map[string]source.EventPayload{}

	require.NoError(t, f.syncer.TaskDeleted(ctx, owner, task.ID))
	assert.Nil(t, f.mapping(t, task.ID))
}

func TestPayload_RemindersFollowPreferences(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.store.UpsertNotificationPreferences(ctx, model.NotificationPreferences{
		OwnerID: owner, ReminderEnabled: true, ReminderTiming: model.Timing1h, EmailEnabled: true,
	}))
	task := f.task(t, model.Task{Title: "Quiz"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	m := f.mapping(t, task.ID)
	assert.Equal(t, []source.Reminder{
		{Method: "popup", Minutes: 60},
		{Method: "email", Minutes: 60},
	}, f.cal.events[m.EventID].Reminders)

	require.NoError(t, f.store.UpsertNotificationPreferences(ctx, model.NotificationPreferences{
		OwnerID: owner, ReminderEnabled: false, ReminderTiming: model.Timing1h,
	}))
	require.NoError(t, f.syncer.TaskUpdated(ctx, task))
	assert.Empty(t, f.cal.events[m.EventID].Reminders)
}

func TestColorAndIcon(t *testing.T) {
	assert.Equal(t, "11", ColorFor(model.PriorityHigh))
	assert.Equal(t, "5", ColorFor(model.PriorityMedium))
	assert.Equal(t, "2", ColorFor(model.PriorityLow))
	assert.Equal(t, "○", StatusIcon(model.StatusTodo))
	assert.Equal(t, "◐", StatusIcon(model.StatusInProgress))
	assert.Equal(t, "✓", StatusIcon(model.StatusCompleted))
}
