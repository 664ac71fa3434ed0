package calendar

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
)

func TestConnect_ProbesAndEnables(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	cs, err := f.syncer.Connect(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCalendarID, cs.CalendarID)
	assert.Equal(t, "Study", cs.CalendarName)
	assert.True(t, cs.Active())
}

func TestConnect_FailedProbeIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.cal.failOn["test"] = &source.RemoteError{StatusCode: http.StatusUnauthorized, Body: "invalid_grant"}

	_, err := f.syncer.Connect(context.Background(), owner, "primary")
	require.Error(t, err)
	assert.True(t, source.IsUnauthorized(err))

	cs, err := f.store.GetCalendarSettings(context.Background(), owner)
	require.NoError(t, err)
	assert.Nil(t, cs)
}

func TestConnect_SwitchingCalendarClearsMappings(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Old calendar"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	_, err := f.syncer.Connect(ctx, owner, "school@group.calendar.google.com")
	require.NoError(t, err)
	assert.Nil(t, f.mapping(t, task.ID))

	_, err = f.syncer.Connect(ctx, owner, "school@group.calendar.google.com")
	require.NoError(t, err)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	task := f.task(t, model.Task{Title: "Left behind"})
	require.NoError(t, f.syncer.TaskCreated(ctx, task))

	require.NoError(t, f.syncer.Disconnect(ctx, owner))

	cs, err := f.store.GetCalendarSettings(ctx, owner)
	require.NoError(t, err)
	assert.False(t, cs.Active())
	assert.Nil(t, f.mapping(t, task.ID))

	require.ErrorIs(t, f.syncer.SetSyncEnabled(ctx, owner, true), ErrNotConnected)
}

func TestSetSyncEnabled_ResumeRemovesEventsOfTasksCompletedWhilePaused(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	done := f.task(t, model.Task{Title: "Finished offline"})
	pending := f.task(t, model.Task{Title: "Still open"})
	require.NoError(t, f.syncer.TaskCreated(ctx, done))
	require.NoError(t, f.syncer.TaskCreated(ctx, pending))

	require.NoError(t, f.syncer.SetSyncEnabled(ctx, owner, false))
	done.Status = model.StatusCompleted
	require.NoError(t, f.store.UpdateTask(ctx, done))
	require.NoError(t, f.syncer.TaskUpdated(ctx, done))
	require.NotNil(t, f.mapping(t, done.ID), "paused sync leaves the event alone")

	require.NoError(t, f.syncer.SetSyncEnabled(ctx, owner, true))

	assert.Nil(t, f.mapping(t, done.ID))
	assert.NotNil(t, f.mapping(t, pending.ID))
	assert.Len(t, f.cal.events, 1)
	assert.Contains(t, f.cal.calls, "delete")
}

func TestResyncAll_RequiresConnection(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.syncer.ResyncAll(context.Background(), owner)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestResyncAll_AdoptsCreatesRemovesAndIsolatesFailures(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	adopted := f.task(t, model.Task{Title: "Lost mapping"})
	fresh := f.task(t, model.Task{Title: "Never synced"})
	done := f.task(t, model.Task{Title: "Finished", Status: model.StatusCompleted})

	f.cal.events["evt-adopt"] = source.EventPayload{TaskID: adopted.ID}
	f.cal.events["evt-done"] = source.EventPayload{TaskID: done.ID}
	f.cal.events["evt-orphan"] = source.EventPayload{TaskID: "deleted-task"}
	f.cal.listing = []source.RemoteEvent{
		{ID: "evt-adopt", TaskID: adopted.ID},
		{ID: "evt-done", TaskID: done.ID},
		{ID: "evt-orphan", TaskID: "deleted-task"},
		{ID: "evt-foreign"},
	}

	report, err := f.syncer.ResyncAll(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Adopted)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Removed)
	assert.Empty(t, report.Errors)

	m := f.mapping(t, adopted.ID)
	require.NotNil(t, m)
	assert.Equal(t, "evt-adopt", m.EventID)
	assert.NotNil(t, f.mapping(t, fresh.ID))
	assert.Nil(t, f.mapping(t, done.ID))
	assert.NotContains(t, f.cal.events, "evt-orphan")

	cs, err := f.store.GetCalendarSettings(ctx, owner)
	require.NoError(t, err)
	assert.NotNil(t, cs.LastSyncAt)
}

func TestResyncAll_PerTaskErrorsAreCollected(t *testing.T) {
	f := newFixture(t, true)
	f.task(t, model.Task{Title: "One"})
	f.task(t, model.Task{Title: "Two"})
	f.cal.failOn["create"] = errors.New("network down")

	report, err := f.syncer.ResyncAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, report.Errors, 2)
	assert.Equal(t, "task", report.Errors[0].Scope)
}
