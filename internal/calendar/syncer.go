// Package calendar mirrors local tasks into an owner's remote calendar.
//
// Each task has at most one remote event, tracked by an event mapping.
// Open tasks are created or updated remotely; completing or deleting a task
// removes its event, and the mapping row is dropped even when the remote
// delete fails.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/reminder"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
)

// ErrNotConnected is returned by explicit operations when the owner has no
// connected, sync-enabled calendar.
var ErrNotConnected = errors.New("calendar not connected")

// DefaultCalendarID selects the owner's primary calendar.
const DefaultCalendarID = "primary"

// Opener returns a calendar client authenticated as an owner.
type Opener interface {
	Open(ctx context.Context, ownerID string) (source.Calendar, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, ownerID string) (source.Calendar, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, ownerID string) (source.Calendar, error) {
	return f(ctx, ownerID)
}

// Syncer keeps remote events in line with local tasks.
type Syncer struct {
	store  store.Store
	open   Opener
	logger *slog.Logger
	now    func() time.Time
}

// NewSyncer creates a Syncer. A nil logger uses slog.Default().
func NewSyncer(st store.Store, open Opener, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:  st,
		open:   open,
		logger: logger.With("component", "calendar"),
		now:    time.Now,
	}
}

// session bundles what one synchronization pass needs.
type session struct {
	settings *model.CalendarSettings
	client   source.Calendar
	prefs    *model.NotificationPreferences
}

// begin loads the owner's settings and opens a client. It returns a nil
// session when synchronization is not active for the owner.
func (s *Syncer) begin(ctx context.Context, ownerID string) (*session, error) {
	cs, err := s.store.GetCalendarSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !cs.Active() {
		return nil, nil
	}

	client, err := s.open.Open(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("opening calendar client: %w", err)
	}

	prefs, err := s.store.GetNotificationPreferences(ctx, ownerID)
	if err != nil {
		s.logger.Warn("loading notification preferences, using defaults",
			"owner", ownerID, "err", err)
		prefs = nil
	}

	return &session{settings: cs, client: client, prefs: prefs}, nil
}

// TaskCreated creates the remote event of a new open task.
func (s *Syncer) TaskCreated(ctx context.Context, task model.Task) error {
	if task.IsCompleted() {
		return nil
	}
	sess, err := s.begin(ctx, task.OwnerID)
	if err != nil || sess == nil {
		return err
	}
	return s.create(ctx, sess, task)
}

// TaskUpdated reconciles the remote event after a task changed. Completed
// tasks lose their event; unmapped open tasks get one.
func (s *Syncer) TaskUpdated(ctx context.Context, task model.Task) error {
	sess, err := s.begin(ctx, task.OwnerID)
	if err != nil || sess == nil {
		return err
	}

	m, err := s.store.GetEventMapping(ctx, task.OwnerID, task.ID)
	if err != nil {
		return err
	}

	switch {
	case task.IsCompleted():
		if m == nil {
			return nil
		}
		return s.remove(ctx, sess, task.OwnerID, task.ID, m, true)
	case m == nil:
		return s.create(ctx, sess, task)
	default:
		return s.update(ctx, sess, task, m)
	}
}

// TaskDeleted removes the remote event of a task that is about to be
// deleted locally.
func (s *Syncer) TaskDeleted(ctx context.Context, ownerID, taskID string) error {
	m, err := s.store.GetEventMapping(ctx, ownerID, taskID)
	if err != nil || m == nil {
		return err
	}
	sess, err := s.begin(ctx, ownerID)
	if err != nil {
		return err
	}
	if sess == nil {
		return s.store.DeleteEventMapping(ctx, ownerID, taskID)
	}
	return s.remove(ctx, sess, ownerID, taskID, m, false)
}

func (s *Syncer) create(ctx context.Context, sess *session, task model.Task) error {
	calendarID := sess.settings.CalendarID
	eventID, err := sess.client.CreateEvent(ctx, calendarID, s.payload(task, sess.prefs))
	if err != nil {
		return fmt.Errorf("creating event for task %s: %w", task.ID, err)
	}

	err = s.store.UpsertEventMapping(ctx, model.EventMapping{
		TaskID:     task.ID,
		OwnerID:    task.OwnerID,
		EventID:    eventID,
		CalendarID: calendarID,
	})
	if err != nil {
		return fmt.Errorf("recording event mapping for task %s: %w", task.ID, err)
	}

	if err := s.store.MarkTaskSynced(ctx, task.OwnerID, task.ID, &eventID, s.now()); err != nil {
		return fmt.Errorf("stamping task %s: %w", task.ID, err)
	}

	s.logger.Debug("created event", "owner", task.OwnerID, "task", task.ID, "event", eventID)
	return nil
}

func (s *Syncer) update(ctx context.Context, sess *session, task model.Task, m *model.EventMapping) error {
	err := sess.client.UpdateEvent(ctx, m.CalendarID, m.EventID, s.payload(task, sess.prefs))
	if source.IsNotFound(err) {
		// The event was removed remotely; replace it.
		s.logger.Info("event gone remotely, recreating",
			"owner", task.OwnerID, "task", task.ID, "event", m.EventID)
		if err := s.store.DeleteEventMapping(ctx, task.OwnerID, task.ID); err != nil {
			return err
		}
		return s.create(ctx, sess, task)
	}
	if err != nil {
		return fmt.Errorf("updating event for task %s: %w", task.ID, err)
	}

	eventID := m.EventID
	if err := s.store.MarkTaskSynced(ctx, task.OwnerID, task.ID, &eventID, s.now()); err != nil {
		return fmt.Errorf("stamping task %s: %w", task.ID, err)
	}
	return nil
}

// remove deletes the remote event and always drops the mapping. Remote
// failures are logged, never returned.
func (s *Syncer) remove(
	ctx context.Context,
	sess *session,
	ownerID, taskID string,
	m *model.EventMapping,
	taskSurvives bool,
) error {
	err := sess.client.DeleteEvent(ctx, m.CalendarID, m.EventID)
	switch {
	case err == nil:
	case source.IsNotFound(err):
		s.logger.Debug("event already gone", "owner", ownerID, "task", taskID, "event", m.EventID)
	default:
		s.logger.Warn("deleting remote event failed, dropping mapping anyway",
			"owner", ownerID, "task", taskID, "event", m.EventID, "err", err)
	}

	if err := s.store.DeleteEventMapping(ctx, ownerID, taskID); err != nil {
		return fmt.Errorf("dropping event mapping for task %s: %w", taskID, err)
	}
	if !taskSurvives {
		return nil
	}
	if err := s.store.MarkTaskSynced(ctx, ownerID, taskID, nil, s.now()); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("clearing event pointer of task %s: %w", taskID, err)
	}
	return nil
}

// payload builds the all-day event mirroring task.
func (s *Syncer) payload(task model.Task, prefs *model.NotificationPreferences) source.EventPayload {
	date := model.TruncateDate(s.now().UTC())
	if task.DueDate != nil {
		date = model.TruncateDate(*task.DueDate)
	}

	spec := reminder.Resolve(prefs)
	reminders := make([]source.Reminder, 0, len(spec.Overrides))
	for _, o := range spec.Overrides {
		reminders = append(reminders, source.Reminder{Method: o.Method, Minutes: o.Minutes})
	}

	return source.EventPayload{
		Summary:     StatusIcon(task.Status) + " " + task.Title,
		Description: task.Description,
		Date:        date,
		ColorID:     ColorFor(task.Priority),
		Reminders:   reminders,
		TaskID:      task.ID,
	}
}

// ColorFor maps a task priority to a calendar event color id.
func ColorFor(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "11"
	case model.PriorityLow:
		return "2"
	default:
		return "5"
	}
}

// StatusIcon is the title prefix that reflects a task's status.
func StatusIcon(st model.TaskStatus) string {
	switch st {
	case model.StatusInProgress:
		return "◐"
	case model.StatusCompleted:
		return "✓"
	default:
		return "○"
	}
}
