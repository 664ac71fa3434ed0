package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
)

// Connect probes calendarID with the owner's credential and records it as
// the owner's sync target with synchronization enabled. Switching to a
// different calendar forgets every existing mapping.
func (s *Syncer) Connect(ctx context.Context, ownerID, calendarID string) (*model.CalendarSettings, error) {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}

	client, err := s.open.Open(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("opening calendar client: %w", err)
	}
	info, err := client.TestConnection(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("testing calendar connection: %w", err)
	}

	prev, err := s.store.GetCalendarSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.CalendarID != "" && prev.CalendarID != calendarID {
		n, err := s.store.DeleteEventMappingsForOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("calendar changed, mappings cleared",
			"owner", ownerID, "from", prev.CalendarID, "to", calendarID, "mappings", n)
	}

	cs := model.CalendarSettings{
		OwnerID:      ownerID,
		CalendarID:   calendarID,
		CalendarName: info.Summary,
		Connected:    true,
		SyncEnabled:  true,
	}
	if err := s.store.UpsertCalendarSettings(ctx, cs); err != nil {
		return nil, err
	}
	return s.store.GetCalendarSettings(ctx, ownerID)
}

// Disconnect stops synchronization and forgets every mapping. Remote events
// already created are left in place.
func (s *Syncer) Disconnect(ctx context.Context, ownerID string) error {
	cs, err := s.store.GetCalendarSettings(ctx, ownerID)
	if err != nil {
		return err
	}
	if cs == nil {
		return nil
	}

	cs.Connected = false
	cs.SyncEnabled = false
	if err := s.store.UpsertCalendarSettings(ctx, *cs); err != nil {
		return err
	}
	if _, err := s.store.DeleteEventMappingsForOwner(ctx, ownerID); err != nil {
		return err
	}
	return nil
}

// SetSyncEnabled pauses or resumes automatic synchronization.
func (s *Syncer) SetSyncEnabled(ctx context.Context, ownerID string, enabled bool) error {
	cs, err := s.store.GetCalendarSettings(ctx, ownerID)
	if err != nil {
		return err
	}
	if cs == nil || !cs.Connected {
		return ErrNotConnected
	}
	wasEnabled := cs.SyncEnabled
	cs.SyncEnabled = enabled
	if err := s.store.UpsertCalendarSettings(ctx, *cs); err != nil {
		return err
	}
	if enabled && !wasEnabled {
		if err := s.dropCompleted(ctx, ownerID); err != nil {
			s.logger.Warn("removing events of tasks completed while paused",
				"owner", ownerID, "err", err)
		}
	}
	return nil
}

// dropCompleted removes the events of mapped tasks that were completed
// while synchronization was paused.
func (s *Syncer) dropCompleted(ctx context.Context, ownerID string) error {
	mappings, err := s.store.ListEventMappings(ctx, ownerID)
	if err != nil || len(mappings) == 0 {
		return err
	}
	sess, err := s.begin(ctx, ownerID)
	if err != nil || sess == nil {
		return err
	}
	for _, m := range mappings {
		task, err := s.store.GetTask(ctx, ownerID, m.TaskID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !task.IsCompleted() {
			continue
		}
		if err := s.remove(ctx, sess, ownerID, m.TaskID, &m, true); err != nil {
			return err
		}
	}
	return nil
}

// ResyncReport summarizes a full calendar resynchronization.
type ResyncReport struct {
	Created int               `json:"created"`
	Updated int               `json:"updated"`
	Adopted int               `json:"adopted"`
	Removed int               `json:"removed"`
	Errors  []model.SyncError `json:"errors,omitempty"`
}

// ResyncAll reconciles every task of the owner with the remote calendar.
// Remote events carrying a task id are adopted when their mapping was
// lost; events whose task no longer exists are deleted. Each task is
// handled in isolation.
func (s *Syncer) ResyncAll(ctx context.Context, ownerID string) (*ResyncReport, error) {
	sess, err := s.begin(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotConnected
	}
	calendarID := sess.settings.CalendarID

	remote, err := sess.client.ListEvents(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("listing remote events: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, ownerID, store.TaskFilter{})
	if err != nil {
		return nil, err
	}
	mappings, err := s.store.ListEventMappings(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byTask := make(map[string]string, len(remote))
	for _, ev := range remote {
		if ev.TaskID != "" && ev.Status != "cancelled" {
			byTask[ev.TaskID] = ev.ID
		}
	}
	mapped := make(map[string]model.EventMapping, len(mappings))
	for _, m := range mappings {
		mapped[m.TaskID] = m
	}

	report := &ResyncReport{}
	known := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		known[task.ID] = true
		if err := s.resyncTask(ctx, sess, task, mapped, byTask, report); err != nil {
			report.Errors = append(report.Errors, model.NewSyncError("task", task.ID, task.Title, err))
		}
	}

	for taskID, eventID := range byTask {
		if known[taskID] {
			continue
		}
		if err := sess.client.DeleteEvent(ctx, calendarID, eventID); err != nil && !source.IsNotFound(err) {
			report.Errors = append(report.Errors, model.NewSyncError("event", eventID, "", err))
			continue
		}
		report.Removed++
	}

	if err := s.store.TouchCalendarSync(ctx, ownerID, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("calendar resync finished",
		"owner", ownerID,
		"created", report.Created,
		"updated", report.Updated,
		"adopted", report.Adopted,
		"removed", report.Removed,
		"errors", len(report.Errors))
	return report, nil
}

func (s *Syncer) resyncTask(
	ctx context.Context,
	sess *session,
	task model.Task,
	mapped map[string]model.EventMapping,
	byTask map[string]string,
	report *ResyncReport,
) error {
	m, hasMapping := mapped[task.ID]
	remoteID, onRemote := byTask[task.ID]

	if !hasMapping && onRemote {
		m = model.EventMapping{
			TaskID:     task.ID,
			OwnerID:    task.OwnerID,
			EventID:    remoteID,
			CalendarID: sess.settings.CalendarID,
		}
		if err := s.store.UpsertEventMapping(ctx, m); err != nil {
			return err
		}
		hasMapping = true
		report.Adopted++
	}

	switch {
	case task.IsCompleted():
		if !hasMapping {
			return nil
		}
		report.Removed++
		return s.remove(ctx, sess, task.OwnerID, task.ID, &m, true)
	case !hasMapping:
		if err := s.create(ctx, sess, task); err != nil {
			return err
		}
		report.Created++
	default:
		if err := s.update(ctx, sess, task, &m); err != nil {
			return err
		}
		report.Updated++
	}
	return nil
}
