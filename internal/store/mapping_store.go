package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/studysync/internal/model"
)

const mappingColumns = `task_id, owner_id, event_id, calendar_id, created_at, updated_at`

// GetEventMapping returns the mapping for a task, or nil when the task has
// never been mirrored.
func (s *SQLiteStore) GetEventMapping(
	ctx context.Context,
	ownerID, taskID string,
) (*model.EventMapping, error) {
	m, err := getOptional(func(dest *model.EventMapping) error {
		return s.db.GetContext(ctx, dest,
			"SELECT "+mappingColumns+" FROM event_mappings WHERE task_id = ? AND owner_id = ?",
			taskID, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting event mapping for task %s: %w", taskID, err)
	}
	return m, nil
}

// UpsertEventMapping records or replaces the event linked to a task. A task
// has at most one mapping; a remote event belongs to at most one task.
func (s *SQLiteStore) UpsertEventMapping(ctx context.Context, m model.EventMapping) error {
	if m.TaskID == "" || m.EventID == "" || m.CalendarID == "" {
		return fmt.Errorf("event mapping requires task, event and calendar ids")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			event_id = excluded.event_id,
			calendar_id = excluded.calendar_id,
			updated_at = excluded.updated_at`,
		m.TaskID, m.OwnerID, m.EventID, m.CalendarID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting event mapping for task %s: %w", m.TaskID, err)
	}
	return nil
}

// DeleteEventMapping removes a task's mapping. Deleting an absent mapping is
// not an error.
func (s *SQLiteStore) DeleteEventMapping(ctx context.Context, ownerID, taskID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM event_mappings WHERE task_id = ? AND owner_id = ?", taskID, ownerID)
	if err != nil {
		return fmt.Errorf("deleting event mapping for task %s: %w", taskID, err)
	}
	return nil
}

// ListEventMappings returns every mapping an owner has.
func (s *SQLiteStore) ListEventMappings(ctx context.Context, ownerID string) ([]model.EventMapping, error) {
	var out []model.EventMapping
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+mappingColumns+" FROM event_mappings WHERE owner_id = ? ORDER BY created_at",
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing event mappings: %w", err)
	}
	return out, nil
}

// DeleteEventMappingsForOwner drops all of an owner's mappings and clears
// the matching task pointers. Returns the number of mappings removed.
func (s *SQLiteStore) DeleteEventMappingsForOwner(ctx context.Context, ownerID string) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, "DELETE FROM event_mappings WHERE owner_id = ?", ownerID)
	if err != nil {
		return 0, fmt.Errorf("deleting event mappings: %w", err)
	}
	n, _ := result.RowsAffected()

	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET calendar_event_id = NULL WHERE owner_id = ?", ownerID); err != nil {
		return 0, fmt.Errorf("clearing task event pointers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing mapping cleanup: %w", err)
	}
	return int(n), nil
}
