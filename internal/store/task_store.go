package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/studysync/internal/model"
)

const taskColumns = `id, owner_id, title, description, status, priority,
	due_date, calendar_event_id, last_synced_at, subtasks, created_at, updated_at`

// CreateTask inserts a new task and returns the stored row. Generates a
// UUID if ID is empty.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("task title must not be empty")
	}
	if task.OwnerID == "" {
		return nil, fmt.Errorf("task owner must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if !task.Status.Valid() {
		return nil, fmt.Errorf("invalid task status %q", task.Status)
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if !task.Priority.Valid() {
		return nil, fmt.Errorf("invalid task priority %q", task.Priority)
	}
	if task.DueDate != nil {
		d := model.TruncateDate(*task.DueDate)
		task.DueDate = &d
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OwnerID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.CalendarEventID, task.LastSyncedAt, task.Subtasks,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

// UpdateTask overwrites the editable fields of an existing task. The
// calendar pointer and sync stamp are owned by MarkTaskSynced.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if !task.Status.Valid() {
		return fmt.Errorf("invalid task status %q", task.Status)
	}
	if !task.Priority.Valid() {
		return fmt.Errorf("invalid task priority %q", task.Priority)
	}
	if task.DueDate != nil {
		d := model.TruncateDate(*task.DueDate)
		task.DueDate = &d
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?,
			due_date = ?, subtasks = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.Subtasks, time.Now().UTC(),
		task.ID, task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.ID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("task", task.ID)
	}
	return nil
}

// DeleteTask removes a task. Cascades to its event mapping.
func (s *SQLiteStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("task", id)
	}
	return nil
}

// GetTask retrieves a single task.
func (s *SQLiteStore) GetTask(ctx context.Context, ownerID, id string) (*model.Task, error) {
	task, err := getOptional(func(dest *model.Task) error {
		return s.db.GetContext(ctx, dest,
			"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	if task == nil {
		return nil, notFound("task", id)
	}
	return task, nil
}

// ListTasks retrieves an owner's tasks matching the filter.
func (s *SQLiteStore) ListTasks(
	ctx context.Context,
	ownerID string,
	filter TaskFilter,
) ([]model.Task, error) {
	query, args := buildTaskQuery(ownerID, filter)

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// MarkTaskSynced sets the denormalized event pointer and sync stamp. A nil
// eventID clears the pointer.
func (s *SQLiteStore) MarkTaskSynced(
	ctx context.Context,
	ownerID, id string,
	eventID *string,
	at time.Time,
) error {
	at = at.UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET calendar_event_id = ?, last_synced_at = ?
		WHERE id = ? AND owner_id = ?`,
		eventID, at, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("marking task %s synced: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("task", id)
	}
	return nil
}

// UpdateSubtasks applies fn to the task's subtasks inside a transaction so
// concurrent edits to the same task cannot lose each other's changes.
func (s *SQLiteStore) UpdateSubtasks(
	ctx context.Context,
	ownerID, id string,
	fn SubtaskMutation,
) (*model.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var task model.Task
	err = tx.GetContext(ctx, &task,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("task", id)
		}
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}

	next, err := fn(task.Subtasks.Clone())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"UPDATE tasks SET subtasks = ?, updated_at = ? WHERE id = ? AND owner_id = ?",
		next, now, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating subtasks of %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing subtasks of %s: %w", id, err)
	}

	task.Subtasks = next
	task.UpdatedAt = now
	return &task, nil
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(ownerID string, filter TaskFilter) (string, []interface{}) {
	conditions := []string{"owner_id = ?"}
	args := []interface{}{ownerID}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, *filter.Priority)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " +
		strings.Join(conditions, " AND ")

	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	switch filter.SortBy {
	case "due_date":
		query += " ORDER BY due_date IS NULL, due_date " + dir + ", created_at"
	case "priority":
		query += " ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END " +
			dir + ", created_at"
	case "updated_at":
		query += " ORDER BY updated_at " + dir
	case "title":
		query += " ORDER BY title COLLATE NOCASE " + dir
	default:
		query += " ORDER BY created_at " + dir
	}

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return query, args
}
