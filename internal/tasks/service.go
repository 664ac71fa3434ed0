// Package tasks is the entry point for every change to a local task. Each
// mutation is persisted first and then mirrored into the remote calendar
// on a best-effort basis: calendar failures are logged, never returned.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/store"
)

// ErrInvalid is returned (wrapped) when input fails validation.
var ErrInvalid = errors.New("invalid task")

// CalendarHook receives task lifecycle notifications. calendar.Syncer
// implements it.
type CalendarHook interface {
	TaskCreated(ctx context.Context, task model.Task) error
	TaskUpdated(ctx context.Context, task model.Task) error
	TaskDeleted(ctx context.Context, ownerID, taskID string) error
}

// CreateInput holds the fields of a new task.
type CreateInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      model.TaskStatus `json:"status"`
	Priority    model.Priority   `json:"priority"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Status       *model.TaskStatus `json:"status,omitempty"`
	Priority     *model.Priority   `json:"priority,omitempty"`
	DueDate      *time.Time        `json:"due_date,omitempty"`
	ClearDueDate bool              `json:"clear_due_date,omitempty"`
}

// Service creates, edits and deletes tasks.
type Service struct {
	store  store.Store
	hook   CalendarHook
	logger *slog.Logger
}

// NewService creates a Service. hook may be nil when no calendar is wired.
func NewService(st store.Store, hook CalendarHook, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, hook: hook, logger: logger.With("component", "tasks")}
}

// Create validates and stores a new task, then mirrors it.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Task, error) {
	task := model.Task{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := validate(task); err != nil {
		return nil, err
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}

	if s.hook != nil {
		if err := s.hook.TaskCreated(ctx, *created); err != nil {
			s.logger.Warn("calendar sync after create failed",
				"owner", ownerID, "task", created.ID, "err", err)
		}
	}
	return s.reload(ctx, created), nil
}

// Update applies a partial update and mirrors the result.
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*model.Task, error) {
	task, err := s.store.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	switch {
	case in.ClearDueDate:
		task.DueDate = nil
	case in.DueDate != nil:
		task.DueDate = in.DueDate
	}
	if err := validate(*task); err != nil {
		return nil, err
	}

	if err := s.store.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	updated, err := s.store.GetTask(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if s.hook != nil {
		if err := s.hook.TaskUpdated(ctx, *updated); err != nil {
			s.logger.Warn("calendar sync after update failed",
				"owner", ownerID, "task", id, "err", err)
		}
	}
	return s.reload(ctx, updated), nil
}

// SetStatus moves a task to st. Completing a task removes its event.
func (s *Service) SetStatus(ctx context.Context, ownerID, id string, st model.TaskStatus) (*model.Task, error) {
	return s.Update(ctx, ownerID, id, UpdateInput{Status: &st})
}

// Delete removes a task. The remote event is removed first so the mapping
// is still resolvable.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.store.GetTask(ctx, ownerID, id); err != nil {
		return err
	}
	if s.hook != nil {
		if err := s.hook.TaskDeleted(ctx, ownerID, id); err != nil {
			s.logger.Warn("calendar sync before delete failed",
				"owner", ownerID, "task", id, "err", err)
		}
	}
	return s.store.DeleteTask(ctx, ownerID, id)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Task, error) {
	return s.store.GetTask(ctx, ownerID, id)
}

// List returns the owner's tasks matching filter.
func (s *Service) List(ctx context.Context, ownerID string, filter store.TaskFilter) ([]model.Task, error) {
	return s.store.ListTasks(ctx, ownerID, filter)
}

// AddSubtask appends a checklist entry.
func (s *Service) AddSubtask(ctx context.Context, ownerID, taskID, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: subtask title must not be empty", ErrInvalid)
	}
	return s.store.UpdateSubtasks(ctx, ownerID, taskID, func(cur model.Subtasks) (model.Subtasks, error) {
		return append(cur, model.Subtask{
			ID:        uuid.New().String(),
			Title:     title,
			CreatedAt: time.Now().UTC(),
		}), nil
	})
}

// ToggleSubtask flips the done flag of one entry.
func (s *Service) ToggleSubtask(ctx context.Context, ownerID, taskID, subtaskID string) (*model.Task, error) {
	return s.store.UpdateSubtasks(ctx, ownerID, taskID, func(cur model.Subtasks) (model.Subtasks, error) {
		for i := range cur {
			if cur[i].ID == subtaskID {
				cur[i].Done = !cur[i].Done
				return cur, nil
			}
		}
		return nil, fmt.Errorf("subtask %s: %w", subtaskID, store.ErrNotFound)
	})
}

// RemoveSubtask deletes one entry.
func (s *Service) RemoveSubtask(ctx context.Context, ownerID, taskID, subtaskID string) (*model.Task, error) {
	return s.store.UpdateSubtasks(ctx, ownerID, taskID, func(cur model.Subtasks) (model.Subtasks, error) {
		for i := range cur {
			if cur[i].ID == subtaskID {
				return append(cur[:i], cur[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("subtask %s: %w", subtaskID, store.ErrNotFound)
	})
}

// reload re-reads task so callers see the calendar pointer set by the hook.
func (s *Service) reload(ctx context.Context, task *model.Task) *model.Task {
	fresh, err := s.store.GetTask(ctx, task.OwnerID, task.ID)
	if err != nil {
		return task
	}
	return fresh
}

func validate(t model.Task) error {
	switch {
	case t.OwnerID == "":
		return fmt.Errorf("%w: owner must not be empty", ErrInvalid)
	case t.Title == "":
		return fmt.Errorf("%w: title must not be empty", ErrInvalid)
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, t.Status)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, t.Priority)
	}
	return nil
}
