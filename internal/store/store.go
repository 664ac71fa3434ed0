package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/studysync/internal/model"
)

// ErrNotFound is returned (wrapped) when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadySynced is returned when an assignment was converted into a task
// by an earlier call.
var ErrAlreadySynced = errors.New("assignment already synced to a task")

// TaskFilter controls filtering and pagination for task queries.
type TaskFilter struct {
	Status   *model.TaskStatus
	Priority *model.Priority
	Query    *string // search title + description
	SortBy   string  // "due_date", "priority", "created_at", "updated_at", "title"
	SortDesc bool
	Limit    int
	Offset   int
}

// AssignmentFilter selects mirrored assignments for conversion into tasks.
type AssignmentFilter struct {
	// IDs restricts the selection to these local assignment ids.
	IDs []string

	// OnlyUnsynced excludes assignments already converted into tasks.
	OnlyUnsynced bool

	// DueAfter keeps assignments due at or after this instant, plus
	// assignments without a due date. Nil disables the restriction.
	DueAfter *time.Time
}

// SubtaskMutation receives a copy of a task's current subtasks and returns
// the replacement sequence.
type SubtaskMutation func(current model.Subtasks) (model.Subtasks, error)

// Store defines the persistence interface for tasks, external identity
// mappings, connection settings, mirrored LMS entities and preferences.
// Every method is scoped by owner id.
type Store interface {
	// === Tasks ===

	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, task model.Task) error
	DeleteTask(ctx context.Context, ownerID, id string) error
	GetTask(ctx context.Context, ownerID, id string) (*model.Task, error)
	ListTasks(ctx context.Context, ownerID string, filter TaskFilter) ([]model.Task, error)
	MarkTaskSynced(ctx context.Context, ownerID, id string, eventID *string, at time.Time) error
	UpdateSubtasks(ctx context.Context, ownerID, id string, fn SubtaskMutation) (*model.Task, error)

	// === Event mappings ===

	GetEventMapping(ctx context.Context, ownerID, taskID string) (*model.EventMapping, error)
	UpsertEventMapping(ctx context.Context, m model.EventMapping) error
	DeleteEventMapping(ctx context.Context, ownerID, taskID string) error
	ListEventMappings(ctx context.Context, ownerID string) ([]model.EventMapping, error)
	DeleteEventMappingsForOwner(ctx context.Context, ownerID string) (int, error)

	// === Calendar settings ===

	GetCalendarSettings(ctx context.Context, ownerID string) (*model.CalendarSettings, error)
	UpsertCalendarSettings(ctx context.Context, cs model.CalendarSettings) error
	TouchCalendarSync(ctx context.Context, ownerID string, at time.Time) error

	// === LMS connections ===

	GetLMSConnection(ctx context.Context, ownerID string) (*model.LMSConnection, error)
	UpsertLMSConnection(ctx context.Context, conn model.LMSConnection) error
	ListLMSConnections(ctx context.Context, onlyActive bool) ([]model.LMSConnection, error)
	TouchLMSSync(ctx context.Context, ownerID string, at time.Time) error

	// === Mirrored LMS entities ===

	UpsertCourse(ctx context.Context, c model.Course) error
	UpsertAssignment(ctx context.Context, a model.Assignment) error
	UpsertAnnouncement(ctx context.Context, a model.Announcement) error
	UpsertGrade(ctx context.Context, g model.Grade) error
	ListCourses(ctx context.Context, ownerID string) ([]model.Course, error)
	ListAssignments(ctx context.Context, ownerID string, filter AssignmentFilter) ([]model.Assignment, error)
	ListAnnouncements(ctx context.Context, ownerID string) ([]model.Announcement, error)
	ListGrades(ctx context.Context, ownerID string) ([]model.Grade, error)
	MarkAssignmentSynced(ctx context.Context, ownerID, assignmentID, taskID string) error
	CountMirrored(ctx context.Context, ownerID string) (MirrorCounts, error)

	// === Notification preferences ===

	GetNotificationPreferences(ctx context.Context, ownerID string) (*model.NotificationPreferences, error)
	UpsertNotificationPreferences(ctx context.Context, p model.NotificationPreferences) error
}

// MirrorCounts is the number of mirrored rows per LMS entity kind.
type MirrorCounts struct {
	Courses       int `json:"courses"`
	Assignments   int `json:"assignments"`
	Announcements int `json:"announcements"`
	Grades        int `json:"grades"`
}
