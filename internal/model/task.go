package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a local task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is the urgency bucket of a local task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DateLayout is the wire and display format for date-only values.
const DateLayout = "2006-01-02"

// Task is a work item owned by a single user. It is the primary entity the
// reconciliation engine mirrors into the remote calendar.
type Task struct {
	ID          string     `json:"id" db:"id"`
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	Priority    Priority   `json:"priority" db:"priority"`

	// DueDate is date-only; the time component is always midnight UTC.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// CalendarEventID is a denormalized pointer to the remote event. The
	// event_mappings table is authoritative.
	CalendarEventID *string    `json:"calendar_event_id,omitempty" db:"calendar_event_id"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`

	Subtasks  Subtasks  `json:"subtasks" db:"subtasks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsCompleted reports whether the task is in its terminal state.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// TruncateDate drops the time component of t, keeping its calendar date.
func TruncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Subtask is a checklist entry embedded in a task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// Subtasks is persisted as a JSON array column.
type Subtasks []Subtask

// Value implements driver.Valuer.
func (s Subtasks) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]Subtask(s))
	if err != nil {
		return nil, fmt.Errorf("marshaling subtasks: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *Subtasks) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scanning subtasks: unsupported type %T", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	var out []Subtask
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshaling subtasks: %w", err)
	}
	*s = out
	return nil
}

// Clone returns a copy that shares no backing array with s.
func (s Subtasks) Clone() Subtasks {
	if s == nil {
		return nil
	}
	out := make(Subtasks, len(s))
	copy(out, s)
	return out
}
