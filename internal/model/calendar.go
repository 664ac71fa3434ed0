package model

import "time"

// CalendarSettings is an owner's connection to a remote calendar.
// SyncEnabled gates every automatic synchronization.
type CalendarSettings struct {
	OwnerID      string     `json:"owner_id" db:"owner_id"`
	CalendarID   string     `json:"calendar_id" db:"calendar_id"`
	CalendarName string     `json:"calendar_name" db:"calendar_name"`
	Connected    bool       `json:"connected" db:"connected"`
	SyncEnabled  bool       `json:"sync_enabled" db:"sync_enabled"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Active reports whether automatic synchronization may run.
func (c *CalendarSettings) Active() bool {
	return c != nil && c.Connected && c.SyncEnabled && c.CalendarID != ""
}

// EventMapping links a local task to the remote calendar event that mirrors
// it. There is at most one mapping per task.
type EventMapping struct {
	TaskID     string    `json:"task_id" db:"task_id"`
	OwnerID    string    `json:"owner_id" db:"owner_id"`
	EventID    string    `json:"event_id" db:"event_id"`
	CalendarID string    `json:"calendar_id" db:"calendar_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
