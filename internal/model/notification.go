package model

import "time"

// ReminderTiming is how long before an event a reminder fires.
type ReminderTiming string

const (
	Timing15m ReminderTiming = "15m"
	Timing1h  ReminderTiming = "1h"
	Timing24h ReminderTiming = "24h"
	Timing3d  ReminderTiming = "3d"
)

// Minutes converts the timing to a reminder offset. Unknown values fall
// back to 24 hours.
func (t ReminderTiming) Minutes() int {
	switch t {
	case Timing15m:
		return 15
	case Timing1h:
		return 60
	case Timing3d:
		return 3 * 24 * 60
	default:
		return 24 * 60
	}
}

// NotificationPreferences are an owner's reminder settings.
type NotificationPreferences struct {
	OwnerID         string         `json:"owner_id" db:"owner_id"`
	ReminderEnabled bool           `json:"reminder_enabled" db:"reminder_enabled"`
	ReminderTiming  ReminderTiming `json:"reminder_timing" db:"reminder_timing"`
	EmailEnabled    bool           `json:"email_enabled" db:"email_enabled"`
	PushEnabled     bool           `json:"push_enabled" db:"push_enabled"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// DefaultNotificationPreferences is what a new owner starts with.
func DefaultNotificationPreferences(ownerID string) NotificationPreferences {
	return NotificationPreferences{
		OwnerID:         ownerID,
		ReminderEnabled: true,
		ReminderTiming:  Timing24h,
		EmailEnabled:    false,
		PushEnabled:     true,
	}
}
