package sync

import (
	"math"
	"time"

	"github.com/nhle/studysync/internal/model"
)

// Urgency thresholds in whole days until due.
const (
	highWithinDays   = 3
	mediumWithinDays = 7
)

// PriorityForDue buckets an assignment by how soon it is due relative to
// now. Partial days round up, so something due in 49 hours is 3 days out.
// Overdue work is high; undated work is medium.
func PriorityForDue(due *time.Time, now time.Time) model.Priority {
	if due == nil {
		return model.PriorityMedium
	}
	days := DaysUntil(*due, now)
	switch {
	case days <= highWithinDays:
		return model.PriorityHigh
	case days <= mediumWithinDays:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// DaysUntil returns the number of started days between now and due.
// Negative values mean due is in the past.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}
