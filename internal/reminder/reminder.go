// Package reminder turns an owner's notification preferences into the
// reminder overrides attached to calendar events.
package reminder

import "github.com/nhle/studysync/internal/model"

const (
	MethodPopup = "popup"
	MethodEmail = "email"
)

// Override is a single reminder: how, and how many minutes before the event.
type Override struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// Spec is the full reminder configuration of an event. An empty spec means
// the event carries no reminders.
type Spec struct {
	Overrides []Override `json:"overrides"`
}

// Empty reports whether the spec has no reminders.
func (s Spec) Empty() bool {
	return len(s.Overrides) == 0
}

// Resolve maps preferences to a reminder spec. Nil preferences yield a
// single popup one day ahead; disabled reminders yield an empty spec.
func Resolve(prefs *model.NotificationPreferences) Spec {
	if prefs == nil {
		return Spec{Overrides: []Override{{Method: MethodPopup, Minutes: model.Timing24h.Minutes()}}}
	}
	if !prefs.ReminderEnabled {
		return Spec{}
	}

	minutes := prefs.ReminderTiming.Minutes()
	spec := Spec{Overrides: []Override{{Method: MethodPopup, Minutes: minutes}}}
	if prefs.EmailEnabled {
		spec.Overrides = append(spec.Overrides, Override{Method: MethodEmail, Minutes: minutes})
	}
	return spec
}
