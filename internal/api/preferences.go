package api

import (
	"fmt"
	"net/http"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/reminder"
)

// preferencesView carries the stored preferences and the reminders they
// resolve to.
type preferencesView struct {
	model.NotificationPreferences
	Reminders reminder.Spec `json:"reminders"`
}

func (s *server) getPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetNotificationPreferences(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, preferencesView{NotificationPreferences: *p, Reminders: orNoReminders(reminder.Resolve(p))})
}

// putPreferences applies a partial update over the current preferences.
func (s *server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReminderEnabled *bool                 `json:"reminder_enabled"`
		ReminderTiming  *model.ReminderTiming `json:"reminder_timing"`
		EmailEnabled    *bool                 `json:"email_enabled"`
		PushEnabled     *bool                 `json:"push_enabled"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}

	owner := ownerFrom(r)
	p, err := s.Store.GetNotificationPreferences(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if body.ReminderEnabled != nil {
		p.ReminderEnabled = *body.ReminderEnabled
	}
	if body.ReminderTiming != nil {
		switch *body.ReminderTiming {
		case model.Timing15m, model.Timing1h, model.Timing24h, model.Timing3d:
			p.ReminderTiming = *body.ReminderTiming
		default:
			s.fail(w, r, fmt.Errorf("%w: unknown reminder timing %q", errBadInput, *body.ReminderTiming))
			return
		}
	}
	if body.EmailEnabled != nil {
		p.EmailEnabled = *body.EmailEnabled
	}
	if body.PushEnabled != nil {
		p.PushEnabled = *body.PushEnabled
	}

	if err := s.Store.UpsertNotificationPreferences(r.Context(), *p); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err = s.Store.GetNotificationPreferences(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, preferencesView{NotificationPreferences: *p, Reminders: orNoReminders(reminder.Resolve(p))})
}

func orNoReminders(s reminder.Spec) reminder.Spec {
	s.Overrides = orEmpty(s.Overrides)
	return s
}
