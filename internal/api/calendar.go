package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/studysync/internal/events"
	"github.com/nhle/studysync/internal/model"
)

var errNoCalendarAuth = errors.New("calendar authorization is not configured")

type syncEnabledBody struct {
	Enabled *bool `json:"enabled"`
}

func (b syncEnabledBody) value() (bool, error) {
	if b.Enabled == nil {
		return false, fmt.Errorf("%w: enabled is required", errBadInput)
	}
	return *b.Enabled, nil
}

func (s *server) getCalendar(w http.ResponseWriter, r *http.Request) {
	cs, err := s.Store.GetCalendarSettings(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cs == nil {
		cs = &model.CalendarSettings{OwnerID: ownerFrom(r)}
	}
	writeData(w, http.StatusOK, cs)
}

func (s *server) calendarAuthURL(w http.ResponseWriter, r *http.Request) {
	if s.CalendarAuth == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, errNoCalendarAuth.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]string{"url": s.CalendarAuth.AuthURL(ownerFrom(r))})
}

func (s *server) calendarAuthorize(w http.ResponseWriter, r *http.Request) {
	if s.CalendarAuth == nil {
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, errNoCalendarAuth.Error())
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Code == "" {
		s.fail(w, r, fmt.Errorf("%w: code is required", errBadInput))
		return
	}
	if err := s.CalendarAuth.Exchange(r.Context(), ownerFrom(r), body.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) connectCalendar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CalendarID string `json:"calendar_id"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	cs, err := s.Calendar.Connect(r.Context(), ownerFrom(r), body.CalendarID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cs)
}

func (s *server) disconnectCalendar(w http.ResponseWriter, r *http.Request) {
	if err := s.Calendar.Disconnect(r.Context(), ownerFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) setCalendarSyncEnabled(w http.ResponseWriter, r *http.Request) {
	var body syncEnabledBody
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	enabled, err := body.value()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.Calendar.SetSyncEnabled(r.Context(), ownerFrom(r), enabled); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) resyncCalendar(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	report, err := s.Calendar.ResyncAll(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.publish.Publish(owner, events.TypeCalendarResynced, report)
	writeData(w, http.StatusOK, report)
}
