package api

import (
	"net/http"
	"strings"

	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/store"
	lmssync "github.com/nhle/studysync/internal/sync"
)

// lmsOverview is the connection state plus mirrored row counts.
type lmsOverview struct {
	Connection *model.LMSConnection `json:"connection"`
	Counts     store.MirrorCounts   `json:"counts"`
	Status     *lmssync.SyncStatus  `json:"status,omitempty"`
}

func (s *server) getLMS(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	conn, err := s.Store.GetLMSConnection(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	counts, err := s.Store.CountMirrored(r.Context(), owner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := lmsOverview{Connection: conn, Counts: counts}
	if s.Scheduler != nil {
		if st, ok := s.Scheduler.Status(owner); ok {
			out.Status = &st
		}
	}
	writeData(w, http.StatusOK, out)
}

func (s *server) connectLMS(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BaseURL string `json:"base_url"`
		Token   string `json:"token"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	conn, err := s.Ingestor.Connect(r.Context(), ownerFrom(r), body.BaseURL, body.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, conn)
}

func (s *server) disconnectLMS(w http.ResponseWriter, r *http.Request) {
	if err := s.Ingestor.Disconnect(r.Context(), ownerFrom(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) setLMSSyncEnabled(w http.ResponseWriter, r *http.Request) {
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
	if err := s.Ingestor.SetSyncEnabled(r.Context(), ownerFrom(r), enabled); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// syncLMS runs SyncAll in the request. Per-item failures are part of the
// report, so a partially failed run still answers 200.
func (s *server) syncLMS(w http.ResponseWriter, r *http.Request) {
	report, err := s.Ingestor.SyncAll(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *server) syncToTasks(w http.ResponseWriter, r *http.Request) {
	var opts lmssync.BridgeOptions
	if err := decode(r, &opts); err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.Bridge.SyncToTasks(r.Context(), ownerFrom(r), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (s *server) listCourses(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListCourses(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *server) listAssignments(w http.ResponseWriter, r *http.Request) {
	var filter store.AssignmentFilter
	q := r.URL.Query()
	if v := q.Get("ids"); v != "" {
		filter.IDs = strings.Split(v, ",")
	}
	filter.OnlyUnsynced = q.Get("unsynced") == "true"

	list, err := s.Store.ListAssignments(r.Context(), ownerFrom(r), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *server) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListAnnouncements(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

func (s *server) listGrades(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.ListGrades(r.Context(), ownerFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orEmpty(list))
}

// orEmpty keeps empty lists encoding as [] rather than null.
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
