// Package api exposes the engine over HTTP. Handlers are thin: they
// resolve the owner, decode parameters, call one operation and encode its
// result in a {"data": ...} envelope.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nhle/studysync/internal/calendar"
	"github.com/nhle/studysync/internal/events"
	"github.com/nhle/studysync/internal/store"
	lmssync "github.com/nhle/studysync/internal/sync"
	"github.com/nhle/studysync/internal/tasks"
)

// CalendarAuth runs the calendar OAuth consent flow. gcal.Opener
// implements it.
type CalendarAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, ownerID, code string) error
}

// Deps are the services the router dispatches to. CalendarAuth, Scheduler
// and Hub are optional.
type Deps struct {
	Store        store.Store
	Tasks        *tasks.Service
	Calendar     *calendar.Syncer
	CalendarAuth CalendarAuth
	Ingestor     *lmssync.Ingestor
	Bridge       *lmssync.Bridge
	Scheduler    *lmssync.Scheduler
	Hub          *events.Hub
	Logger       *slog.Logger
}

type server struct {
	Deps
	logger  *slog.Logger
	publish events.Publisher
}

// NewRouter builds the HTTP router.
func NewRouter(d Deps) *mux.Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{Deps: d, logger: logger.With("component", "api"), publish: events.Discard}
	if d.Hub != nil {
		s.publish = d.Hub
	}

	r := mux.NewRouter()
	r.Use(logRequests(s.logger))
	r.Use(recovery(s.logger))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	owned := api.NewRoute().Subrouter()
	owned.Use(requireOwner)

	// Tasks
	owned.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	owned.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	owned.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	owned.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPatch)
	owned.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)
	owned.HandleFunc("/tasks/{id}/status", s.setTaskStatus).Methods(http.MethodPut)
	owned.HandleFunc("/tasks/{id}/subtasks", s.addSubtask).Methods(http.MethodPost)
	owned.HandleFunc("/tasks/{id}/subtasks/{sid}/toggle", s.toggleSubtask).Methods(http.MethodPost)
	owned.HandleFunc("/tasks/{id}/subtasks/{sid}", s.removeSubtask).Methods(http.MethodDelete)

	// Calendar
	owned.HandleFunc("/calendar", s.getCalendar).Methods(http.MethodGet)
	owned.HandleFunc("/calendar/auth-url", s.calendarAuthURL).Methods(http.MethodGet)
	owned.HandleFunc("/calendar/authorize", s.calendarAuthorize).Methods(http.MethodPost)
	owned.HandleFunc("/calendar/connect", s.connectCalendar).Methods(http.MethodPost)
	owned.HandleFunc("/calendar/disconnect", s.disconnectCalendar).Methods(http.MethodPost)
	owned.HandleFunc("/calendar/sync-enabled", s.setCalendarSyncEnabled).Methods(http.MethodPut)
	owned.HandleFunc("/calendar/resync", s.resyncCalendar).Methods(http.MethodPost)

	// LMS
	owned.HandleFunc("/lms", s.getLMS).Methods(http.MethodGet)
	owned.HandleFunc("/lms/connect", s.connectLMS).Methods(http.MethodPost)
	owned.HandleFunc("/lms/disconnect", s.disconnectLMS).Methods(http.MethodPost)
	owned.HandleFunc("/lms/sync-enabled", s.setLMSSyncEnabled).Methods(http.MethodPut)
	owned.HandleFunc("/lms/sync", s.syncLMS).Methods(http.MethodPost)
	owned.HandleFunc("/lms/courses", s.listCourses).Methods(http.MethodGet)
	owned.HandleFunc("/lms/assignments", s.listAssignments).Methods(http.MethodGet)
	owned.HandleFunc("/lms/assignments/sync-to-tasks", s.syncToTasks).Methods(http.MethodPost)
	owned.HandleFunc("/lms/announcements", s.listAnnouncements).Methods(http.MethodGet)
	owned.HandleFunc("/lms/grades", s.listGrades).Methods(http.MethodGet)

	// Preferences
	owned.HandleFunc("/preferences", s.getPreferences).Methods(http.MethodGet)
	owned.HandleFunc("/preferences", s.putPreferences).Methods(http.MethodPut)

	// Live events
	if d.Hub != nil {
		owned.HandleFunc("/ws", d.Hub.Handler(ownerFrom)).Methods(http.MethodGet)
	}

	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.Hub != nil {
		body["clients"] = s.Hub.ClientCount()
	}
	writeData(w, http.StatusOK, body)
}
