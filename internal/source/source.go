// Package source defines the contracts for the remote systems the engine
// reconciles with: a calendar that mirrors tasks as events, and a
// learning-management system whose coursework is mirrored locally.
//
// Adapters are thin. They perform exactly one remote call per operation,
// never retry, and report any non-success HTTP status as a *RemoteError.
package source

import (
	"context"
	"time"
)

// Kind identifies a remote system.
type Kind string

const (
	KindCalendar Kind = "calendar"
	KindLMS      Kind = "lms"
)

// CalendarInfo describes a remote calendar returned by the connection probe.
type CalendarInfo struct {
	ID       string
	Summary  string
	TimeZone string
}

// Reminder is one reminder override attached to an event.
type Reminder struct {
	// Method is "popup" or "email".
	Method  string
	Minutes int
}

// EventPayload is the content written to a remote calendar event.
type EventPayload struct {
	Summary     string
	Description string

	// Date is the all-day date of the event; only the date part is used.
	Date time.Time

	ColorID string

	// Reminders replaces the calendar's default reminders. An empty slice
	// means no reminders at all.
	Reminders []Reminder

	// TaskID is stored as a private property so events can be matched back
	// to their task.
	TaskID string
}

// RemoteEvent is an event as listed from the remote calendar.
type RemoteEvent struct {
	ID      string
	Summary string
	Date    time.Time
	Status  string

	// TaskID is the private task back-reference, empty for events the
	// engine did not create.
	TaskID string
}

// Calendar is the remote calendar contract. The calendar id is the parent
// collection of every event operation.
type Calendar interface {
	// TestConnection verifies the credential and that calendarID exists.
	TestConnection(ctx context.Context, calendarID string) (CalendarInfo, error)

	// ListEvents returns the events in calendarID.
	ListEvents(ctx context.Context, calendarID string) ([]RemoteEvent, error)

	// CreateEvent creates an event and returns its remote id.
	CreateEvent(ctx context.Context, calendarID string, payload EventPayload) (string, error)

	// UpdateEvent overwrites an existing event.
	UpdateEvent(ctx context.Context, calendarID, eventID string, payload EventPayload) error

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// Profile is the authenticated LMS user.
type Profile struct {
	ID   string
	Name string
}

// RemoteCourse is a course as returned by the LMS.
type RemoteCourse struct {
	ID            string
	Name          string
	CourseCode    string
	WorkflowState string
	StartAt       *time.Time
	EndAt         *time.Time
}

// RemoteAssignment is an assignment as returned by the LMS. Description is
// the raw markup body.
type RemoteAssignment struct {
	ID             string
	CourseID       string
	Name           string
	Description    string
	DueAt          *time.Time
	PointsPossible *float64
	HTMLURL        string
}

// RemoteSubmission is the caller's own submission for one assignment.
type RemoteSubmission struct {
	WorkflowState string
	SubmittedAt   *time.Time
	Score         *float64
}

// Submitted reports whether the submission counts as handed in.
func (s *RemoteSubmission) Submitted() bool {
	if s == nil {
		return false
	}
	if s.SubmittedAt != nil {
		return true
	}
	switch s.WorkflowState {
	case "submitted", "graded", "pending_review":
		return true
	}
	return false
}

// RemoteAnnouncement is a course announcement as returned by the LMS.
type RemoteAnnouncement struct {
	ID         string
	CourseID   string
	Title      string
	Message    string
	AuthorName string
	HTMLURL    string
	PostedAt   *time.Time
}

// RemoteEnrollment carries the grade summary of one course enrollment.
type RemoteEnrollment struct {
	ID           string
	CourseID     string
	CurrentScore *float64
	FinalScore   *float64
	CurrentGrade string
	FinalGrade   string
}

// LMS is the remote learning-management contract. Courses are the parent
// collection of assignments and announcements.
type LMS interface {
	// TestConnection verifies the credential and returns the user it
	// belongs to.
	TestConnection(ctx context.Context) (Profile, error)

	ListCourses(ctx context.Context) ([]RemoteCourse, error)
	ListAssignments(ctx context.Context, courseID string) ([]RemoteAssignment, error)

	// GetSubmission fetches the caller's submission for one assignment.
	GetSubmission(ctx context.Context, courseID, assignmentID string) (*RemoteSubmission, error)

	ListAnnouncements(ctx context.Context, courseID string) ([]RemoteAnnouncement, error)

	// ListEnrollments returns the caller's student enrollments with grades.
	ListEnrollments(ctx context.Context) ([]RemoteEnrollment, error)
}
