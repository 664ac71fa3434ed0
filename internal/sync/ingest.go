// Package sync pulls the owner's LMS data into mirrored tables and turns
// mirrored assignments into local tasks.
//
// Ingestion walks courses, then assignments with their submissions, then
// announcements, then grades. One bad item or course is recorded in the
// report and never stops the others. Only a missing or disabled connection,
// or a rejected course listing, fails the whole run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/studysync/internal/credential"
	"github.com/nhle/studysync/internal/events"
	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/source/canvas"
	"github.com/nhle/studysync/internal/store"
)

var (
	// ErrNotConnected is returned when the owner has no usable LMS
	// connection or credential.
	ErrNotConnected = errors.New("lms not connected")

	// ErrSyncDisabled is returned when the owner paused LMS sync.
	ErrSyncDisabled = errors.New("lms sync disabled")

	// ErrMissingCredential is returned by Connect when the base URL or
	// token is blank.
	ErrMissingCredential = errors.New("lms base url and token are required")
)

// Secrets stores LMS access tokens. credential.Vault implements it.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Dialer builds an LMS client for a base URL and access token.
type Dialer func(baseURL, token string) source.LMS

// CanvasDialer returns a Dialer for the Canvas REST API.
func CanvasDialer(opts ...canvas.Option) Dialer {
	return func(baseURL, token string) source.LMS {
		return canvas.NewAdapter(baseURL, token, opts...)
	}
}

// IngestReport is the outcome of one SyncAll run.
type IngestReport struct {
	Courses       int               `json:"courses"`
	Assignments   int               `json:"assignments"`
	Announcements int               `json:"announcements"`
	Grades        int               `json:"grades"`
	Errors        []model.SyncError `json:"errors"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

func (r *IngestReport) fail(scope, id, name string, err error) {
	r.Errors = append(r.Errors, model.NewSyncError(scope, id, name, err))
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor)

// WithSubmissionConcurrency bounds the parallel submission lookups per
// course. Values below 1 mean sequential.
func WithSubmissionConcurrency(n int) IngestOption {
	return func(in *Ingestor) {
		if n < 1 {
			n = 1
		}
		in.concurrency = n
	}
}

// WithPublisher sends a completion event after every run.
func WithPublisher(p events.Publisher) IngestOption {
	return func(in *Ingestor) {
		in.publish = p
	}
}

// Ingestor mirrors an owner's LMS data into the store.
type Ingestor struct {
	store       store.Store
	secrets     Secrets
	dial        Dialer
	concurrency int
	publish     events.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewIngestor creates an Ingestor. A nil logger uses slog.Default().
func NewIngestor(st store.Store, secrets Secrets, dial Dialer, logger *slog.Logger, opts ...IngestOption) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Ingestor{
		store:       st,
		secrets:     secrets,
		dial:        dial,
		concurrency: 1,
		publish:     events.Discard,
		logger:      logger.With("component", "lms"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Connect verifies token against baseURL, stores it and enables sync.
func (in *Ingestor) Connect(ctx context.Context, ownerID, baseURL, token string) (*model.LMSConnection, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	token = strings.TrimSpace(token)
	if baseURL == "" || token == "" {
		return nil, ErrMissingCredential
	}

	profile, err := in.dial(baseURL, token).TestConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("testing lms connection: %w", err)
	}

	key := credential.LMSKey(ownerID)
	if err := in.secrets.Set(key, token); err != nil {
		return nil, err
	}

	err = in.store.UpsertLMSConnection(ctx, model.LMSConnection{
		OwnerID:       ownerID,
		BaseURL:       baseURL,
		CredentialKey: key,
		UserName:      profile.Name,
		Connected:     true,
		SyncEnabled:   true,
	})
	if err != nil {
		return nil, err
	}

	in.logger.Info("lms connected", "owner", ownerID, "base_url", baseURL, "user", profile.Name)
	return in.store.GetLMSConnection(ctx, ownerID)
}

// Disconnect forgets the stored token and stops sync. Mirrored rows are
// kept.
func (in *Ingestor) Disconnect(ctx context.Context, ownerID string) error {
	conn, err := in.store.GetLMSConnection(ctx, ownerID)
	if err != nil || conn == nil {
		return err
	}
	if err := in.secrets.Delete(conn.CredentialKey); err != nil {
		return err
	}
	conn.Connected = false
	conn.SyncEnabled = false
	return in.store.UpsertLMSConnection(ctx, *conn)
}

// SetSyncEnabled pauses or resumes sync for a connected owner.
func (in *Ingestor) SetSyncEnabled(ctx context.Context, ownerID string, enabled bool) error {
	conn, err := in.store.GetLMSConnection(ctx, ownerID)
	if err != nil {
		return err
	}
	if conn == nil || !conn.Connected {
		return ErrNotConnected
	}
	conn.SyncEnabled = enabled
	return in.store.UpsertLMSConnection(ctx, *conn)
}

// open resolves the owner's connection into a client.
func (in *Ingestor) open(ctx context.Context, ownerID string) (*model.LMSConnection, source.LMS, error) {
	conn, err := in.store.GetLMSConnection(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	if conn == nil || !conn.Connected {
		return nil, nil, ErrNotConnected
	}
	if !conn.SyncEnabled {
		return nil, nil, ErrSyncDisabled
	}

	token, err := in.secrets.Get(conn.CredentialKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: no stored token", ErrNotConnected)
	}
	if err != nil {
		return nil, nil, err
	}
	return conn, in.dial(conn.BaseURL, token), nil
}

// SyncAll mirrors every course, assignment, announcement and grade of the
// owner. Per-item failures are collected in the report; the returned error
// is reserved for connection problems.
func (in *Ingestor) SyncAll(ctx context.Context, ownerID string) (*IngestReport, error) {
	_, client, err := in.open(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{StartedAt: in.now().UTC(), Errors: []model.SyncError{}}
	log := in.logger.With("owner", ownerID)

	remote, err := client.ListCourses(ctx)
	if err != nil {
		in.publish.Publish(ownerID, events.TypeLMSSyncFailed, map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("listing courses: %w", err)
	}

	courses := in.syncCourses(ctx, ownerID, remote, report)
	for _, c := range courses {
		in.syncAssignments(ctx, ownerID, client, c, report)
	}
	for _, c := range courses {
		in.syncAnnouncements(ctx, ownerID, client, c, report)
	}
	in.syncGrades(ctx, ownerID, client, courses, report)

	report.FinishedAt = in.now().UTC()
	if err := in.store.TouchLMSSync(ctx, ownerID, report.FinishedAt); err != nil {
		return nil, err
	}

	log.Info("lms sync finished",
		"courses", report.Courses,
		"assignments", report.Assignments,
		"announcements", report.Announcements,
		"grades", report.Grades,
		"errors", len(report.Errors),
		"took", report.FinishedAt.Sub(report.StartedAt))
	in.publish.Publish(ownerID, events.TypeLMSSyncCompleted, report)
	return report, nil
}

// syncCourses upserts each course and returns every listed course, so
// that children of a course whose row failed are still attempted.
func (in *Ingestor) syncCourses(
	ctx context.Context,
	ownerID string,
	remote []source.RemoteCourse,
	report *IngestReport,
) []source.RemoteCourse {
	for _, rc := range remote {
		err := in.store.UpsertCourse(ctx, model.Course{
			OwnerID:       ownerID,
			RemoteID:      rc.ID,
			Name:          rc.Name,
			CourseCode:    rc.CourseCode,
			WorkflowState: rc.WorkflowState,
			StartAt:       rc.StartAt,
			EndAt:         rc.EndAt,
		})
		if err != nil {
			report.fail("course", rc.ID, rc.Name, err)
			continue
		}
		report.Courses++
	}
	return remote
}

func (in *Ingestor) syncAssignments(
	ctx context.Context,
	ownerID string,
	client source.LMS,
	course source.RemoteCourse,
	report *IngestReport,
) {
	remote, err := client.ListAssignments(ctx, course.ID)
	if err != nil {
		report.fail("course_assignments", course.ID, course.Name, err)
		return
	}

	subs, subErrs := in.fetchSubmissions(ctx, client, course.ID, remote)

	for i, ra := range remote {
		if subErrs[i] != nil {
			report.fail("submission", ra.ID, ra.Name, subErrs[i])
		}
		a := model.Assignment{
			OwnerID:        ownerID,
			RemoteID:       ra.ID,
			CourseRemoteID: course.ID,
			CourseName:     course.Name,
			CourseCode:     course.CourseCode,
			Name:           ra.Name,
			Description:    ra.Description,
			DueAt:          ra.DueAt,
			PointsPossible: ra.PointsPossible,
			HTMLURL:        ra.HTMLURL,
			// Keep what an earlier run stored rather than clearing it.
			SubmissionUnknown: subErrs[i] != nil,
		}
		if sub := subs[i]; sub != nil {
			a.Submitted = sub.Submitted()
			a.SubmittedAt = sub.SubmittedAt
			a.Score = sub.Score
		}
		if err := in.store.UpsertAssignment(ctx, a); err != nil {
			report.fail("assignment", ra.ID, ra.Name, err)
			continue
		}
		report.Assignments++
	}
}

// fetchSubmissions looks up the caller's submission for every assignment
// with bounded parallelism. Results are positional. A missing submission is
// nil without an error.
func (in *Ingestor) fetchSubmissions(
	ctx context.Context,
	client source.LMS,
	courseID string,
	assignments []source.RemoteAssignment,
) ([]*source.RemoteSubmission, []error) {
	subs := make([]*source.RemoteSubmission, len(assignments))
	errs := make([]error, len(assignments))

	var g errgroup.Group
	g.SetLimit(in.concurrency)
	for i, ra := range assignments {
		g.Go(func() error {
			sub, err := client.GetSubmission(ctx, courseID, ra.ID)
			switch {
			case source.IsNotFound(err):
			case err != nil:
				errs[i] = err
			default:
				subs[i] = sub
			}
			// Never abort siblings.
			return nil
		})
	}
	_ = g.Wait()
	return subs, errs
}

func (in *Ingestor) syncAnnouncements(
	ctx context.Context,
	ownerID string,
	client source.LMS,
	course source.RemoteCourse,
	report *IngestReport,
) {
	remote, err := client.ListAnnouncements(ctx, course.ID)
	if err != nil {
		report.fail("course_announcements", course.ID, course.Name, err)
		return
	}
	for _, ra := range remote {
		err := in.store.UpsertAnnouncement(ctx, model.Announcement{
			OwnerID:        ownerID,
			RemoteID:       ra.ID,
			CourseRemoteID: course.ID,
			Title:          ra.Title,
			Message:        ra.Message,
			AuthorName:     ra.AuthorName,
			HTMLURL:        ra.HTMLURL,
			PostedAt:       ra.PostedAt,
		})
		if err != nil {
			report.fail("announcement", ra.ID, ra.Title, err)
			continue
		}
		report.Announcements++
	}
}

func (in *Ingestor) syncGrades(
	ctx context.Context,
	ownerID string,
	client source.LMS,
	courses []source.RemoteCourse,
	report *IngestReport,
) {
	remote, err := client.ListEnrollments(ctx)
	if err != nil {
		report.fail("grades", "", "", err)
		return
	}

	names := make(map[string]string, len(courses))
	for _, c := range courses {
		names[c.ID] = c.Name
	}

	for _, e := range remote {
		err := in.store.UpsertGrade(ctx, model.Grade{
			OwnerID:        ownerID,
			RemoteID:       e.ID,
			CourseRemoteID: e.CourseID,
			CourseName:     names[e.CourseID],
			CurrentScore:   e.CurrentScore,
			FinalScore:     e.FinalScore,
			CurrentGrade:   e.CurrentGrade,
			FinalGrade:     e.FinalGrade,
		})
		if err != nil {
			report.fail("grade", e.ID, names[e.CourseID], err)
			continue
		}
		report.Grades++
	}
}
