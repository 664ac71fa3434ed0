package sync

import (
	"context"
	"net/http"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/credential"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
	"github.com/nhle/studysync/internal/testutil"
)

const owner = "owner-1"

// fakeLMS serves canned data. Errors are keyed by operation and id.
type fakeLMS struct {
	mu            gosync.Mutex
	profile       source.Profile
	courses       []source.RemoteCourse
	assignments   map[string][]source.RemoteAssignment
	submissions   map[string]*source.RemoteSubmission
	announcements map[string][]source.RemoteAnnouncement
	enrollments   []source.RemoteEnrollment
	errs          map[string]error
	submissionHit int
}

func newFakeLMS() *fakeLMS {
	return &fakeLMS{
		profile:       source.Profile{ID: "u1", Name: "Ada Student"},
		assignments:   map[string][]source.RemoteAssignment{},
		submissions:   map[string]*source.RemoteSubmission{},
		announcements: map[string][]source.RemoteAnnouncement{},
		errs:          map[string]error{},
	}
}

func (f *fakeLMS) err(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[key]
}

func (f *fakeLMS) TestConnection(context.Context) (source.Profile, error) {
	return f.profile, f.err("test")
}

func (f *fakeLMS) ListCourses(context.Context) ([]source.RemoteCourse, error) {
	return f.courses, f.err("courses")
}

func (f *fakeLMS) ListAssignments(_ context.Context, courseID string) ([]source.RemoteAssignment, error) {
	return f.assignments[courseID], f.err("assignments:" + courseID)
}

func (f *fakeLMS) GetSubmission(_ context.Context, _, assignmentID string) (*source.RemoteSubmission, error) {
	f.mu.Lock()
	f.submissionHit++
	f.mu.Unlock()
	if err := f.err("submission:" + assignmentID); err != nil {
		return nil, err
	}
	sub, ok := f.submissions[assignmentID]
	if !ok {
		return nil, &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusNotFound}
	}
	return sub, nil
}

func (f *fakeLMS) ListAnnouncements(_ context.Context, courseID string) ([]source.RemoteAnnouncement, error) {
	return f.announcements[courseID], f.err("announcements:" + courseID)
}

func (f *fakeLMS) ListEnrollments(context.Context) ([]source.RemoteEnrollment, error) {
	return f.enrollments, f.err("enrollments")
}

// seed fills the fake with one course of n assignments, one announcement
// and one grade.
func (f *fakeLMS) seed(n int, now time.Time) {
	f.courses = []source.RemoteCourse{{ID: "c1", Name: "Biology 101", CourseCode: "BIO101"}}
	var list []source.RemoteAssignment
	for i := 1; i <= n; i++ {
		due := now.Add(time.Duration(i) * 48 * time.Hour)
		list = append(list, source.RemoteAssignment{
			ID:          idFor("a", i),
			CourseID:    "c1",
			Name:        idFor("Lab ", i),
			Description: "<p>Do lab " + idFor("", i) + "</p>",
			DueAt:       &due,
			HTMLURL:     "https://lms.example/courses/c1/assignments/" + idFor("a", i),
		})
	}
	f.assignments["c1"] = list
	f.announcements["c1"] = []source.RemoteAnnouncement{{ID: "n1", CourseID: "c1", Title: "Welcome"}}
	score := 91.5
	f.enrollments = []source.RemoteEnrollment{{ID: "e1", CourseID: "c1", CurrentScore: &score, CurrentGrade: "A-"}}
}

func idFor(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

type harness struct {
	store    *store.SQLiteStore
	vault    *credential.Vault
	lms      *fakeLMS
	ingestor *Ingestor
	now      time.Time
	dialed   []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: testutil.NewTestStore(t),
		vault: credential.NewVault(keyring.NewArrayKeyring(nil)),
		lms:   newFakeLMS(),
		now:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	dial := func(baseURL, token string) source.LMS {
		h.dialed = append(h.dialed, baseURL+"|"+token)
		return h.lms
	}
	h.ingestor = NewIngestor(h.store, h.vault, dial, nil, WithSubmissionConcurrency(3))
	h.ingestor.now = func() time.Time { return h.now }
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	_, err := h.ingestor.Connect(context.Background(), owner, "https://lms.example/", "secret-token")
	require.NoError(t, err)
}

func (h *harness) counts(t *testing.T) store.MirrorCounts {
	t.Helper()
	c, err := h.store.CountMirrored(context.Background(), owner)
	require.NoError(t, err)
	return c
}
