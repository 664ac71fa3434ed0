package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/credential"
	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/store"
)

func TestConnect_StoresTokenAndEnables(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	conn, err := h.ingestor.Connect(ctx, owner, " https://lms.example/ ", " tok ")
	require.NoError(t, err)
	assert.Equal(t, "https://lms.example", conn.BaseURL)
	assert.Equal(t, "Ada Student", conn.UserName)
	assert.True(t, conn.Connected)
	assert.True(t, conn.SyncEnabled)
	assert.Equal(t, []string{"https://lms.example|tok"}, h.dialed)

	tok, err := h.vault.Get(credential.LMSKey(owner))
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestConnect_RejectedCredentialIsFatal(t *testing.T) {
	h := newHarness(t)
	h.lms.errs["test"] = &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusUnauthorized}

	_, err := h.ingestor.Connect(context.Background(), owner, "https://lms.example", "bad")
	require.Error(t, err)
	assert.True(t, source.IsUnauthorized(err))

	conn, err := h.store.GetLMSConnection(context.Background(), owner)
	require.NoError(t, err)
	assert.Nil(t, conn)
	_, err = h.vault.Get(credential.LMSKey(owner))
	require.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSyncAll_ConnectionErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.ingestor.SyncAll(ctx, owner)
	require.ErrorIs(t, err, ErrNotConnected)

	h.connect(t)
	require.NoError(t, h.ingestor.SetSyncEnabled(ctx, owner, false))
	_, err = h.ingestor.SyncAll(ctx, owner)
	require.ErrorIs(t, err, ErrSyncDisabled)

	require.NoError(t, h.ingestor.Disconnect(ctx, owner))
	_, err = h.ingestor.SyncAll(ctx, owner)
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, h.ingestor.SetSyncEnabled(ctx, owner, true), ErrNotConnected)
}

func TestSyncAll_MissingTokenIsNotConnected(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	require.NoError(t, h.vault.Delete(credential.LMSKey(owner)))

	_, err := h.ingestor.SyncAll(context.Background(), owner)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSyncAll_MirrorsEverything(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(3, h.now)
	submittedAt := h.now.Add(-time.Hour)
	score := 9.0
	h.lms.submissions["a1"] = &source.RemoteSubmission{WorkflowState: "graded", SubmittedAt: &submittedAt, Score: &score}

	report, err := h.ingestor.SyncAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Courses)
	assert.Equal(t, 3, report.Assignments)
	assert.Equal(t, 1, report.Announcements)
	assert.Equal(t, 1, report.Grades)
	assert.Empty(t, report.Errors, "a missing submission is not an error")

	list, err := h.store.ListAssignments(context.Background(), owner, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a1", list[0].RemoteID)
	assert.True(t, list[0].Submitted)
	require.NotNil(t, list[0].Score)
	assert.Equal(t, 9.0, *list[0].Score)
	assert.Equal(t, "BIO101", list[0].CourseCode)
	assert.Equal(t, "Biology 101", list[0].CourseName)
	assert.False(t, list[1].Submitted)

	grades, err := h.store.ListGrades(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "Biology 101", grades[0].CourseName)

	conn, err := h.store.GetLMSConnection(context.Background(), owner)
	require.NoError(t, err)
	require.NotNil(t, conn.LastSyncAt)
	assert.True(t, conn.LastSyncAt.Equal(h.now))
}

func TestSyncAll_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(4, h.now)
	ctx := context.Background()

	_, err := h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)
	first := h.counts(t)

	_, err = h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first, h.counts(t))
	assert.Equal(t, store.MirrorCounts{Courses: 1, Assignments: 4, Announcements: 1, Grades: 1}, first)
}

func TestSyncAll_SubmissionFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(5, h.now)
	h.lms.errs["submission:a3"] = errors.New("connection reset")

	report, err := h.ingestor.SyncAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Assignments)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "submission", report.Errors[0].Scope)
	assert.Equal(t, "Lab 3", report.Errors[0].Name)
	assert.Equal(t, 5, h.counts(t).Assignments)
	assert.Equal(t, 5, h.lms.submissionHit)
}

func TestSyncAll_SubmissionFailureKeepsStoredSubmission(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(2, h.now)
	score := 7.5
	h.lms.submissions["a1"] = &source.RemoteSubmission{WorkflowState: "graded", Score: &score}
	ctx := context.Background()

	_, err := h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)

	h.lms.errs["submission:a1"] = errors.New("connection reset")
	report, err := h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)

	list, err := h.store.ListAssignments(ctx, owner, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].RemoteID)
	assert.True(t, list[0].Submitted)
	require.NotNil(t, list[0].Score)
	assert.Equal(t, 7.5, *list[0].Score)
}

func TestSyncAll_CourseFailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(2, h.now)
	h.lms.courses = append(h.lms.courses, source.RemoteCourse{ID: "c2", Name: "Chemistry"})
	h.lms.assignments["c2"] = []source.RemoteAssignment{{ID: "b1", Name: "Titration"}}
	h.lms.errs["assignments:c1"] = &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusForbidden}
	h.lms.errs["announcements:c2"] = errors.New("timeout")
	h.lms.errs["enrollments"] = errors.New("timeout")

	report, err := h.ingestor.SyncAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Courses)
	assert.Equal(t, 1, report.Assignments)
	assert.Equal(t, 1, report.Announcements)
	assert.Equal(t, 0, report.Grades)

	scopes := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		scopes = append(scopes, e.Scope)
	}
	assert.ElementsMatch(t, []string{"course_assignments", "course_announcements", "grades"}, scopes)
}

func TestSyncAll_CourseListingFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.errs["courses"] = &source.RemoteError{Kind: source.KindLMS, StatusCode: http.StatusUnauthorized}

	_, err := h.ingestor.SyncAll(context.Background(), owner)
	require.Error(t, err)
	assert.True(t, source.IsUnauthorized(err))

	conn, err := h.store.GetLMSConnection(context.Background(), owner)
	require.NoError(t, err)
	assert.Nil(t, conn.LastSyncAt, "a failed run is not stamped")
}

func TestSyncAll_ReingestKeepsConversion(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	h.lms.seed(1, h.now)
	ctx := context.Background()

	_, err := h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)
	list, err := h.store.ListAssignments(ctx, owner, store.AssignmentFilter{})
	require.NoError(t, err)
	task, err := h.store.CreateTask(ctx, model.Task{OwnerID: owner, Title: "Lab 1"})
	require.NoError(t, err)
	require.NoError(t, h.store.MarkAssignmentSynced(ctx, owner, list[0].ID, task.ID))

	h.lms.assignments["c1"][0].Name = "Lab 1 (revised)"
	_, err = h.ingestor.SyncAll(ctx, owner)
	require.NoError(t, err)

	list, err = h.store.ListAssignments(ctx, owner, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Lab 1 (revised)", list[0].Name)
	assert.True(t, list[0].SyncedToTask)
	require.NotNil(t, list[0].TaskID)
	assert.Equal(t, task.ID, *list[0].TaskID)
}
