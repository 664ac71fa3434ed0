// Package canvas adapts the Canvas LMS REST API to source.LMS.
package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/studysync/internal/source"
)

// Adapter implements source.LMS for Canvas.
type Adapter struct {
	client *Client
}

var _ source.LMS = (*Adapter)(nil)

// NewAdapter creates a new Canvas source adapter.
func NewAdapter(baseURL, token string, opts ...Option) *Adapter {
	return &Adapter{client: NewClient(baseURL, token, opts...)}
}

// TestConnection verifies the token by calling GET /api/v1/users/self.
func (a *Adapter) TestConnection(ctx context.Context) (source.Profile, error) {
	var u User
	if err := a.client.Get(ctx, "/api/v1/users/self", nil, &u); err != nil {
		return source.Profile{}, err
	}
	return source.Profile{ID: strconv.FormatInt(u.ID, 10), Name: u.Name}, nil
}

// ListCourses returns the caller's active courses.
func (a *Adapter) ListCourses(ctx context.Context) ([]source.RemoteCourse, error) {
	q := url.Values{}
	q.Set("enrollment_state", "active")
	courses, err := getAll[Course](ctx, a.client, "/api/v1/courses", q)
	if err != nil {
		return nil, err
	}

	out := make([]source.RemoteCourse, 0, len(courses))
	for _, c := range courses {
		out = append(out, source.RemoteCourse{
			ID:            strconv.FormatInt(c.ID, 10),
			Name:          c.Name,
			CourseCode:    c.CourseCode,
			WorkflowState: c.WorkflowState,
			StartAt:       c.StartAt,
			EndAt:         c.EndAt,
		})
	}
	return out, nil
}

// ListAssignments returns every assignment of a course.
func (a *Adapter) ListAssignments(ctx context.Context, courseID string) ([]source.RemoteAssignment, error) {
	path := fmt.Sprintf("/api/v1/courses/%s/assignments", url.PathEscape(courseID))
	q := url.Values{}
	q.Set("order_by", "due_at")
	items, err := getAll[Assignment](ctx, a.client, path, q)
	if err != nil {
		return nil, err
	}

	out := make([]source.RemoteAssignment, 0, len(items))
	for _, it := range items {
		ra := source.RemoteAssignment{
			ID:             strconv.FormatInt(it.ID, 10),
			CourseID:       courseID,
			Name:           it.Name,
			DueAt:          it.DueAt,
			PointsPossible: it.PointsPossible,
			HTMLURL:        it.HTMLURL,
		}
		if it.Description != nil {
			ra.Description = *it.Description
		}
		out = append(out, ra)
	}
	return out, nil
}

// GetSubmission fetches the caller's own submission for an assignment.
func (a *Adapter) GetSubmission(
	ctx context.Context,
	courseID, assignmentID string,
) (*source.RemoteSubmission, error) {
	path := fmt.Sprintf("/api/v1/courses/%s/assignments/%s/submissions/self",
		url.PathEscape(courseID), url.PathEscape(assignmentID))

	var s Submission
	if err := a.client.Get(ctx, path, nil, &s); err != nil {
		return nil, err
	}
	return &source.RemoteSubmission{
		WorkflowState: s.WorkflowState,
		SubmittedAt:   s.SubmittedAt,
		Score:         s.Score,
	}, nil
}

// ListAnnouncements returns the announcements of one course.
func (a *Adapter) ListAnnouncements(ctx context.Context, courseID string) ([]source.RemoteAnnouncement, error) {
	q := url.Values{}
	q.Add("context_codes[]", "course_"+courseID)
	items, err := getAll[DiscussionTopic](ctx, a.client, "/api/v1/announcements", q)
	if err != nil {
		return nil, err
	}

	out := make([]source.RemoteAnnouncement, 0, len(items))
	for _, it := range items {
		ra := source.RemoteAnnouncement{
			ID:       strconv.FormatInt(it.ID, 10),
			CourseID: courseID,
			Title:    it.Title,
			Message:  it.Message,
			HTMLURL:  it.HTMLURL,
			PostedAt: it.PostedAt,
		}
		if it.Author != nil {
			ra.AuthorName = it.Author.DisplayName
		}
		out = append(out, ra)
	}
	return out, nil
}

// ListEnrollments returns the caller's student enrollments with grades.
func (a *Adapter) ListEnrollments(ctx context.Context) ([]source.RemoteEnrollment, error) {
	q := url.Values{}
	q.Add("type[]", "StudentEnrollment")
	q.Add("state[]", "active")
	items, err := getAll[Enrollment](ctx, a.client, "/api/v1/users/self/enrollments", q)
	if err != nil {
		return nil, err
	}

	out := make([]source.RemoteEnrollment, 0, len(items))
	for _, it := range items {
		re := source.RemoteEnrollment{
			ID:       strconv.FormatInt(it.ID, 10),
			CourseID: strconv.FormatInt(it.CourseID, 10),
		}
		if g := it.Grades; g != nil {
			re.CurrentScore = g.CurrentScore
			re.FinalScore = g.FinalScore
			re.CurrentGrade = deref(g.CurrentGrade)
			re.FinalGrade = deref(g.FinalGrade)
		}
		out = append(out, re)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
