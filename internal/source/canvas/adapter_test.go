package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/studysync/internal/source"
)

func newTestAdapter(t *testing.T, h http.Handler, opts ...Option) *Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAdapter(srv.URL+"/", "secret", append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
}

func TestTestConnection_SendsBearerToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/self", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, `{"errors":[{"message":"Invalid access token."}]}`, http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 12, "name": "Ada Lovelace"}`)
	})
	a := newTestAdapter(t, mux)

	p, err := a.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, source.Profile{ID: "12", Name: "Ada Lovelace"}, p)

	bad := NewAdapter(a.client.baseURL, "wrong", WithHTTPClient(a.client.httpClient))
	_, err = bad.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsUnauthorized(err))
	re, ok := source.AsRemoteError(err)
	require.True(t, ok)
	assert.Contains(t, re.Body, "Invalid access token")
}

func TestListCourses_FollowsLinkHeader(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		assert.Equal(t, "active", r.URL.Query().Get("enrollment_state"))
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(
				`<%s/api/v1/courses?enrollment_state=active&page=2&per_page=100>; rel="next", <%s/api/v1/courses?enrollment_state=active&page=1&per_page=100>; rel="first"`,
				srvURL, srvURL))
			fmt.Fprint(w, `[{"id": 1, "name": "Biology", "course_code": "BIO101"}]`)
			return
		}
		fmt.Fprint(w, `[{"id": 2, "name": "Chemistry", "course_code": "CHEM200"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	a := NewAdapter(srv.URL, "secret", WithHTTPClient(srv.Client()))
	courses, err := a.ListCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "1", courses[0].ID)
	assert.Equal(t, "CHEM200", courses[1].CourseCode)
}

func TestListCourses_StopsAtMaxPages(t *testing.T) {
	var calls int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/courses?page=%d>; rel="next"`, srvURL, n+1))
		fmt.Fprintf(w, `[{"id": %d, "name": "c"}]`, n)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	a := NewAdapter(srv.URL, "secret", WithHTTPClient(srv.Client()), WithPaging(100, 3))
	courses, err := a.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Len(t, courses, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListCourses_RejectsForeignNextLink(t *testing.T) {
	var foreignHits int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&foreignHits, 1)
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(foreign.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/courses?page=2>; rel="next"`, foreign.URL))
		fmt.Fprint(w, `[{"id": 1, "name": "Biology"}]`)
	})
	a := newTestAdapter(t, mux)

	_, err := a.ListCourses(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "next page link")
	assert.Zero(t, atomic.LoadInt32(&foreignHits))
}

func TestListAssignments_MapsNullableFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses/7/assignments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 42, "name": "Lab 1", "description": "<p>Do it</p>", "due_at": "2026-03-01T23:59:00Z",
			 "points_possible": 10, "html_url": "https://lms.example/courses/7/assignments/42"},
			{"id": 43, "name": "Reading", "description": null, "due_at": null}
		]`)
	})
	a := newTestAdapter(t, mux)

	items, err := a.ListAssignments(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "42", items[0].ID)
	assert.Equal(t, "7", items[0].CourseID)
	assert.Equal(t, "<p>Do it</p>", items[0].Description)
	require.NotNil(t, items[0].DueAt)
	assert.Equal(t, 2026, items[0].DueAt.Year())
	require.NotNil(t, items[0].PointsPossible)
	assert.InDelta(t, 10.0, *items[0].PointsPossible, 0.001)

	assert.Nil(t, items[1].DueAt)
	assert.Empty(t, items[1].Description)
}

func TestGetSubmission(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/courses/7/assignments/42/submissions/self", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "workflow_state": "graded", "submitted_at": "2026-02-28T10:00:00Z", "score": 9.5}`)
	})
	mux.HandleFunc("GET /api/v1/courses/7/assignments/43/submissions/self", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"The specified resource does not exist."}]}`, http.StatusNotFound)
	})
	a := newTestAdapter(t, mux)

	s, err := a.GetSubmission(context.Background(), "7", "42")
	require.NoError(t, err)
	assert.True(t, s.Submitted())
	require.NotNil(t, s.Score)

	_, err = a.GetSubmission(context.Background(), "7", "43")
	assert.True(t, source.IsNotFound(err))
}

func TestListAnnouncements_ScopedToCourse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/announcements", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"course_7"}, r.URL.Query()["context_codes[]"])
		fmt.Fprint(w, `[{"id": 5, "title": "Welcome", "message": "<p>Hi</p>", "author": {"display_name": "Prof"}}]`)
	})
	a := newTestAdapter(t, mux)

	items, err := a.ListAnnouncements(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Prof", items[0].AuthorName)
	assert.Equal(t, "7", items[0].CourseID)
}

func TestListEnrollments_Grades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/self/enrollments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": 100, "course_id": 7, "type": "StudentEnrollment",
			 "grades": {"current_score": 91.2, "final_score": 88, "current_grade": "A-", "final_grade": null}},
			{"id": 101, "course_id": 8, "type": "StudentEnrollment"}
		]`)
	})
	a := newTestAdapter(t, mux)

	items, err := a.ListEnrollments(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A-", items[0].CurrentGrade)
	assert.Empty(t, items[0].FinalGrade)
	assert.Nil(t, items[1].CurrentScore)
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{`<https://x/a?page=2>; rel="next"`, "https://x/a?page=2"},
		{`<https://x/a?page=1>; rel="current", <https://x/a?page=2>; rel="next"`, "https://x/a?page=2"},
		{`<https://x/a?page=3>; rel="last"`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextLink(tt.header), tt.header)
	}
}
