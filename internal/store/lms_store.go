package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/studysync/internal/model"
)

// Mirrored rows are keyed by (owner_id, remote_id). Re-ingesting the same
// remote item updates the existing row in place and keeps its local id and
// task conversion state.

const courseColumns = `id, owner_id, remote_id, name, course_code, workflow_state,
	start_at, end_at, created_at, updated_at`

// UpsertCourse inserts or refreshes a mirrored course.
func (s *SQLiteStore) UpsertCourse(ctx context.Context, c model.Course) error {
	if err := checkMirrorKey("course", c.OwnerID, c.RemoteID); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lms_courses (`+courseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, remote_id) DO UPDATE SET
			name = excluded.name,
			course_code = excluded.course_code,
			workflow_state = excluded.workflow_state,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			updated_at = excluded.updated_at`,
		uuid.New().String(), c.OwnerID, c.RemoteID, c.Name, c.CourseCode, c.WorkflowState,
		c.StartAt, c.EndAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting course %s: %w", c.RemoteID, err)
	}
	return nil
}

const assignmentColumns = `id, owner_id, remote_id, course_remote_id, course_name, course_code,
	name, description, due_at, points_possible, html_url, submitted, submitted_at, score,
	synced_to_task, task_id, created_at, updated_at`

// UpsertAssignment inserts or refreshes a mirrored assignment. The
// synced_to_task flag and task back-pointer are never overwritten here.
func (s *SQLiteStore) UpsertAssignment(ctx context.Context, a model.Assignment) error {
	if err := checkMirrorKey("assignment", a.OwnerID, a.RemoteID); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lms_assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
		ON CONFLICT(owner_id, remote_id) DO UPDATE SET
			course_remote_id = excluded.course_remote_id,
			course_name = excluded.course_name,
			course_code = excluded.course_code,
			name = excluded.name,
			description = excluded.description,
			due_at = excluded.due_at,
			points_possible = excluded.points_possible,
			html_url = excluded.html_url,
			submitted = CASE WHEN ? THEN lms_assignments.submitted ELSE excluded.submitted END,
			submitted_at = CASE WHEN ? THEN lms_assignments.submitted_at ELSE excluded.submitted_at END,
			score = CASE WHEN ? THEN lms_assignments.score ELSE excluded.score END,
			updated_at = excluded.updated_at`,
		uuid.New().String(), a.OwnerID, a.RemoteID, a.CourseRemoteID, a.CourseName, a.CourseCode,
		a.Name, a.Description, utcPtr(a.DueAt), a.PointsPossible, a.HTMLURL,
		boolToInt(a.Submitted), utcPtr(a.SubmittedAt), a.Score,
		now, now,
		a.SubmissionUnknown, a.SubmissionUnknown, a.SubmissionUnknown,
	)
	if err != nil {
		return fmt.Errorf("upserting assignment %s: %w", a.RemoteID, err)
	}
	return nil
}

const announcementColumns = `id, owner_id, remote_id, course_remote_id, title, message,
	author_name, html_url, posted_at, created_at, updated_at`

// UpsertAnnouncement inserts or refreshes a mirrored announcement.
func (s *SQLiteStore) UpsertAnnouncement(ctx context.Context, a model.Announcement) error {
	if err := checkMirrorKey("announcement", a.OwnerID, a.RemoteID); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lms_announcements (`+announcementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, remote_id) DO UPDATE SET
			course_remote_id = excluded.course_remote_id,
			title = excluded.title,
			message = excluded.message,
			author_name = excluded.author_name,
			html_url = excluded.html_url,
			posted_at = excluded.posted_at,
			updated_at = excluded.updated_at`,
		uuid.New().String(), a.OwnerID, a.RemoteID, a.CourseRemoteID, a.Title, a.Message,
		a.AuthorName, a.HTMLURL, utcPtr(a.PostedAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting announcement %s: %w", a.RemoteID, err)
	}
	return nil
}

const gradeColumns = `id, owner_id, remote_id, course_remote_id, course_name,
	current_score, final_score, current_grade, final_grade, created_at, updated_at`

// UpsertGrade inserts or refreshes a mirrored grade summary.
func (s *SQLiteStore) UpsertGrade(ctx context.Context, g model.Grade) error {
	if err := checkMirrorKey("grade", g.OwnerID, g.RemoteID); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lms_grades (`+gradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, remote_id) DO UPDATE SET
			course_remote_id = excluded.course_remote_id,
			course_name = excluded.course_name,
			current_score = excluded.current_score,
			final_score = excluded.final_score,
			current_grade = excluded.current_grade,
			final_grade = excluded.final_grade,
			updated_at = excluded.updated_at`,
		uuid.New().String(), g.OwnerID, g.RemoteID, g.CourseRemoteID, g.CourseName,
		g.CurrentScore, g.FinalScore, g.CurrentGrade, g.FinalGrade, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting grade %s: %w", g.RemoteID, err)
	}
	return nil
}

// ListCourses returns an owner's mirrored courses ordered by name.
func (s *SQLiteStore) ListCourses(ctx context.Context, ownerID string) ([]model.Course, error) {
	var out []model.Course
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+courseColumns+" FROM lms_courses WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return out, nil
}

// ListAssignments returns an owner's mirrored assignments matching the
// filter, earliest due first with undated assignments last.
func (s *SQLiteStore) ListAssignments(
	ctx context.Context,
	ownerID string,
	filter AssignmentFilter,
) ([]model.Assignment, error) {
	conditions := []string{"owner_id = ?"}
	args := []interface{}{ownerID}

	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conditions = append(conditions, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.OnlyUnsynced {
		conditions = append(conditions, "synced_to_task = 0")
	}

	query := "SELECT " + assignmentColumns + " FROM lms_assignments WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY due_at IS NULL, due_at, name"

	var rows []model.Assignment
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}

	// Timestamps are stored as text, so the due cutoff is applied here
	// rather than compared lexically in SQL.
	if filter.DueAfter == nil {
		return rows, nil
	}
	out := rows[:0]
	for _, a := range rows {
		if a.DueAt == nil || !a.DueAt.Before(*filter.DueAfter) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListAnnouncements returns an owner's mirrored announcements, newest first.
func (s *SQLiteStore) ListAnnouncements(ctx context.Context, ownerID string) ([]model.Announcement, error) {
	var out []model.Announcement
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+announcementColumns+" FROM lms_announcements WHERE owner_id = ? "+
			"ORDER BY posted_at IS NULL, posted_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing announcements: %w", err)
	}
	return out, nil
}

// ListGrades returns an owner's mirrored grade summaries.
func (s *SQLiteStore) ListGrades(ctx context.Context, ownerID string) ([]model.Grade, error) {
	var out []model.Grade
	err := s.db.SelectContext(ctx, &out,
		"SELECT "+gradeColumns+" FROM lms_grades WHERE owner_id = ? ORDER BY course_name", ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing grades: %w", err)
	}
	return out, nil
}

// MarkAssignmentSynced flags an assignment as converted and records the
// task it became. It succeeds only once per assignment.
func (s *SQLiteStore) MarkAssignmentSynced(ctx context.Context, ownerID, assignmentID, taskID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE lms_assignments SET synced_to_task = 1, task_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND synced_to_task = 0`,
		taskID, time.Now().UTC(), assignmentID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("marking assignment %s synced: %w", assignmentID, err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		"SELECT COUNT(*) FROM lms_assignments WHERE id = ? AND owner_id = ?",
		assignmentID, ownerID); err != nil {
		return fmt.Errorf("checking assignment %s: %w", assignmentID, err)
	}
	if exists == 0 {
		return notFound("assignment", assignmentID)
	}
	return fmt.Errorf("assignment %s: %w", assignmentID, ErrAlreadySynced)
}

// CountMirrored returns how many rows of each mirrored kind an owner has.
func (s *SQLiteStore) CountMirrored(ctx context.Context, ownerID string) (MirrorCounts, error) {
	var c MirrorCounts
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM lms_courses WHERE owner_id = ?),
			(SELECT COUNT(*) FROM lms_assignments WHERE owner_id = ?),
			(SELECT COUNT(*) FROM lms_announcements WHERE owner_id = ?),
			(SELECT COUNT(*) FROM lms_grades WHERE owner_id = ?)`,
		ownerID, ownerID, ownerID, ownerID,
	).Scan(&c.Courses, &c.Assignments, &c.Announcements, &c.Grades)
	if err != nil {
		return MirrorCounts{}, fmt.Errorf("counting mirrored rows: %w", err)
	}
	return c, nil
}

func checkMirrorKey(kind, ownerID, remoteID string) error {
	if ownerID == "" || remoteID == "" {
		return fmt.Errorf("%s requires owner and remote ids", kind)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
