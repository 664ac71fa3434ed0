package canvas

import "time"

// User is the response from GET /api/v1/users/self.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Course is a single course from GET /api/v1/courses.
type Course struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	CourseCode    string     `json:"course_code"`
	WorkflowState string     `json:"workflow_state"`
	StartAt       *time.Time `json:"start_at"`
	EndAt         *time.Time `json:"end_at"`
}

// Assignment is a single assignment from
// GET /api/v1/courses/:course_id/assignments.
type Assignment struct {
	ID             int64      `json:"id"`
	CourseID       int64      `json:"course_id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	DueAt          *time.Time `json:"due_at"`
	PointsPossible *float64   `json:"points_possible"`
	HTMLURL        string     `json:"html_url"`
}

// Submission is the response from
// GET /api/v1/courses/:course_id/assignments/:id/submissions/self.
type Submission struct {
	ID            int64      `json:"id"`
	WorkflowState string     `json:"workflow_state"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	Score         *float64   `json:"score"`
}

// DiscussionTopic is an announcement from GET /api/v1/announcements.
type DiscussionTopic struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	HTMLURL     string     `json:"html_url"`
	PostedAt    *time.Time `json:"posted_at"`
	ContextCode string     `json:"context_code"`
	Author      *struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

// Enrollment is a single enrollment from
// GET /api/v1/users/self/enrollments.
type Enrollment struct {
	ID       int64   `json:"id"`
	CourseID int64   `json:"course_id"`
	Type     string  `json:"type"`
	Grades   *Grades `json:"grades"`
}

// Grades is the grade summary embedded in an enrollment.
type Grades struct {
	CurrentScore *float64 `json:"current_score"`
	FinalScore   *float64 `json:"final_score"`
	CurrentGrade *string  `json:"current_grade"`
	FinalGrade   *string  `json:"final_grade"`
}
