package model

import "time"

// LMSConnection is an owner's connection to the remote learning-management
// system. The access credential itself is kept in the credential vault under
// CredentialKey.
type LMSConnection struct {
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	BaseURL       string     `json:"base_url" db:"base_url"`
	CredentialKey string     `json:"-" db:"credential_key"`
	UserName      string     `json:"user_name" db:"user_name"`
	Connected     bool       `json:"connected" db:"connected"`
	SyncEnabled   bool       `json:"sync_enabled" db:"sync_enabled"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Course is a mirrored LMS course.
type Course struct {
	ID            string     `json:"id" db:"id"`
	OwnerID       string     `json:"owner_id" db:"owner_id"`
	RemoteID      string     `json:"remote_id" db:"remote_id"`
	Name          string     `json:"name" db:"name"`
	CourseCode    string     `json:"course_code" db:"course_code"`
	WorkflowState string     `json:"workflow_state" db:"workflow_state"`
	StartAt       *time.Time `json:"start_at,omitempty" db:"start_at"`
	EndAt         *time.Time `json:"end_at,omitempty" db:"end_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Assignment is a mirrored LMS assignment. SyncedToTask and TaskID record
// its one-way conversion into a local task.
type Assignment struct {
	ID             string     `json:"id" db:"id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	RemoteID       string     `json:"remote_id" db:"remote_id"`
	CourseRemoteID string     `json:"course_remote_id" db:"course_remote_id"`
	CourseName     string     `json:"course_name" db:"course_name"`
	CourseCode     string     `json:"course_code" db:"course_code"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	DueAt          *time.Time `json:"due_at,omitempty" db:"due_at"`
	PointsPossible *float64   `json:"points_possible,omitempty" db:"points_possible"`
	HTMLURL        string     `json:"html_url" db:"html_url"`
	Submitted      bool       `json:"submitted" db:"submitted"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	Score          *float64   `json:"score,omitempty" db:"score"`
	SyncedToTask   bool       `json:"synced_to_task" db:"synced_to_task"`
	TaskID         *string    `json:"task_id,omitempty" db:"task_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// SubmissionUnknown marks a refresh whose submission lookup failed;
	// the stored submission fields are then left as they are.
	SubmissionUnknown bool `json:"-" db:"-"`
}

// Announcement is a mirrored LMS course announcement.
type Announcement struct {
	ID             string     `json:"id" db:"id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	RemoteID       string     `json:"remote_id" db:"remote_id"`
	CourseRemoteID string     `json:"course_remote_id" db:"course_remote_id"`
	Title          string     `json:"title" db:"title"`
	Message        string     `json:"message" db:"message"`
	AuthorName     string     `json:"author_name" db:"author_name"`
	HTMLURL        string     `json:"html_url" db:"html_url"`
	PostedAt       *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Grade is a mirrored enrollment grade summary for one course.
type Grade struct {
	ID             string    `json:"id" db:"id"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	RemoteID       string    `json:"remote_id" db:"remote_id"`
	CourseRemoteID string    `json:"course_remote_id" db:"course_remote_id"`
	CourseName     string    `json:"course_name" db:"course_name"`
	CurrentScore   *float64  `json:"current_score,omitempty" db:"current_score"`
	FinalScore     *float64  `json:"final_score,omitempty" db:"final_score"`
	CurrentGrade   string    `json:"current_grade" db:"current_grade"`
	FinalGrade     string    `json:"final_grade" db:"final_grade"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
