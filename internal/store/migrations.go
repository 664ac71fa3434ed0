package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                TEXT PRIMARY KEY,
	owner_id          TEXT NOT NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'todo'
		CHECK(status IN ('todo', 'in-progress', 'completed')),
	priority          TEXT NOT NULL DEFAULT 'medium'
		CHECK(priority IN ('low', 'medium', 'high')),
	due_date          DATETIME,
	calendar_event_id TEXT,
	last_synced_at    DATETIME,
	subtasks          TEXT NOT NULL DEFAULT '[]',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);

CREATE TABLE IF NOT EXISTS event_mappings (
	task_id     TEXT PRIMARY KEY REFERENCES tasks(id) ON DELETE CASCADE,
	owner_id    TEXT NOT NULL,
	event_id    TEXT NOT NULL,
	calendar_id TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL,
	UNIQUE(calendar_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_event_mappings_owner ON event_mappings(owner_id);

CREATE TABLE IF NOT EXISTS calendar_settings (
	owner_id      TEXT PRIMARY KEY,
	calendar_id   TEXT NOT NULL DEFAULT '',
	calendar_name TEXT NOT NULL DEFAULT '',
	connected     INTEGER NOT NULL DEFAULT 0 CHECK(connected IN (0, 1)),
	sync_enabled  INTEGER NOT NULL DEFAULT 0 CHECK(sync_enabled IN (0, 1)),
	last_sync_at  DATETIME,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_preferences (
	owner_id         TEXT PRIMARY KEY,
	reminder_enabled INTEGER NOT NULL DEFAULT 1 CHECK(reminder_enabled IN (0, 1)),
	reminder_timing  TEXT NOT NULL DEFAULT '24h'
		CHECK(reminder_timing IN ('15m', '1h', '24h', '3d')),
	email_enabled    INTEGER NOT NULL DEFAULT 0 CHECK(email_enabled IN (0, 1)),
	push_enabled     INTEGER NOT NULL DEFAULT 1 CHECK(push_enabled IN (0, 1)),
	updated_at       DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS lms_connections (
	owner_id       TEXT PRIMARY KEY,
	base_url       TEXT NOT NULL,
	credential_key TEXT NOT NULL,
	user_name      TEXT NOT NULL DEFAULT '',
	connected      INTEGER NOT NULL DEFAULT 0 CHECK(connected IN (0, 1)),
	sync_enabled   INTEGER NOT NULL DEFAULT 0 CHECK(sync_enabled IN (0, 1)),
	last_sync_at   DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lms_courses (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	remote_id      TEXT NOT NULL,
	name           TEXT NOT NULL,
	course_code    TEXT NOT NULL DEFAULT '',
	workflow_state TEXT NOT NULL DEFAULT '',
	start_at       DATETIME,
	end_at         DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL,
	UNIQUE(owner_id, remote_id)
);

CREATE TABLE IF NOT EXISTS lms_assignments (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	remote_id        TEXT NOT NULL,
	course_remote_id TEXT NOT NULL,
	course_name      TEXT NOT NULL DEFAULT '',
	course_code      TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	due_at           DATETIME,
	points_possible  REAL,
	html_url         TEXT NOT NULL DEFAULT '',
	submitted        INTEGER NOT NULL DEFAULT 0 CHECK(submitted IN (0, 1)),
	submitted_at     DATETIME,
	score            REAL,
	synced_to_task   INTEGER NOT NULL DEFAULT 0 CHECK(synced_to_task IN (0, 1)),
	task_id          TEXT REFERENCES tasks(id) ON DELETE SET NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE(owner_id, remote_id)
);

CREATE INDEX IF NOT EXISTS idx_lms_assignments_due ON lms_assignments(owner_id, due_at);
CREATE INDEX IF NOT EXISTS idx_lms_assignments_synced ON lms_assignments(owner_id, synced_to_task);

CREATE TABLE IF NOT EXISTS lms_announcements (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	remote_id        TEXT NOT NULL,
	course_remote_id TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	message          TEXT NOT NULL DEFAULT '',
	author_name      TEXT NOT NULL DEFAULT '',
	html_url         TEXT NOT NULL DEFAULT '',
	posted_at        DATETIME,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE(owner_id, remote_id)
);

CREATE TABLE IF NOT EXISTS lms_grades (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	remote_id        TEXT NOT NULL,
	course_remote_id TEXT NOT NULL,
	course_name      TEXT NOT NULL DEFAULT '',
	current_score    REAL,
	final_score      REAL,
	current_grade    TEXT NOT NULL DEFAULT '',
	final_grade      TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE(owner_id, remote_id)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
