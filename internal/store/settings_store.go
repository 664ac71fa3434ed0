package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/studysync/internal/model"
)

const calendarSettingsColumns = `owner_id, calendar_id, calendar_name, connected,
	sync_enabled, last_sync_at, created_at, updated_at`

// GetCalendarSettings returns an owner's calendar connection, or nil if the
// owner never connected one.
func (s *SQLiteStore) GetCalendarSettings(
	ctx context.Context,
	ownerID string,
) (*model.CalendarSettings, error) {
	cs, err := getOptional(func(dest *model.CalendarSettings) error {
		return s.db.GetContext(ctx, dest,
			"SELECT "+calendarSettingsColumns+" FROM calendar_settings WHERE owner_id = ?", ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting calendar settings for %s: %w", ownerID, err)
	}
	return cs, nil
}

// UpsertCalendarSettings inserts or replaces an owner's calendar connection.
// The last sync stamp is preserved; use TouchCalendarSync to move it.
func (s *SQLiteStore) UpsertCalendarSettings(ctx context.Context, cs model.CalendarSettings) error {
	if cs.OwnerID == "" {
		return fmt.Errorf("calendar settings owner must not be empty")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_settings (`+calendarSettingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			calendar_id = excluded.calendar_id,
			calendar_name = excluded.calendar_name,
			connected = excluded.connected,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at`,
		cs.OwnerID, cs.CalendarID, cs.CalendarName,
		boolToInt(cs.Connected), boolToInt(cs.SyncEnabled),
		cs.LastSyncAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting calendar settings for %s: %w", cs.OwnerID, err)
	}
	return nil
}

// TouchCalendarSync stamps the owner's last calendar sync time.
func (s *SQLiteStore) TouchCalendarSync(ctx context.Context, ownerID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE calendar_settings SET last_sync_at = ?, updated_at = ? WHERE owner_id = ?",
		at.UTC(), time.Now().UTC(), ownerID)
	if err != nil {
		return fmt.Errorf("touching calendar sync for %s: %w", ownerID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("calendar settings", ownerID)
	}
	return nil
}

const lmsConnectionColumns = `owner_id, base_url, credential_key, user_name, connected,
	sync_enabled, last_sync_at, created_at, updated_at`

// GetLMSConnection returns an owner's LMS connection, or nil if none exists.
func (s *SQLiteStore) GetLMSConnection(ctx context.Context, ownerID string) (*model.LMSConnection, error) {
	conn, err := getOptional(func(dest *model.LMSConnection) error {
		return s.db.GetContext(ctx, dest,
			"SELECT "+lmsConnectionColumns+" FROM lms_connections WHERE owner_id = ?", ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting lms connection for %s: %w", ownerID, err)
	}
	return conn, nil
}

// UpsertLMSConnection inserts or replaces an owner's LMS connection. The
// last sync stamp is preserved; use TouchLMSSync to move it.
func (s *SQLiteStore) UpsertLMSConnection(ctx context.Context, conn model.LMSConnection) error {
	if conn.OwnerID == "" {
		return fmt.Errorf("lms connection owner must not be empty")
	}
	if conn.BaseURL == "" {
		return fmt.Errorf("lms connection base url must not be empty")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lms_connections (`+lmsConnectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			base_url = excluded.base_url,
			credential_key = excluded.credential_key,
			user_name = excluded.user_name,
			connected = excluded.connected,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at`,
		conn.OwnerID, conn.BaseURL, conn.CredentialKey, conn.UserName,
		boolToInt(conn.Connected), boolToInt(conn.SyncEnabled),
		conn.LastSyncAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting lms connection for %s: %w", conn.OwnerID, err)
	}
	return nil
}

// ListLMSConnections returns all LMS connections. With onlyActive, only
// connections that are connected and have sync enabled are returned.
func (s *SQLiteStore) ListLMSConnections(ctx context.Context, onlyActive bool) ([]model.LMSConnection, error) {
	query := "SELECT " + lmsConnectionColumns + " FROM lms_connections"
	if onlyActive {
		query += " WHERE connected = 1 AND sync_enabled = 1"
	}
	query += " ORDER BY owner_id"

	var out []model.LMSConnection
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("listing lms connections: %w", err)
	}
	return out, nil
}

// TouchLMSSync stamps the owner's last LMS sync time.
func (s *SQLiteStore) TouchLMSSync(ctx context.Context, ownerID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE lms_connections SET last_sync_at = ?, updated_at = ? WHERE owner_id = ?",
		at.UTC(), time.Now().UTC(), ownerID)
	if err != nil {
		return fmt.Errorf("touching lms sync for %s: %w", ownerID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return notFound("lms connection", ownerID)
	}
	return nil
}

const preferencesColumns = `owner_id, reminder_enabled, reminder_timing, email_enabled,
	push_enabled, updated_at`

// GetNotificationPreferences returns an owner's reminder preferences. An
// owner without a row gets the defaults, which are persisted on first read.
func (s *SQLiteStore) GetNotificationPreferences(
	ctx context.Context,
	ownerID string,
) (*model.NotificationPreferences, error) {
	p, err := getOptional(func(dest *model.NotificationPreferences) error {
		return s.db.GetContext(ctx, dest,
			"SELECT "+preferencesColumns+" FROM notification_preferences WHERE owner_id = ?", ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("getting notification preferences for %s: %w", ownerID, err)
	}
	if p != nil {
		return p, nil
	}

	def := model.DefaultNotificationPreferences(ownerID)
	def.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (`+preferencesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO NOTHING`,
		def.OwnerID, boolToInt(def.ReminderEnabled), def.ReminderTiming,
		boolToInt(def.EmailEnabled), boolToInt(def.PushEnabled), def.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating default notification preferences for %s: %w", ownerID, err)
	}
	return &def, nil
}

// UpsertNotificationPreferences saves an owner's reminder preferences.
func (s *SQLiteStore) UpsertNotificationPreferences(ctx context.Context, p model.NotificationPreferences) error {
	if p.OwnerID == "" {
		return fmt.Errorf("notification preferences owner must not be empty")
	}
	if p.ReminderTiming == "" {
		p.ReminderTiming = model.Timing24h
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (`+preferencesColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			reminder_enabled = excluded.reminder_enabled,
			reminder_timing = excluded.reminder_timing,
			email_enabled = excluded.email_enabled,
			push_enabled = excluded.push_enabled,
			updated_at = excluded.updated_at`,
		p.OwnerID, boolToInt(p.ReminderEnabled), p.ReminderTiming,
		boolToInt(p.EmailEnabled), boolToInt(p.PushEnabled), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting notification preferences for %s: %w", p.OwnerID, err)
	}
	return nil
}
