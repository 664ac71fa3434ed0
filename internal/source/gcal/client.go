// Package gcal adapts the Google Calendar API v3 to source.Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/studysync/internal/source"
)

// taskIDProperty is the private extended property holding the local task id.
const taskIDProperty = "studysync_task_id"

// listPageSize is the events.list page size; the API caps it at 2500.
const listPageSize = 250

// Client implements source.Calendar on top of a calendar.Service.
type Client struct {
	srv *calendar.Service
}

var _ source.Calendar = (*Client)(nil)

// NewClient creates a calendar client that sends requests through
// httpClient. A non-empty endpoint overrides the API base URL.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint string) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// TestConnection fetches the calendar's metadata.
func (c *Client) TestConnection(ctx context.Context, calendarID string) (source.CalendarInfo, error) {
	cal, err := c.srv.Calendars.Get(calendarID).Context(ctx).Do()
	if err != nil {
		return source.CalendarInfo{}, remoteError("test connection", err)
	}
	return source.CalendarInfo{
		ID:       cal.Id,
		Summary:  cal.Summary,
		TimeZone: cal.TimeZone,
	}, nil
}

// ListEvents returns every non-cancelled event in the calendar, following
// page tokens.
func (c *Client) ListEvents(ctx context.Context, calendarID string) ([]source.RemoteEvent, error) {
	var out []source.RemoteEvent
	err := c.srv.Events.List(calendarID).
		MaxResults(listPageSize).
		ShowDeleted(false).
		Pages(ctx, func(page *calendar.Events) error {
			for _, ev := range page.Items {
				out = append(out, fromEvent(ev))
			}
			return nil
		})
	if err != nil {
		return nil, remoteError("list events", err)
	}
	return out, nil
}

// CreateEvent inserts an event and returns its id.
func (c *Client) CreateEvent(
	ctx context.Context,
	calendarID string,
	payload source.EventPayload,
) (string, error) {
	ev, err := c.srv.Events.Insert(calendarID, toEvent(payload)).Context(ctx).Do()
	if err != nil {
		return "", remoteError("create event", err)
	}
	return ev.Id, nil
}

// UpdateEvent replaces an event's content.
func (c *Client) UpdateEvent(
	ctx context.Context,
	calendarID, eventID string,
	payload source.EventPayload,
) error {
	_, err := c.srv.Events.Update(calendarID, eventID, toEvent(payload)).Context(ctx).Do()
	if err != nil {
		return remoteError("update event", err)
	}
	return nil
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if err := c.srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return remoteError("delete event", err)
	}
	return nil
}

// toEvent builds an all-day event spanning payload.Date.
func toEvent(p source.EventPayload) *calendar.Event {
	day := time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)

	overrides := make([]*calendar.EventReminder, 0, len(p.Reminders))
	for _, r := range p.Reminders {
		overrides = append(overrides, &calendar.EventReminder{
			Method:  r.Method,
			Minutes: int64(r.Minutes),
		})
	}

	return &calendar.Event{
		Summary:     p.Summary,
		Description: p.Description,
		ColorId:     p.ColorID,
		Start:       &calendar.EventDateTime{Date: day.Format(time.DateOnly)},
		End:         &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(time.DateOnly)},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides:  overrides,
			// Both fields are sent even when empty so the calendar's
			// default reminders are never applied.
			ForceSendFields: []string{"UseDefault", "Overrides"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{taskIDProperty: p.TaskID},
		},
	}
}

func fromEvent(ev *calendar.Event) source.RemoteEvent {
	out := source.RemoteEvent{
		ID:      ev.Id,
		Summary: ev.Summary,
		Status:  ev.Status,
	}
	if ev.Start != nil {
		switch {
		case ev.Start.Date != "":
			if d, err := time.Parse(time.DateOnly, ev.Start.Date); err == nil {
				out.Date = d
			}
		case ev.Start.DateTime != "":
			if d, err := time.Parse(time.RFC3339, ev.Start.DateTime); err == nil {
				out.Date = d
			}
		}
	}
	if ev.ExtendedProperties != nil {
		out.TaskID = ev.ExtendedProperties.Private[taskIDProperty]
	}
	return out
}

// remoteError converts a googleapi.Error into a source.RemoteError. Other
// errors (transport, context) pass through wrapped.
func remoteError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return &source.RemoteError{
			Kind:       source.KindCalendar,
			Op:         op,
			StatusCode: gerr.Code,
			Body:       body,
		}
	}
	return fmt.Errorf("calendar %s: %w", op, err)
}
