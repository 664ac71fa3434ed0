package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/studysync/internal/events"
	"github.com/nhle/studysync/internal/markup"
	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/store"
	"github.com/nhle/studysync/internal/tasks"
)

// TaskWriter creates and deletes tasks. tasks.Service implements it, so
// every bridged task also reaches the calendar.
type TaskWriter interface {
	Create(ctx context.Context, ownerID string, in tasks.CreateInput) (*model.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// BridgeOptions selects which mirrored assignments to convert.
type BridgeOptions struct {
	// AssignmentIDs restricts conversion to these local assignment ids.
	AssignmentIDs []string `json:"assignment_ids,omitempty"`

	// IncludePast also converts assignments whose due date has passed.
	IncludePast bool `json:"include_past,omitempty"`
}

// BridgeReport is the outcome of one SyncToTasks run.
type BridgeReport struct {
	Created int               `json:"created"`
	TaskIDs []string          `json:"task_ids"`
	Errors  []model.SyncError `json:"errors"`
}

// Bridge converts mirrored assignments into tasks, once each.
type Bridge struct {
	store   store.Store
	tasks   TaskWriter
	publish events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewBridge creates a Bridge. publish may be nil.
func NewBridge(st store.Store, tw TaskWriter, publish events.Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if publish == nil {
		publish = events.Discard
	}
	return &Bridge{
		store:   st,
		tasks:   tw,
		publish: publish,
		logger:  logger.With("component", "bridge"),
		now:     time.Now,
	}
}

// SyncToTasks converts every selected assignment not yet converted. Failures
// are recorded per assignment name and never stop the run. Converted
// assignments are skipped on later runs, so repeating a call creates
// nothing new.
func (b *Bridge) SyncToTasks(ctx context.Context, ownerID string, opts BridgeOptions) (*BridgeReport, error) {
	now := b.now()
	filter := store.AssignmentFilter{
		IDs:          opts.AssignmentIDs,
		OnlyUnsynced: true,
	}
	if !opts.IncludePast {
		filter.DueAfter = &now
	}

	assignments, err := b.store.ListAssignments(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	report := &BridgeReport{TaskIDs: []string{}, Errors: []model.SyncError{}}
	for _, a := range assignments {
		taskID, err := b.convert(ctx, ownerID, a, now)
		if err != nil {
			report.Errors = append(report.Errors, model.NewSyncError("assignment", a.ID, a.Name, err))
			continue
		}
		report.Created++
		report.TaskIDs = append(report.TaskIDs, taskID)
	}

	b.logger.Info("assignments bridged",
		"owner", ownerID,
		"selected", len(assignments),
		"created", report.Created,
		"errors", len(report.Errors))
	if report.Created > 0 {
		b.publish.Publish(ownerID, events.TypeTasksBridged, report)
	}
	return report, nil
}

func (b *Bridge) convert(ctx context.Context, ownerID string, a model.Assignment, now time.Time) (string, error) {
	task, err := b.tasks.Create(ctx, ownerID, tasks.CreateInput{
		Title:       TaskTitle(a),
		Description: markup.Describe(a.Description, markup.Footer{URL: a.HTMLURL, CourseName: a.CourseName}),
		Priority:    PriorityForDue(a.DueAt, now),
		DueDate:     a.DueAt,
	})
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	err = b.store.MarkAssignmentSynced(ctx, ownerID, a.ID, task.ID)
	if errors.Is(err, store.ErrAlreadySynced) {
		// A concurrent run converted it first; keep a single task.
		if derr := b.tasks.Delete(ctx, ownerID, task.ID); derr != nil {
			b.logger.Warn("removing duplicate task", "owner", ownerID, "task", task.ID, "err", derr)
		}
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("marking converted: %w", err)
	}
	return task.ID, nil
}

// TaskTitle prefixes the assignment name with its course code, or the
// course name when there is no code.
func TaskTitle(a model.Assignment) string {
	label := strings.TrimSpace(a.CourseCode)
	if label == "" {
		label = strings.TrimSpace(a.CourseName)
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "Untitled assignment"
	}
	if label == "" {
		return name
	}
	return "[" + label + "] " + name
}
