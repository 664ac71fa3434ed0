package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/studysync/internal/calendar"
	"github.com/nhle/studysync/internal/model"
	lmssync "github.com/nhle/studysync/internal/sync"
	"github.com/nhle/studysync/internal/theme"
)

// row is one label/value line of a text report.
type row struct {
	label string
	value string
}

// Output writes command results as JSON or as a styled text report.
type Output struct {
	Format string
	Writer io.Writer
}

// Emit writes data as JSON, or renders title and rows otherwise.
func (o Output) Emit(data any, title string, rows []row) error {
	return o.emit(data, renderPanel(title, rows, nil))
}

// EmitReport is Emit for batch results; the text form lists errs.
func (o Output) EmitReport(data any, title string, rows []row, errs []model.SyncError) error {
	return o.emit(data, renderPanel(title, rows, errorLines(errs)))
}

func (o Output) emit(data any, text string) error {
	if o.Format == "json" {
		enc := json.NewEncoder(o.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	_, err := fmt.Fprintln(o.Writer, text)
	return err
}

func errorLines(errs []model.SyncError) []string {
	if len(errs) == 0 {
		return []string{theme.OKStyle.Render("no errors")}
	}
	lines := []string{theme.ErrorStyle.Render(strconv.Itoa(len(errs)) + " error(s)")}
	for _, e := range errs {
		lines = append(lines, "  "+e.Error())
	}
	return lines
}

func renderPanel(title string, rows []row, tail []string) string {
	lines := make([]string, 0, len(rows)+len(tail))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, theme.LabelStyle.Render(r.label), r.value))
	}
	lines = append(lines, tail...)
	return lipgloss.JoinVertical(lipgloss.Left,
		theme.HeaderStyle.Render(title),
		theme.PanelStyle.Render(strings.Join(lines, "\n")),
	)
}

func ingestRows(r *lmssync.IngestReport) []row {
	return []row{
		{"courses", strconv.Itoa(r.Courses)},
		{"assignments", strconv.Itoa(r.Assignments)},
		{"announcements", strconv.Itoa(r.Announcements)},
		{"grades", strconv.Itoa(r.Grades)},
		{"took", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
	}
}

func bridgeRows(r *lmssync.BridgeReport) []row {
	return []row{{"tasks created", strconv.Itoa(r.Created)}}
}

func resyncRows(r *calendar.ResyncReport) []row {
	return []row{
		{"created", strconv.Itoa(r.Created)},
		{"updated", strconv.Itoa(r.Updated)},
		{"adopted", strconv.Itoa(r.Adopted)},
		{"removed", strconv.Itoa(r.Removed)},
	}
}
