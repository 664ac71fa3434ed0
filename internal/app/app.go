// Package app wires configuration, persistence, credentials and the remote
// adapters into the services every entry point shares.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/studysync/internal/api"
	"github.com/nhle/studysync/internal/calendar"
	"github.com/nhle/studysync/internal/credential"
	"github.com/nhle/studysync/internal/events"
	"github.com/nhle/studysync/internal/logging"
	"github.com/nhle/studysync/internal/model"
	"github.com/nhle/studysync/internal/source"
	"github.com/nhle/studysync/internal/source/canvas"
	"github.com/nhle/studysync/internal/source/gcal"
	"github.com/nhle/studysync/internal/store"
	lmssync "github.com/nhle/studysync/internal/sync"
	"github.com/nhle/studysync/internal/tasks"
)

// ErrCalendarUnconfigured is returned when no OAuth client secrets file
// is available for the calendar.
var ErrCalendarUnconfigured = errors.New("calendar client credentials are not configured")

// App holds the long-lived services. Close releases them.
type App struct {
	Config    *model.AppConfig
	Logger    *slog.Logger
	Store     *store.SQLiteStore
	Vault     *credential.Vault
	Hub       *events.Hub
	Tasks     *tasks.Service
	Calendar  *calendar.Syncer
	Ingestor  *lmssync.Ingestor
	Bridge    *lmssync.Bridge
	Scheduler *lmssync.Scheduler

	// CalendarAuth is nil when the calendar is unconfigured.
	CalendarAuth *gcal.Opener

	logOut io.Closer
}

// New builds an App from cfg. The database directory is created when
// missing.
func New(cfg *model.AppConfig) (*App, error) {
	logger, logOut, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = logOut.Close()
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		_ = logOut.Close()
		return nil, err
	}

	vault, err := credential.Open(cfg.Keyring)
	if err != nil {
		_ = st.Close()
		_ = logOut.Close()
		return nil, err
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  st,
		Vault:  vault,
		Hub:    events.NewHub(logger),
		logOut: logOut,
	}

	var opener calendar.Opener = calendar.OpenerFunc(func(context.Context, string) (source.Calendar, error) {
		return nil, ErrCalendarUnconfigured
	})
	if oauth, err := gcal.ConfigFromFile(cfg.Calendar.CredentialsFile); err != nil {
		logger.Warn("calendar sync unavailable", "err", err)
	} else {
		a.CalendarAuth = gcal.NewOpener(oauth, vault, credential.CalendarKey, cfg.Calendar.Endpoint)
		opener = a.CalendarAuth
	}

	a.Calendar = calendar.NewSyncer(st, opener, logger)
	a.Tasks = tasks.NewService(st, a.Calendar, logger)

	dial := lmssync.CanvasDialer(
		canvas.WithTimeout(time.Duration(cfg.LMS.TimeoutSec)*time.Second),
		canvas.WithPaging(cfg.LMS.PageSize, cfg.LMS.MaxPages),
	)
	a.Ingestor = lmssync.NewIngestor(st, vault, dial, logger,
		lmssync.WithSubmissionConcurrency(cfg.LMS.SubmissionConcurrency),
		lmssync.WithPublisher(a.Hub),
	)
	a.Bridge = lmssync.NewBridge(st, a.Tasks, a.Hub, logger)
	a.Scheduler = lmssync.NewScheduler(st, a.Ingestor, logger)
	return a, nil
}

// RouterDeps returns the HTTP router dependencies.
func (a *App) RouterDeps() api.Deps {
	d := api.Deps{
		Store:     a.Store,
		Tasks:     a.Tasks,
		Calendar:  a.Calendar,
		Ingestor:  a.Ingestor,
		Bridge:    a.Bridge,
		Scheduler: a.Scheduler,
		Hub:       a.Hub,
		Logger:    a.Logger,
	}
	if a.CalendarAuth != nil {
		d.CalendarAuth = a.CalendarAuth
	}
	return d
}

// Close stops the scheduler and releases the store and log file.
func (a *App) Close() error {
	a.Scheduler.Stop()
	err := a.Store.Close()
	if cerr := a.logOut.Close(); err == nil {
		err = cerr
	}
	return err
}
