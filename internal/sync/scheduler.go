package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nhle/studysync/internal/store"
)

// SyncState is the current state of one owner's LMS sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name.
func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SyncStatus is the last known outcome of an owner's LMS sync.
type SyncStatus struct {
	OwnerID  string        `json:"owner_id"`
	State    SyncState     `json:"state"`
	LastSync time.Time     `json:"last_sync,omitzero"`
	Report   *IngestReport `json:"report,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// runTimeout bounds one owner's scheduled run.
const runTimeout = 5 * time.Minute

// Syncer is what the scheduler drives. *Ingestor implements it.
type Syncer interface {
	SyncAll(ctx context.Context, ownerID string) (*IngestReport, error)
}

// Scheduler triggers SyncAll for every active LMS connection on a cron
// spec. It issues the same explicit calls a user would; runs for one owner
// never overlap.
type Scheduler struct {
	store    store.Store
	syncer   Syncer
	cron     *cron.Cron
	logger   *slog.Logger
	mu       gosync.Mutex
	statuses map[string]*SyncStatus
	running  bool
}

// NewScheduler creates a Scheduler. It does nothing until Start.
func NewScheduler(st store.Store, syncer Syncer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    st,
		syncer:   syncer,
		logger:   logger.With("component", "scheduler"),
		statuses: make(map[string]*SyncStatus),
	}
}

// Start registers spec (standard five-field cron or a descriptor such as
// "@every 30m") and starts the cron loop. An empty spec leaves the
// scheduler disabled.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		s.logger.Info("scheduled lms sync disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	// A stopped cron keeps its entries, so every Start gets a fresh one.
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.RunAll(context.Background()) }); err != nil {
		return fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	s.cron = c
	s.cron.Start()
	s.running = true
	s.logger.Info("scheduled lms sync started", "spec", spec)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduled lms sync stopped")
}

// RunAll syncs every connected, sync-enabled owner in turn.
func (s *Scheduler) RunAll(ctx context.Context) {
	conns, err := s.store.ListLMSConnections(ctx, true)
	if err != nil {
		s.logger.Error("listing lms connections", "err", err)
		return
	}
	for _, c := range conns {
		s.RunOwner(ctx, c.OwnerID)
	}
}

// RunOwner syncs one owner unless a run for that owner is already in
// progress. It reports whether a run happened.
func (s *Scheduler) RunOwner(ctx context.Context, ownerID string) bool {
	if !s.begin(ownerID) {
		s.logger.Debug("lms sync already running, skipping", "owner", ownerID)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	report, err := s.syncer.SyncAll(ctx, ownerID)
	s.finish(ownerID, report, err)
	if err != nil {
		s.logger.Warn("scheduled lms sync failed", "owner", ownerID, "err", err)
	}
	return true
}

// Statuses returns the last known status of every owner seen.
func (s *Scheduler) Statuses() []SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SyncStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	return out
}

// Status returns the owner's last known status.
func (s *Scheduler) Status(ownerID string) (SyncStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[ownerID]
	if !ok {
		return SyncStatus{OwnerID: ownerID}, false
	}
	return *st, true
}

func (s *Scheduler) begin(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[ownerID]
	if !ok {
		st = &SyncStatus{OwnerID: ownerID}
		s.statuses[ownerID] = st
	}
	if st.State == SyncRunning {
		return false
	}
	st.State = SyncRunning
	return true
}

func (s *Scheduler) finish(ownerID string, report *IngestReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statuses[ownerID]
	if err != nil {
		st.State = SyncError
		st.Error = err.Error()
		return
	}
	st.State = SyncIdle
	st.Error = ""
	st.Report = report
	st.LastSync = report.FinishedAt
}
