// Package scheduler drives recurring pipeline invocations for serve
// mode. Each entry pairs a cron expression with a stage run; a sync
// loop fires entries as they come due, and an in-flight guard keeps the
// same stage from running twice concurrently.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/discoursekg/discoursekg/internal/models"
)

// DefaultSyncInterval is how often the scheduler checks for due entries.
const DefaultSyncInterval = time.Minute

// Entry is one recurring stage invocation.
type Entry struct {
	// Cron is a 5-field cron expression; @descriptors are accepted.
	Cron string

	// Stage names the pipeline stage to run.
	Stage models.Stage

	// Speaker scopes discover entries to one registry key.
	Speaker string

	// Lookback sets the discover window to [now-Lookback, now].
	Lookback time.Duration
}

// EntryStatus describes one schedule entry for the status API.
type EntryStatus struct {
	Cron    string       `json:"cron"`
	Stage   models.Stage `json:"stage"`
	Speaker string       `json:"speaker,omitempty"`
	NextRun time.Time    `json:"next_run"`
	Running bool         `json:"running"`
}

// entryState tracks a registered entry and its next due time.
type entryState struct {
	Entry
	schedule cron.Schedule
	next     time.Time
}

// Scheduler fires registered entries on their cron schedules.
type Scheduler struct {
	mu sync.RWMutex

	executor *Executor
	logger   *slog.Logger
	parser   cron.Parser

	entries  []*entryState
	inflight map[models.Stage]bool

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	syncInterval time.Duration
}

// NewScheduler creates a scheduler that dispatches due entries to the
// executor.
func NewScheduler(executor *Executor) *Scheduler {
	return &Scheduler{
		executor:     executor,
		logger:       slog.Default(),
		parser:       newParser(),
		inflight:     make(map[models.Stage]bool),
		syncInterval: DefaultSyncInterval,
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger.With("component", "scheduler")
	return s
}

// WithSyncInterval sets how often due entries are checked.
func (s *Scheduler) WithSyncInterval(d time.Duration) *Scheduler {
	if d > 0 {
		s.syncInterval = d
	}
	return s
}

// AddEntry registers a recurring invocation. The cron expression is
// parsed eagerly so configuration mistakes surface at startup.
func (s *Scheduler) AddEntry(e Entry) error {
	schedule, err := s.parser.Parse(e.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", e.Cron, err)
	}
	if !e.Stage.Valid() {
		return fmt.Errorf("unknown stage: %q", e.Stage)
	}
	if e.Stage == models.StageDiscover && e.Speaker == "" {
		return fmt.Errorf("discover schedule requires a speaker")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entryState{Entry: e, schedule: schedule})
	return nil
}

// Start begins the scheduler's background sync loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	now := time.Now()
	for _, e := range s.entries {
		e.next = e.schedule.Next(now)
	}

	s.wg.Add(1)
	go s.syncLoop()

	s.logger.Info("scheduler started",
		slog.Int("entries", len(s.entries)),
		slog.Duration("sync_interval", s.syncInterval))

	return nil
}

// Stop stops the scheduler and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Status reports every registered entry with its next due time.
func (s *Scheduler) Status() []EntryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]EntryStatus, 0, len(s.entries))
	for _, e := range s.entries {
		statuses = append(statuses, EntryStatus{
			Cron:    e.Cron,
			Stage:   e.Stage,
			Speaker: e.Speaker,
			NextRun: e.next,
			Running: s.inflight[e.Stage],
		})
	}
	return statuses
}

// syncLoop periodically fires entries that have come due.
func (s *Scheduler) syncLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

// fireDue launches every entry whose next run time has passed. Each
// fired entry's next time advances past now, so an entry fires at most
// once per due point regardless of sync timing.
func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	var due []Entry
	for _, e := range s.entries {
		if e.next.IsZero() || e.next.After(now) {
			continue
		}
		e.next = e.schedule.Next(now)
		due = append(due, e.Entry)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.launch(e)
	}
}

// launch runs one entry in the background. A stage that is still
// running from an earlier fire is skipped rather than doubled.
func (s *Scheduler) launch(e Entry) {
	s.mu.Lock()
	if s.inflight[e.Stage] {
		s.mu.Unlock()
		s.logger.Warn("skipping scheduled run, stage already in flight",
			slog.String("stage", e.Stage.String()),
			slog.String("cron", e.Cron))
		return
	}
	s.inflight[e.Stage] = true
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, e.Stage)
			s.mu.Unlock()
		}()

		if err := s.executor.Execute(ctx, e); err != nil {
			s.logger.Error("scheduled run failed",
				slog.String("stage", e.Stage.String()),
				slog.String("error", err.Error()))
		}
	}()
}

// ValidateCron checks an expression against the scheduler's cron
// grammar without registering anything.
func ValidateCron(expr string) error {
	_, err := newParser().Parse(expr)
	return err
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}
