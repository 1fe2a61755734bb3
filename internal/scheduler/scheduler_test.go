package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discoursekg/discoursekg/internal/models"
)

// recordingHandler counts executions and can block until released.
type recordingHandler struct {
	mu      sync.Mutex
	calls   []Entry
	block   chan struct{}
	started chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{started: make(chan struct{}, 8)}
}

func (h *recordingHandler) Execute(ctx context.Context, entry Entry) (string, error) {
	h.mu.Lock()
	h.calls = append(h.calls, entry)
	h.mu.Unlock()
	h.started <- struct{}{}
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
		}
	}
	return "ok", nil
}

func (h *recordingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func newTestScheduler(handler Handler, stages ...models.Stage) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	executor := NewExecutor().WithLogger(logger)
	for _, stage := range stages {
		executor.RegisterHandler(stage, handler)
	}
	return NewScheduler(executor).WithLogger(logger)
}

// setNext pins the first entry's next run time relative to now.
func setNext(s *Scheduler, d time.Duration) {
	s.mu.Lock()
	s.entries[0].next = time.Now().Add(d)
	s.mu.Unlock()
}

// forceDue rewinds the first entry's next run time into the past.
func forceDue(s *Scheduler) {
	setNext(s, -time.Second)
}

func TestAddEntry(t *testing.T) {
	s := newTestScheduler(newRecordingHandler())

	require.NoError(t, s.AddEntry(Entry{Cron: "0 2 * * *", Stage: models.StageScrape}))
	require.NoError(t, s.AddEntry(Entry{Cron: "@daily", Stage: models.StageDiscover, Speaker: "jane-doe"}))

	statuses := s.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, models.StageScrape, statuses[0].Stage)
	assert.Equal(t, "jane-doe", statuses[1].Speaker)
}

func TestAddEntry_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"bad cron", Entry{Cron: "not a cron", Stage: models.StageScrape}, "invalid cron expression"},
		{"six fields", Entry{Cron: "0 0 2 * * *", Stage: models.StageScrape}, "invalid cron expression"},
		{"unknown stage", Entry{Cron: "0 2 * * *", Stage: models.Stage("transcode")}, "unknown stage"},
		{"discover without speaker", Entry{Cron: "0 2 * * *", Stage: models.StageDiscover}, "requires a speaker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(newRecordingHandler())
			err := s.AddEntry(tt.entry)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(newRecordingHandler()).WithSyncInterval(50 * time.Millisecond)

	ctx := context.Background()

	require.NoError(t, s.Start(ctx))

	// Double start should error
	assert.Error(t, s.Start(ctx))

	s.Stop()

	// Can restart after stop
	require.NoError(t, s.Start(ctx))
	s.Stop()
}

func TestFireDue_RunsDueEntry(t *testing.T) {
	handler := newRecordingHandler()
	s := newTestScheduler(handler, models.StageScrape)
	require.NoError(t, s.AddEntry(Entry{Cron: "0 2 * * *", Stage: models.StageScrape}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// Not yet due
	setNext(s, time.Hour)
	s.fireDue(time.Now())
	assert.Equal(t, 0, handler.callCount())

	// Force the entry due and fire
	forceDue(s)
	s.fireDue(time.Now())

	select {
	case <-handler.started:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	assert.Equal(t, 1, handler.callCount())

	// The next due time advanced past now
	assert.True(t, s.Status()[0].NextRun.After(time.Now()))
}

func TestFireDue_FiresOncePerDuePoint(t *testing.T) {
	handler := newRecordingHandler()
	s := newTestScheduler(handler, models.StageScrape)
	require.NoError(t, s.AddEntry(Entry{Cron: "0 2 * * *", Stage: models.StageScrape}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	forceDue(s)
	s.fireDue(time.Now())
	<-handler.started

	// A second sync at the same due point finds nothing due
	s.fireDue(time.Now())
	s.Stop()
	assert.Equal(t, 1, handler.callCount())
}

func TestFireDue_SkipsStageAlreadyInFlight(t *testing.T) {
	handler := newRecordingHandler()
	handler.block = make(chan struct{})
	s := newTestScheduler(handler, models.StageScrape)
	require.NoError(t, s.AddEntry(Entry{Cron: "0 2 * * *", Stage: models.StageScrape}))

	require.NoError(t, s.Start(context.Background()))

	forceDue(s)
	s.fireDue(time.Now())
	<-handler.started

	statuses := s.Status()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Running)

	// The stage is still running, so firing again is a no-op
	forceDue(s)
	s.fireDue(time.Now())
	assert.Equal(t, 1, handler.callCount())

	close(handler.block)
	s.Stop()
	assert.False(t, s.Status()[0].Running)
}

func TestStop_WaitsForInFlightRun(t *testing.T) {
	handler := newRecordingHandler()
	handler.block = make(chan struct{})
	s := newTestScheduler(handler, models.StageScrape)
	require.NoError(t, s.AddEntry(Entry{Cron: "0 2 * * *", Stage: models.StageScrape}))

	require.NoError(t, s.Start(context.Background()))

	forceDue(s)
	s.fireDue(time.Now())
	<-handler.started

	// Stop cancels the run context, which unblocks the handler
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		{"five-field nightly", "0 2 * * *", false},
		{"five-field every minute", "* * * * *", false},
		{"five-field weekly", "0 0 * * 0", false},
		{"daily descriptor", "@daily", false},
		{"every descriptor", "@every 1h", false},
		{"empty", "", true},
		{"words", "invalid", true},
		{"too few fields", "* * *", true},
		{"six fields", "0 0 2 * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCron(tt.cron)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
