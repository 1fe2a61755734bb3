package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

// DefaultLookback bounds discover entries that do not set one.
const DefaultLookback = 24 * time.Hour

// Handler executes the invocation a schedule entry names and returns a
// short result line for the log.
type Handler interface {
	Execute(ctx context.Context, entry Entry) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, entry Entry) (string, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, entry Entry) (string, error) {
	return f(ctx, entry)
}

// StageRunner is the slice of the pipeline runtime that scheduled stage
// runs use.
type StageRunner interface {
	RunStage(ctx context.Context, p core.Processor) (*core.StageReport, error)
}

// DiscoverRunner is the slice of the pipeline runtime that scheduled
// discover runs use.
type DiscoverRunner interface {
	RunDiscover(ctx context.Context, d core.Discoverer, req core.DiscoverRequest) (*core.StageReport, error)
}

// StageHandler runs one stage processor over every ready item.
type StageHandler struct {
	runner    StageRunner
	processor core.Processor
}

// NewStageHandler creates a handler that dispatches to the processor.
func NewStageHandler(runner StageRunner, processor core.Processor) *StageHandler {
	return &StageHandler{runner: runner, processor: processor}
}

// Execute runs the stage and summarizes the report.
func (h *StageHandler) Execute(ctx context.Context, entry Entry) (string, error) {
	report, err := h.runner.RunStage(ctx, h.processor)
	if err != nil {
		return "", err
	}
	return reportLine(report), nil
}

// DiscoverHandler runs discover for the entry's speaker over a lookback
// window ending now.
type DiscoverHandler struct {
	runner     DiscoverRunner
	discoverer core.Discoverer
	now        func() time.Time
}

// NewDiscoverHandler creates a handler that discovers new items.
func NewDiscoverHandler(runner DiscoverRunner, discoverer core.Discoverer) *DiscoverHandler {
	return &DiscoverHandler{runner: runner, discoverer: discoverer, now: time.Now}
}

// Execute runs discover for the entry's window and summarizes the report.
func (h *DiscoverHandler) Execute(ctx context.Context, entry Entry) (string, error) {
	lookback := entry.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	end := h.now().UTC()
	req := core.DiscoverRequest{
		Speaker: entry.Speaker,
		Start:   end.Add(-lookback),
		End:     end,
	}

	report, err := h.runner.RunDiscover(ctx, h.discoverer, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d found, %d created, %d skipped", report.ItemsTotal, report.Succeeded, report.Skipped), nil
}

// reportLine condenses a stage report into one log-friendly line.
func reportLine(report *core.StageReport) string {
	if report.ItemsTotal == 0 {
		return "no items ready"
	}
	return fmt.Sprintf("%d items: %d succeeded, %d failed", report.ItemsTotal, report.Succeeded, report.Failed)
}

// Executor dispatches schedule entries to per-stage handlers.
type Executor struct {
	handlers map[models.Stage]Handler
	logger   *slog.Logger
}

// NewExecutor creates an executor with no handlers registered.
func NewExecutor() *Executor {
	return &Executor{
		handlers: make(map[models.Stage]Handler),
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger.With("component", "executor")
	return e
}

// RegisterHandler registers a handler for a stage.
func (e *Executor) RegisterHandler(stage models.Stage, handler Handler) {
	e.handlers[stage] = handler
}

// Execute runs the entry through its registered handler.
func (e *Executor) Execute(ctx context.Context, entry Entry) error {
	handler, ok := e.handlers[entry.Stage]
	if !ok {
		return fmt.Errorf("no handler registered for stage: %s", entry.Stage)
	}

	log := e.logger.With(slog.String("stage", entry.Stage.String()))
	if entry.Speaker != "" {
		log = log.With(slog.String("speaker", entry.Speaker))
	}

	log.Info("scheduled run started", slog.String("cron", entry.Cron))
	start := time.Now()

	result, err := handler.Execute(ctx, entry)
	if err != nil {
		log.Error("scheduled run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return err
	}

	log.Info("scheduled run completed",
		slog.String("result", result),
		slog.Duration("duration", time.Since(start)))
	return nil
}
