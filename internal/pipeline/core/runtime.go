package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/discoursekg/discoursekg/internal/artifact"
	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/models"
)

// Defaults for runtime scheduling.
const (
	DefaultFanout       = 4
	DefaultStageTimeout = 10 * time.Minute
)

// Runtime drives stage processors over the items the journal reports
// ready. Each worker owns one item end-to-end: load priors, process,
// save artifact, update journal. Failures are isolated per item; only
// journal failures abort an invocation.
type Runtime struct {
	journal *journal.Journal
	store   *artifact.Store
	fanout  int
	timeout time.Duration
	logger  *slog.Logger
}

// NewRuntime creates a Runtime over a journal and artifact store.
func NewRuntime(j *journal.Journal, store *artifact.Store) *Runtime {
	return &Runtime{
		journal: j,
		store:   store,
		fanout:  DefaultFanout,
		timeout: DefaultStageTimeout,
		logger:  slog.Default(),
	}
}

// WithFanout sets the number of items processed concurrently.
func (r *Runtime) WithFanout(n int) *Runtime {
	if n > 0 {
		r.fanout = n
	}
	return r
}

// WithStageTimeout bounds a single processor invocation for one item.
// Zero disables the bound.
func (r *Runtime) WithStageTimeout(d time.Duration) *Runtime {
	if d >= 0 {
		r.timeout = d
	}
	return r
}

// WithLogger sets the logger.
func (r *Runtime) WithLogger(logger *slog.Logger) *Runtime {
	r.logger = logger.With("component", "runtime")
	return r
}

// RunStage runs one stage over every ready item. Re-running is
// idempotent: completed items no longer match the stage and failed ones
// are simply attempted again. The returned report is valid even when an
// abort error is returned alongside it.
func (r *Runtime) RunStage(ctx context.Context, p Processor) (*StageReport, error) {
	stage := p.Stage()
	report := &StageReport{RunID: ulid.Make().String(), Stage: stage}
	log := r.logger.With(slog.String("run_id", report.RunID), slog.String("stage", stage.String()))

	items := r.journal.ItemsReadyFor(stage)
	report.ItemsTotal = len(items)
	if len(items) == 0 {
		log.Info("no items ready")
		return report, nil
	}

	log.Info("stage run started",
		slog.Int("items", len(items)),
		slog.Int("fanout", r.fanout),
	)
	start := time.Now()

	col := &collector{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for _, item := range items {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return r.processItem(gctx, p, item, col, log)
		})
	}
	err := g.Wait()

	col.fill(report)
	report.Elapsed = time.Since(start)

	if err != nil {
		log.Error("stage run aborted",
			slog.Int("succeeded", report.Succeeded),
			slog.Int("failed", report.Failed),
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("stage %s aborted: %w", stage, err)
	}

	log.Info("stage run completed",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// processItem runs one item through the processor. The returned error is
// non-nil only for journal failures, which abort the invocation.
func (r *Runtime) processItem(ctx context.Context, p Processor, state *models.PipelineState, col *collector, log *slog.Logger) error {
	stage := p.Stage()
	log = log.With(slog.String("item", state.ID))

	if _, err := r.journal.MarkInProgress(state.ID); err != nil {
		return fmt.Errorf("marking %s in progress: %w", state.ID, err)
	}

	start := time.Now()
	result, procErr := r.attempt(ctx, p, state)
	elapsed := time.Since(start)

	if procErr != nil {
		return r.recordFailure(state.ID, stage, procErr, elapsed, col, log)
	}

	relPath, err := r.store.Save(state, stage, result.Artifact)
	if err != nil {
		return r.recordFailure(state.ID, stage, err, elapsed, col, log)
	}

	if _, err := r.journal.UpdateOnSuccess(state.ID, stage, relPath, result.Metadata, elapsed); err != nil {
		return fmt.Errorf("recording success for %s: %w", state.ID, err)
	}

	col.success(elapsed)
	log.Info("item completed", slog.Duration("duration", elapsed))
	return nil
}

// attempt loads the processor's required prior artifacts and invokes it
// under the per-item timeout.
func (r *Runtime) attempt(ctx context.Context, p Processor, state *models.PipelineState) (*StageResult, error) {
	priors := make(map[models.Stage]json.RawMessage, len(p.Requires()))
	for _, required := range p.Requires() {
		raw, err := r.store.RawFor(state, required)
		if err != nil {
			return nil, err
		}
		priors[required] = raw
	}

	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := p.Process(attemptCtx, state, priors)
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, context.DeadlineExceeded
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, errors.New("processor returned no result")
	}
	return result, nil
}

// recordFailure writes the failure to the journal and the run report.
func (r *Runtime) recordFailure(id string, stage models.Stage, cause error, elapsed time.Duration, col *collector, log *slog.Logger) error {
	itemErr := &ItemError{ID: id, Stage: stage, Kind: Classify(cause), Err: cause}

	msg := cause.Error()
	if itemErr.Kind == KindTimeout {
		msg = "timeout"
	}

	var output string
	var outErr *OutputError
	if errors.As(cause, &outErr) {
		output = outErr.Output
	}

	if _, err := r.journal.UpdateOnFailure(id, msg, output); err != nil {
		return fmt.Errorf("recording failure for %s: %w", id, err)
	}

	col.failure(ItemFailure{ID: id, Error: msg, Kind: itemErr.Kind}, elapsed)
	log.Warn("item failed",
		slog.String("kind", string(itemErr.Kind)),
		slog.String("error", msg),
		slog.Duration("duration", elapsed),
	)
	return nil
}

// RunDiscover runs the discover special case: the discoverer produces
// zero or more new items, each inserted as a fresh record unless its
// source URL is already held, in which case it is skipped.
func (r *Runtime) RunDiscover(ctx context.Context, d Discoverer, req DiscoverRequest) (*StageReport, error) {
	report := &StageReport{RunID: ulid.Make().String(), Stage: models.StageDiscover}
	log := r.logger.With(
		slog.String("run_id", report.RunID),
		slog.String("stage", models.StageDiscover.String()),
		slog.String("speaker", req.Speaker),
	)

	log.Info("discover started",
		slog.Time("start", req.Start),
		slog.Time("end", req.End),
	)
	start := time.Now()

	arts, err := d.Discover(ctx, req)
	if err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("discover for %s: %w", req.Speaker, err)
	}
	report.ItemsTotal = len(arts)

	for _, art := range arts {
		if existing, held := r.journal.FindBySourceURL(art.SourceURL); held {
			log.Info("skipping already-discovered source",
				slog.String("source_url", art.SourceURL),
				slog.String("held_by", existing.ID),
			)
			report.Skipped++
			continue
		}

		relPath, err := r.store.SaveDiscover(art)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, ItemFailure{ID: art.ID, Error: err.Error(), Kind: Classify(err)})
			log.Warn("discover item failed", slog.String("item", art.ID), slog.String("error", err.Error()))
			continue
		}

		state := models.NewDiscoveredState(art, relPath, time.Now().UTC())
		if err := r.journal.Create(state); err != nil {
			if errors.Is(err, journal.ErrDuplicateSourceURL) || errors.Is(err, journal.ErrDuplicateID) {
				log.Info("skipping duplicate item",
					slog.String("item", art.ID),
					slog.String("source_url", art.SourceURL),
				)
				report.Skipped++
				continue
			}
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("creating record for %s: %w", art.ID, err)
		}
		report.Succeeded++
		log.Info("item discovered", slog.String("item", art.ID), slog.String("source_url", art.SourceURL))
	}

	report.Elapsed = time.Since(start)
	log.Info("discover completed",
		slog.Int("found", report.ItemsTotal),
		slog.Int("created", report.Succeeded),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

// collector accumulates per-item outcomes across workers.
type collector struct {
	mu        sync.Mutex
	succeeded int
	durations []time.Duration
	failures  []ItemFailure
}

func (c *collector) success(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.succeeded++
	c.durations = append(c.durations, elapsed)
}

func (c *collector) failure(f ItemFailure, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
	c.durations = append(c.durations, elapsed)
}

func (c *collector) fill(report *StageReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report.Succeeded = c.succeeded
	report.Failed = len(c.failures)
	report.Failures = c.failures
	report.Durations = c.durations
}
