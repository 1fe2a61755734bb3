// Package core provides the stage-agnostic pipeline runtime: it pulls
// ready items from the journal, dispatches them to stage processors
// under a bounded fan-out, persists returned artifacts, and advances or
// fails each item's journal record independently.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/discoursekg/discoursekg/internal/models"
)

// Processor is the uniform contract every stage processor satisfies.
// Processors never touch the journal or the artifact store; the runtime
// is the single agent of state transitions.
type Processor interface {
	// Stage returns the stage this processor implements.
	Stage() models.Stage

	// Requires lists the prior stages whose artifacts the runtime loads
	// and hands to Process.
	Requires() []models.Stage

	// Process runs the stage for one item. Cancellation of ctx must be
	// treated as failure; no partial artifact may be produced.
	Process(ctx context.Context, state *models.PipelineState, priors map[models.Stage]json.RawMessage) (*StageResult, error)
}

// StageResult is a processor's output for one item.
type StageResult struct {
	// Artifact is persisted as the stage's output file.
	Artifact any

	// Metadata carries item fields merged into the journal record.
	Metadata models.Metadata
}

// DiscoverRequest parameterizes a discover run. Discover is the only
// stage invoked with a parameter object instead of per-item state.
type DiscoverRequest struct {
	Speaker string
	Start   time.Time
	End     time.Time
}

// Discoverer finds new communications for a speaker within a date
// range. Each returned artifact becomes a new journal record unless its
// source URL is already held.
type Discoverer interface {
	Discover(ctx context.Context, req DiscoverRequest) ([]models.DiscoverArtifact, error)
}

// ItemFailure describes one item's failure within a stage run.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// StageReport summarizes one stage invocation.
type StageReport struct {
	RunID      string          `json:"run_id"`
	Stage      models.Stage    `json:"stage"`
	ItemsTotal int             `json:"items_total"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped,omitempty"`
	Durations  []time.Duration `json:"durations,omitempty"`
	Failures   []ItemFailure   `json:"failures,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// AllSucceeded reports whether no item in the invocation failed.
func (r *StageReport) AllSucceeded() bool {
	return r.Failed == 0
}
