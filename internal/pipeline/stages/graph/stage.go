// Package graph is the pipeline stage that loads a fully processed
// item into the knowledge graph.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/discoursekg/discoursekg/internal/artifact"
	kg "github.com/discoursekg/discoursekg/internal/graph"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

// Processor implements the graph stage.
type Processor struct {
	builder *kg.Builder
	store   kg.Store
	logger  *slog.Logger
}

// New creates a graph processor writing through store.
func New(builder *kg.Builder, store kg.Store) *Processor {
	return &Processor{
		builder: builder,
		store:   store,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.logger = logger.With("component", "graph")
	return p
}

// Stage implements core.Processor.
func (p *Processor) Stage() models.Stage { return models.StageGraph }

// Requires implements core.Processor.
func (p *Processor) Requires() []models.Stage {
	return []models.Stage{models.StageScrape, models.StageSummarize, models.StageCategorize}
}

// Process assembles the item's nodes and upserts them. The write is
// keyed throughout, so re-running a loaded item merges instead of
// duplicating.
func (p *Processor) Process(ctx context.Context, state *models.PipelineState, priors map[models.Stage]json.RawMessage) (*core.StageResult, error) {
	var scrape models.ScrapeArtifact
	if err := decodePrior(priors, models.StageScrape, state.ID, &scrape); err != nil {
		return nil, err
	}
	var sum models.SummarizeArtifact
	if err := decodePrior(priors, models.StageSummarize, state.ID, &sum); err != nil {
		return nil, err
	}
	var cat models.CategorizeArtifact
	if err := decodePrior(priors, models.StageCategorize, state.ID, &cat); err != nil {
		return nil, err
	}

	payload, err := p.builder.Build(state, scrape, sum, cat)
	if err != nil {
		return nil, err
	}

	stats, err := p.store.Upsert(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("loading graph for %s: %w", state.ID, err)
	}

	warnings := stats.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	report := models.GraphReport{
		NodesCreated: stats.NodesCreated,
		NodesMerged:  stats.NodesMerged,
		EdgesCreated: stats.EdgesCreated,
		MentionCount: payload.MentionCount(),
		SubjectCount: payload.SubjectCount(),
		Warnings:     warnings,
	}

	p.logger.Info("item loaded into graph",
		slog.String("item", state.ID),
		slog.Int("nodes_created", report.NodesCreated),
		slog.Int("nodes_merged", report.NodesMerged),
		slog.Int("edges_created", report.EdgesCreated),
		slog.Int("mentions", report.MentionCount),
		slog.Int("subjects", report.SubjectCount),
	)

	return &core.StageResult{Artifact: report}, nil
}

func decodePrior(priors map[models.Stage]json.RawMessage, stage models.Stage, id string, v any) error {
	if err := json.Unmarshal(priors[stage], v); err != nil {
		return fmt.Errorf("%w: %s artifact for %s: %v", artifact.ErrCorrupt, stage, id, err)
	}
	return nil
}
