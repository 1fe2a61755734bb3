package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/discoursekg/discoursekg/internal/artifact"
	"github.com/discoursekg/discoursekg/internal/graph"
	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/llm"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
	"github.com/discoursekg/discoursekg/internal/pipeline/stages/categorize"
	"github.com/discoursekg/discoursekg/internal/pipeline/stages/discover"
	graphstage "github.com/discoursekg/discoursekg/internal/pipeline/stages/graph"
	"github.com/discoursekg/discoursekg/internal/pipeline/stages/scrape"
	"github.com/discoursekg/discoursekg/internal/pipeline/stages/summarize"
	"github.com/discoursekg/discoursekg/internal/speakers"
	"github.com/discoursekg/discoursekg/internal/storage"
	"github.com/discoursekg/discoursekg/pkg/fetch"
)

// pipelineStack bundles the long-lived components a pipeline invocation
// needs. The graph store connection is lazy, so building the stack never
// touches the network.
type pipelineStack struct {
	sandbox  *storage.Sandbox
	journal  *journal.Journal
	store    *artifact.Store
	registry *speakers.Registry
	fetcher  *fetch.Client
	graph    graph.Store
	runtime  *core.Runtime
	logger   *slog.Logger
}

// newPipelineStack wires the shared pipeline components from cfg.
func newPipelineStack() (*pipelineStack, error) {
	logger := slog.Default()

	sandbox, journ, err := openJournal()
	if err != nil {
		return nil, err
	}

	registry, err := speakers.Load(sandbox, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("loading speaker registry: %w", err)
	}

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Timeout = cfg.Fetch.Timeout
	fetchCfg.MaxBodySize = cfg.Fetch.MaxBodySize.Bytes()
	if cfg.Fetch.UserAgent != "" {
		fetchCfg.UserAgent = cfg.Fetch.UserAgent
	}
	fetchCfg.Logger = logger
	fetcher := fetch.New(fetchCfg)

	store := artifact.NewStore(sandbox, cfg.Environment).WithLogger(logger)

	graphStore, err := newGraphStore(logger)
	if err != nil {
		return nil, err
	}

	runtime := core.NewRuntime(journ, store).
		WithFanout(cfg.Pipeline.Fanout).
		WithStageTimeout(cfg.Pipeline.StageTimeout).
		WithLogger(logger)

	return &pipelineStack{
		sandbox:  sandbox,
		journal:  journ,
		store:    store,
		registry: registry,
		fetcher:  fetcher,
		graph:    graphStore,
		runtime:  runtime,
		logger:   logger,
	}, nil
}

// newGraphStore selects the configured graph backend.
func newGraphStore(logger *slog.Logger) (graph.Store, error) {
	switch cfg.Graph.Store {
	case "memory":
		return graph.NewMemoryStore(), nil
	default:
		store, err := graph.NewNeo4jStore(graph.Neo4jConfig{
			URL:      cfg.Graph.URL,
			User:     cfg.Graph.User,
			Password: cfg.Graph.Password,
			Database: cfg.Graph.Database,
			PoolSize: cfg.Graph.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating graph store: %w", err)
		}
		return store.WithLogger(logger), nil
	}
}

// newDiscoverer builds the discover processor.
func (s *pipelineStack) newDiscoverer() core.Discoverer {
	return discover.New(s.fetcher, s.registry).
		WithMaxPerSource(cfg.Discover.MaxItemsPerSource).
		WithScoreThreshold(cfg.Discover.DateScoreThreshold).
		WithLogger(s.logger)
}

// newProcessor builds the processor for one processing stage.
func (s *pipelineStack) newProcessor(stage models.Stage) (core.Processor, error) {
	switch stage {
	case models.StageScrape:
		return scrape.New(s.fetcher).
			WithMinWords(cfg.Scrape.MinWords).
			WithLogger(s.logger), nil
	case models.StageSummarize:
		return summarize.New(cfg.Summarize.TargetWords).
			WithLogger(s.logger), nil
	case models.StageCategorize:
		completer := llm.NewGemini(cfg.LLM.APIKey, cfg.LLM.Model).WithLogger(s.logger)
		return categorize.New(completer).
			WithLogger(s.logger), nil
	case models.StageGraph:
		builder := graph.NewBuilder(s.registry).WithLogger(s.logger)
		return graphstage.New(builder, s.graph).
			WithLogger(s.logger), nil
	default:
		return nil, fmt.Errorf("no processor for stage %q", stage)
	}
}

// Close releases the graph store connection.
func (s *pipelineStack) Close(ctx context.Context) error {
	return s.graph.Close(ctx)
}
