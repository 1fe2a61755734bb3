// Package categorize extracts entities, topics and subject-level
// sentiment from a summarized transcript via a language model.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/discoursekg/discoursekg/internal/artifact"
	"github.com/discoursekg/discoursekg/internal/llm"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

const (
	// DefaultMaxContentChars caps how much of the summary is sent to
	// the model.
	DefaultMaxContentChars = 4000

	temperature     float32 = 0.1
	maxOutputTokens int32   = 10000
)

// Processor implements the categorize stage.
type Processor struct {
	completer llm.Completer
	logger    *slog.Logger
	maxChars  int
}

// New creates a categorize processor backed by the given completer.
func New(completer llm.Completer) *Processor {
	return &Processor{
		completer: completer,
		logger:    slog.Default(),
		maxChars:  DefaultMaxContentChars,
	}
}

// WithLogger sets the logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.logger = logger.With("component", "categorize")
	return p
}

// WithMaxContentChars sets the rune cap applied to the summary before
// it is sent to the model.
func (p *Processor) WithMaxContentChars(n int) *Processor {
	if n > 0 {
		p.maxChars = n
	}
	return p
}

// Stage implements core.Processor.
func (p *Processor) Stage() models.Stage { return models.StageCategorize }

// Requires implements core.Processor.
func (p *Processor) Requires() []models.Stage { return []models.Stage{models.StageSummarize} }

// Process sends the summary to the model and decodes the structured
// extraction. Model output that cannot be parsed or fails validation is
// preserved alongside the error for post-mortems.
func (p *Processor) Process(ctx context.Context, state *models.PipelineState, priors map[models.Stage]json.RawMessage) (*core.StageResult, error) {
	var sum models.SummarizeArtifact
	if err := json.Unmarshal(priors[models.StageSummarize], &sum); err != nil {
		return nil, fmt.Errorf("%w: summarize artifact for %s: %v", artifact.ErrCorrupt, state.ID, err)
	}
	summary := strings.TrimSpace(sum.Summary)
	if summary == "" {
		return nil, models.ErrValidation{Field: "summary", Message: "must not be empty"}
	}

	temp := temperature
	req := llm.Request{
		System:          systemPrompt(),
		User:            userPrompt(state.Title, state.ContentDate, truncateRunes(summary, p.maxChars)),
		Temperature:     &temp,
		MaxOutputTokens: maxOutputTokens,
		JSONOutput:      true,
	}

	resp, err := p.completer.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model completion for %s: %w", state.ID, err)
	}

	payload, err := llm.StripMarkdownJSON(resp.Text)
	if err != nil {
		return nil, core.WithOutput(fmt.Errorf("parsing model output for %s: %w", state.ID, err), resp.Text)
	}

	// Decode the first JSON value only; models sometimes append prose
	// after the object.
	var art models.CategorizeArtifact
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&art); err != nil {
		return nil, core.WithOutput(fmt.Errorf("decoding model output for %s: %w", state.ID, err), resp.Text)
	}

	art.Sanitize()
	if err := art.Validate(); err != nil {
		return nil, core.WithOutput(fmt.Errorf("model output for %s: %w", state.ID, err), resp.Text)
	}

	p.logger.Debug("content categorized",
		slog.String("item", state.ID),
		slog.Int("entities", len(art.Entities)),
		slog.String("model", resp.Model),
		slog.Int("output_tokens", int(resp.OutputTokens)),
	)

	return &core.StageResult{Artifact: art}, nil
}
