// Package summarize condenses scraped transcripts toward a word budget
// by extractive sentence selection, preserving the speaker's own words.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/discoursekg/discoursekg/internal/artifact"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

// Processor implements the summarize stage.
type Processor struct {
	summarizer *Summarizer
	logger     *slog.Logger
}

// New creates a summarize processor with the given word budget. Zero
// or negative budgets fall back to DefaultTargetWords.
func New(targetWords int) *Processor {
	return &Processor{
		summarizer: NewSummarizer(targetWords),
		logger:     slog.Default(),
	}
}

// WithLogger sets the logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.logger = logger.With("component", "summarize")
	return p
}

// Stage implements core.Processor.
func (p *Processor) Stage() models.Stage { return models.StageSummarize }

// Requires implements core.Processor.
func (p *Processor) Requires() []models.Stage { return []models.Stage{models.StageScrape} }

// Process condenses the scraped transcript. Already-short transcripts
// pass through unchanged with was_summarized false.
func (p *Processor) Process(ctx context.Context, state *models.PipelineState, priors map[models.Stage]json.RawMessage) (*core.StageResult, error) {
	var scrape models.ScrapeArtifact
	if err := json.Unmarshal(priors[models.StageScrape], &scrape); err != nil {
		return nil, fmt.Errorf("%w: scrape artifact for %s: %v", artifact.ErrCorrupt, state.ID, err)
	}
	if strings.TrimSpace(scrape.FullText) == "" {
		return nil, models.ErrValidation{Field: "full_text", Message: "must not be empty"}
	}

	start := time.Now()
	res := p.summarizer.Summarize(scrape.FullText)
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	art := models.SummarizeArtifact{
		Summary:               res.Summary,
		WasSummarized:         res.WasSummarized,
		OriginalWordCount:     res.OriginalWords,
		SummaryWordCount:      res.SummaryWords,
		TargetWordCount:       p.summarizer.TargetWords(),
		ProcessingTimeSeconds: math.Round(elapsed.Seconds()*100) / 100,
		Success:               true,
	}
	if res.WasSummarized {
		ratio := compressionRatio(scrape.FullText, res.Summary)
		art.CompressionRatio = &ratio
	}

	p.logger.Debug("transcript summarized",
		slog.String("item", state.ID),
		slog.Bool("was_summarized", res.WasSummarized),
		slog.Int("original_words", res.OriginalWords),
		slog.Int("summary_words", res.SummaryWords),
	)

	return &core.StageResult{Artifact: art}, nil
}

// compressionRatio is the character-level size ratio of summary to
// original.
func compressionRatio(original, summary string) float64 {
	if original == "" {
		return 0
	}
	return float64(utf8.RuneCountInString(summary)) / float64(utf8.RuneCountInString(original))
}
