// Package scrape fetches an item's source page and extracts the
// communication transcript from it.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
	"github.com/discoursekg/discoursekg/pkg/fetch"
)

// DefaultMinWords rejects extractions shorter than this many words.
const DefaultMinWords = 50

// Processor implements the scrape stage.
type Processor struct {
	fetcher  *fetch.Client
	logger   *slog.Logger
	minWords int
}

// New creates a scrape processor over the shared fetch client.
func New(fetcher *fetch.Client) *Processor {
	return &Processor{
		fetcher:  fetcher,
		logger:   slog.Default(),
		minWords: DefaultMinWords,
	}
}

// WithLogger sets the logger.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.logger = logger.With("component", "scrape")
	return p
}

// WithMinWords sets the word count below which an extraction fails.
func (p *Processor) WithMinWords(n int) *Processor {
	if n > 0 {
		p.minWords = n
	}
	return p
}

// Stage implements core.Processor.
func (p *Processor) Stage() models.Stage { return models.StageScrape }

// Requires implements core.Processor. Scrape reads no prior artifacts.
func (p *Processor) Requires() []models.Stage { return nil }

// Process fetches the item's source URL and extracts its transcript.
// The harvested page title and publication date are returned as
// metadata so the journal record fills in what discovery could not.
func (p *Processor) Process(ctx context.Context, state *models.PipelineState, _ map[models.Stage]json.RawMessage) (*core.StageResult, error) {
	if state.SourceURL == "" {
		return nil, models.ErrValidation{Field: "source_url", Message: "must not be empty"}
	}

	doc, err := p.fetcher.Get(ctx, state.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", state.SourceURL, err)
	}

	body, err := doc.HTMLReader()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", state.SourceURL, err)
	}
	page, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", state.SourceURL, err)
	}

	ex := extract(page)
	if ex.wordCount < p.minWords {
		err := fmt.Errorf("extracted %d words from %s, need at least %d", ex.wordCount, state.SourceURL, p.minWords)
		return nil, core.WithOutput(err, ex.text)
	}

	p.logger.Debug("transcript extracted",
		slog.String("item", state.ID),
		slog.String("container", ex.container),
		slog.Int("words", ex.wordCount),
	)

	return &core.StageResult{
		Artifact: models.ScrapeArtifact{
			FullText:    ex.text,
			WordCount:   ex.wordCount,
			Title:       ex.title,
			ContentDate: ex.date,
			ContentType: state.ContentType,
			SourceURL:   state.SourceURL,
		},
		Metadata: models.Metadata{Title: ex.title, ContentDate: ex.date},
	}, nil
}
