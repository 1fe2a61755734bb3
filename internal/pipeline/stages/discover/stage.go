// Package discover finds new communications for a speaker by reading
// the discovery sources in their registry entry: RSS or Atom feeds and
// HTML index pages. Feed entries carry trustworthy timestamps; index
// pages yield date candidates from several extractors that are settled
// by weighted voting before an item is accepted.
package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
	"github.com/discoursekg/discoursekg/internal/speakers"
	"github.com/discoursekg/discoursekg/pkg/fetch"
)

const (
	// DefaultMaxPerSource bounds how many items one feed or index page
	// may contribute per run.
	DefaultMaxPerSource = 25
	// DefaultScoreThreshold is the minimum date voting score an index
	// page item needs before it becomes a discovered item.
	DefaultScoreThreshold = 2

	// minTitleLength filters out navigation links ("Home", "Read more")
	// when harvesting anchors from index pages.
	minTitleLength = 12

	// sourceFanout bounds how many sources are fetched at once.
	sourceFanout = 4
)

// Discoverer implements core.Discoverer over a speaker's registry
// sources.
type Discoverer struct {
	fetcher        *fetch.Client
	registry       *speakers.Registry
	logger         *slog.Logger
	maxPerSource   int
	scoreThreshold int
}

// New creates a discoverer reading sources from registry and fetching
// them through fetcher.
func New(fetcher *fetch.Client, registry *speakers.Registry) *Discoverer {
	return &Discoverer{
		fetcher:        fetcher,
		registry:       registry,
		logger:         slog.Default(),
		maxPerSource:   DefaultMaxPerSource,
		scoreThreshold: DefaultScoreThreshold,
	}
}

// WithLogger sets the logger and returns the discoverer.
func (d *Discoverer) WithLogger(logger *slog.Logger) *Discoverer {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithMaxPerSource bounds items taken from a single source.
func (d *Discoverer) WithMaxPerSource(n int) *Discoverer {
	if n > 0 {
		d.maxPerSource = n
	}
	return d
}

// WithScoreThreshold sets the minimum date voting score.
func (d *Discoverer) WithScoreThreshold(n int) *Discoverer {
	if n > 0 {
		d.scoreThreshold = n
	}
	return d
}

// candidate is one potential communication before date voting and
// range filtering.
type candidate struct {
	title     string
	sourceURL string
	dates     []dateCandidate
}

// Discover implements core.Discoverer. Sources are fetched
// concurrently; fetch or parse failures are logged and skipped so one
// unreachable site does not block the others. If every source fails the
// run errors.
func (d *Discoverer) Discover(ctx context.Context, req core.DiscoverRequest) ([]models.DiscoverArtifact, error) {
	entry, err := d.registry.Get(req.Speaker)
	if err != nil {
		return nil, err
	}
	sources := entry.Speaker.Sources
	if len(sources) == 0 {
		d.logger.Warn("speaker has no discovery sources", slog.String("speaker", entry.Key))
		return nil, nil
	}

	// Workers record their outcome per source and never return errors;
	// candidate filtering below stays single-threaded.
	type sourceResult struct {
		candidates []candidate
		err        error
	}
	results := make([]sourceResult, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sourceFanout)
	for i, source := range sources {
		g.Go(func() error {
			candidates, err := d.readSource(gctx, source)
			results[i] = sourceResult{candidates: candidates, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var (
		artifacts  []models.DiscoverArtifact
		sourceErrs []error
		seen       = make(map[string]bool)
	)

	for i, source := range sources {
		if err := results[i].err; err != nil {
			d.logger.Warn("discovery source failed",
				slog.String("speaker", entry.Key),
				slog.String("url", source.URL),
				slog.String("error", err.Error()),
			)
			sourceErrs = append(sourceErrs, fmt.Errorf("%s: %w", source.URL, err))
			continue
		}

		accepted := 0
		for _, cand := range results[i].candidates {
			if accepted >= d.maxPerSource {
				break
			}
			art, ok := d.accept(cand, source, entry.Key, req, seen)
			if !ok {
				continue
			}
			artifacts = append(artifacts, art)
			accepted++
		}
	}

	if len(artifacts) == 0 && len(sourceErrs) > 0 {
		return nil, fmt.Errorf("all discovery sources failed: %w", errors.Join(sourceErrs...))
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].ContentDate != artifacts[j].ContentDate {
			return artifacts[i].ContentDate < artifacts[j].ContentDate
		}
		return artifacts[i].ID < artifacts[j].ID
	})

	d.logger.Info("discovery finished",
		slog.String("speaker", entry.Key),
		slog.Int("found", len(artifacts)),
		slog.Int("sources_failed", len(sourceErrs)),
	)
	return artifacts, nil
}

// accept runs date voting and range filtering over one candidate,
// producing its artifact when it qualifies.
func (d *Discoverer) accept(cand candidate, source models.SpeakerSource, speaker string, req core.DiscoverRequest, seen map[string]bool) (models.DiscoverArtifact, bool) {
	if seen[cand.sourceURL] {
		d.logger.Debug("duplicate url within run", slog.String("url", cand.sourceURL))
		return models.DiscoverArtifact{}, false
	}

	vote, ok := voteDate(cand.dates, d.scoreThreshold)
	if !ok {
		d.logger.Debug("no date consensus",
			slog.String("url", cand.sourceURL),
			slog.Int("candidates", len(cand.dates)),
		)
		return models.DiscoverArtifact{}, false
	}

	if !req.Start.IsZero() && vote.date < req.Start.Format("2006-01-02") {
		return models.DiscoverArtifact{}, false
	}
	if !req.End.IsZero() && vote.date > req.End.Format("2006-01-02") {
		return models.DiscoverArtifact{}, false
	}

	seen[cand.sourceURL] = true
	return models.DiscoverArtifact{
		ID:          makeID(vote.date, cand.title, cand.sourceURL),
		SourceURL:   cand.sourceURL,
		ContentType: inferContentType(source, cand.sourceURL, cand.title),
		Title:       cand.title,
		ContentDate: vote.date,
		Speaker:     speaker,
	}, true
}

func (d *Discoverer) readSource(ctx context.Context, source models.SpeakerSource) ([]candidate, error) {
	doc, err := d.fetcher.Get(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	switch source.Kind {
	case models.SourceKindRSS:
		return d.parseFeed(doc.Body)
	case models.SourceKindIndex:
		base, err := url.Parse(doc.FinalURL)
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		return d.parseIndex(base, doc)
	default:
		return nil, fmt.Errorf("unsupported source kind %q", source.Kind)
	}
}

// parseFeed turns RSS or Atom entries into candidates. The feed's own
// timestamp is the strongest date source; a date encoded in the entry
// URL still joins the vote.
func (d *Discoverer) parseFeed(body []byte) ([]candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	candidates := make([]candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}

		var dates []dateCandidate
		if item.PublishedParsed != nil {
			dates = append(dates, dateCandidate{
				date:   item.PublishedParsed.UTC().Format("2006-01-02"),
				source: sourceFeed,
			})
		} else if normalized, ok := normalizeDate(item.Published); ok {
			dates = append(dates, dateCandidate{date: normalized, source: sourceFeed})
		}
		if fromPath, ok := dateFromURLPath(item.Link); ok {
			dates = append(dates, dateCandidate{date: fromPath, source: sourceURLPath})
		}

		candidates = append(candidates, candidate{
			title:     collapseWhitespace(item.Title),
			sourceURL: item.Link,
			dates:     dates,
		})
	}
	return candidates, nil
}

// parseIndex harvests candidate links from an HTML index page. Every
// sufficiently titled anchor contributes, with date candidates drawn
// from its surrounding block.
func (d *Discoverer) parseIndex(base *url.URL, page *fetch.Document) ([]candidate, error) {
	body, err := page.HTMLReader()
	if err != nil {
		return nil, fmt.Errorf("decoding index page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	var candidates []candidate
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		title := collapseWhitespace(anchor.Text())
		if utf8.RuneCountInString(title) < minTitleLength {
			return
		}

		href, _ := anchor.Attr("href")
		absURL := resolveURL(base, href)
		if absURL == "" || seen[absURL] {
			return
		}
		seen[absURL] = true

		candidates = append(candidates, candidate{
			title:     title,
			sourceURL: absURL,
			dates:     collectDates(anchor, absURL),
		})
	})
	return candidates, nil
}

// collectDates gathers date candidates for one anchor: time element
// datetime attributes and schema.org markup in the enclosing block, a
// date encoded in the target URL, and dates written out in the block's
// text.
func collectDates(anchor *goquery.Selection, absURL string) []dateCandidate {
	var dates []dateCandidate

	block := anchor.Closest("article, li, section, div")
	scope := block
	if scope.Length() == 0 {
		scope = anchor
	}

	scope.Find("time[datetime]").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		attr, _ := t.Attr("datetime")
		if normalized, ok := normalizeDate(attr); ok {
			dates = append(dates, dateCandidate{date: normalized, source: sourceDatetimeAttr})
			return false
		}
		return true
	})

	scope.Find(`[itemprop="datePublished"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		value, exists := s.Attr("content")
		if !exists {
			if value, exists = s.Attr("datetime"); !exists {
				value = s.Text()
			}
		}
		if normalized, ok := normalizeDate(strings.TrimSpace(value)); ok {
			dates = append(dates, dateCandidate{date: normalized, source: sourceSchemaOrg})
			return false
		}
		return true
	})

	if fromPath, ok := dateFromURLPath(absURL); ok {
		dates = append(dates, dateCandidate{date: fromPath, source: sourceURLPath})
	}

	text := collapseWhitespace(scope.Text())
	if len(text) > 400 {
		text = text[:400]
	}
	if fromText, ok := dateFromText(text); ok {
		dates = append(dates, dateCandidate{date: fromText, source: sourceNearTitle})
	}

	return dates
}

// inferContentType uses the source's configured type when present, and
// otherwise guesses from keywords in the URL and title.
func inferContentType(source models.SpeakerSource, rawURL, title string) models.ContentType {
	if source.ContentType != "" && source.ContentType != models.ContentTypeUnknown {
		return source.ContentType
	}

	haystack := strings.ToLower(rawURL + " " + title)
	switch {
	case strings.Contains(haystack, "interview"):
		return models.ContentTypeInterview
	case strings.Contains(haystack, "debate"):
		return models.ContentTypeDebate
	case strings.Contains(haystack, "speech"),
		strings.Contains(haystack, "remarks"),
		strings.Contains(haystack, "address"),
		strings.Contains(haystack, "statement"):
		return models.ContentTypeSpeech
	default:
		return models.ContentTypeOther
	}
}

// resolveURL makes href absolute against base, keeping only http(s)
// targets and dropping pure fragments.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
