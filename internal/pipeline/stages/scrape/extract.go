package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelector matches elements stripped before extraction.
const boilerplateSelector = "script, style, noscript, template, nav, aside, header, footer, form, figure, iframe, button"

// blockSelector matches the block-level elements whose text makes up a
// transcript.
const blockSelector = "p, h1, h2, h3, h4, li, blockquote"

// containerSelectors are tried in order; the first present container
// with any text wins. The body fallback guarantees a candidate on
// unstructured pages.
var containerSelectors = []string{
	"[itemprop=articleBody]",
	"article",
	"#transcript",
	".transcript",
	".entry-content",
	".post-content",
	".article-body",
	"main",
	"#content",
	".content",
	"body",
}

// extraction is the transcript and page metadata pulled from one page.
type extraction struct {
	text      string
	wordCount int
	container string
	title     string
	date      string
}

// extract pulls the transcript out of a parsed page. Metadata is read
// before boilerplate removal since publication markup often sits in
// headers the removal strips.
func extract(page *goquery.Document) extraction {
	ex := extraction{
		title: pageTitle(page),
		date:  pageDate(page),
	}

	page.Find(boilerplateSelector).Remove()

	for _, selector := range containerSelectors {
		container := page.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		text := blockText(container)
		if text == "" {
			continue
		}
		ex.text = text
		ex.wordCount = len(strings.Fields(text))
		ex.container = selector
		break
	}
	return ex
}

// blockText renders the container's text with paragraph breaks, keeping
// block boundaries a flat Text() call would lose. Only leaf blocks
// contribute so nested structures are not counted twice.
func blockText(container *goquery.Selection) string {
	var parts []string
	container.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if t := collapseWhitespace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return collapseWhitespace(container.Text())
	}
	return strings.Join(parts, "\n\n")
}

// pageTitle reads the page title, preferring Open Graph metadata over
// the title element over the first heading.
func pageTitle(page *goquery.Document) string {
	if t, ok := page.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t = collapseWhitespace(t); t != "" {
			return t
		}
	}
	if t := collapseWhitespace(page.Find("title").First().Text()); t != "" {
		return t
	}
	return collapseWhitespace(page.Find("h1").First().Text())
}

// pageDate reads the page's publication date from machine-readable
// markup, empty when none parses.
func pageDate(page *goquery.Document) string {
	if dt, ok := page.Find("time[datetime]").First().Attr("datetime"); ok {
		if d, ok := normalizeDate(dt); ok {
			return d
		}
	}
	for _, selector := range []string{
		`meta[property="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`meta[name="date"]`,
	} {
		if content, ok := page.Find(selector).Attr("content"); ok {
			if d, ok := normalizeDate(content); ok {
				return d
			}
		}
	}
	return ""
}

// normalizeDate reduces an ISO date or timestamp to YYYY-MM-DD.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return "", false
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
