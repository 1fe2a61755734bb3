package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsePage(t *testing.T, html string) *goquery.Document {
	t.Helper()
	page, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return page
}

func TestExtract_PrefersArticle(t *testing.T) {
	page := parsePage(t, `<html><head><title>Remarks</title></head><body>
<nav><a href="/">Home</a> <a href="/speeches">All speeches</a></nav>
<article>
  <p>Good morning and thank you for having me.</p>
  <p>Today I want to talk about the inflation outlook.</p>
</article>
<footer>Copyright notice</footer>
</body></html>`)

	ex := extract(page)
	assert.Equal(t, "article", ex.container)
	assert.Equal(t, "Good morning and thank you for having me.\n\nToday I want to talk about the inflation outlook.", ex.text)
	assert.Equal(t, 17, ex.wordCount)
	assert.NotContains(t, ex.text, "All speeches")
	assert.NotContains(t, ex.text, "Copyright")
}

func TestExtract_ItempropBeatsArticle(t *testing.T) {
	page := parsePage(t, `<html><body>
<article><p>A teaser paragraph elsewhere on the page.</p></article>
<div itemprop="articleBody"><p>The actual transcript body lives here.</p></div>
</body></html>`)

	ex := extract(page)
	assert.Equal(t, "[itemprop=articleBody]", ex.container)
	assert.Equal(t, "The actual transcript body lives here.", ex.text)
}

func TestExtract_BodyFallback(t *testing.T) {
	page := parsePage(t, `<html><body><div><p>Loose text with no semantic container at all.</p></div></body></html>`)

	ex := extract(page)
	assert.Equal(t, "body", ex.container)
	assert.Equal(t, "Loose text with no semantic container at all.", ex.text)
}

func TestExtract_EmptyArticleFallsThrough(t *testing.T) {
	page := parsePage(t, `<html><body>
<article><img src="/hero.jpg"></article>
<div class="content"><p>The transcript sits in a generic content div.</p></div>
</body></html>`)

	ex := extract(page)
	assert.Equal(t, ".content", ex.container)
	assert.Equal(t, "The transcript sits in a generic content div.", ex.text)
}

func TestBlockText_LeafBlocksOnly(t *testing.T) {
	page := parsePage(t, `<html><body><article>
<blockquote><p>We will not hesitate to act.</p></blockquote>
<ul><li><p>First point made.</p></li><li>Second point made.</li></ul>
</article></body></html>`)

	ex := extract(page)
	assert.Equal(t, "We will not hesitate to act.\n\nFirst point made.\n\nSecond point made.", ex.text)
}

func TestBlockText_PlainContainer(t *testing.T) {
	page := parsePage(t, `<html><body><article>
	Raw text
	without any block markup.
</article></body></html>`)

	ex := extract(page)
	assert.Equal(t, "Raw text without any block markup.", ex.text)
}

func TestPageTitle(t *testing.T) {
	t.Run("open graph wins", func(t *testing.T) {
		page := parsePage(t, `<html><head>
<meta property="og:title" content="Remarks on Monetary Policy">
<title>Remarks | Site Name</title>
</head><body><h1>Heading</h1></body></html>`)
		assert.Equal(t, "Remarks on Monetary Policy", pageTitle(page))
	})

	t.Run("title element next", func(t *testing.T) {
		page := parsePage(t, `<html><head><title>  Remarks on  Trade </title></head><body><h1>Heading</h1></body></html>`)
		assert.Equal(t, "Remarks on Trade", pageTitle(page))
	})

	t.Run("first heading last", func(t *testing.T) {
		page := parsePage(t, `<html><body><h1>Fiscal Outlook</h1><h1>Second heading</h1></body></html>`)
		assert.Equal(t, "Fiscal Outlook", pageTitle(page))
	})

	t.Run("nothing found", func(t *testing.T) {
		page := parsePage(t, `<html><body><p>text</p></body></html>`)
		assert.Empty(t, pageTitle(page))
	})
}

func TestPageDate(t *testing.T) {
	t.Run("time element wins", func(t *testing.T) {
		page := parsePage(t, `<html><head>
<meta property="article:published_time" content="2026-02-01T00:00:00Z">
</head><body><time datetime="2026-01-28T10:00:00Z">January 28</time></body></html>`)
		assert.Equal(t, "2026-01-28", pageDate(page))
	})

	t.Run("meta fallback", func(t *testing.T) {
		page := parsePage(t, `<html><head>
<meta property="article:published_time" content="2026-02-01T09:30:00+01:00">
</head><body></body></html>`)
		assert.Equal(t, "2026-02-01", pageDate(page))
	})

	t.Run("unparseable time attribute falls through", func(t *testing.T) {
		page := parsePage(t, `<html><head>
<meta name="date" content="2026-03-04">
</head><body><time datetime="yesterday">yesterday</time></body></html>`)
		assert.Equal(t, "2026-03-04", pageDate(page))
	})

	t.Run("nothing found", func(t *testing.T) {
		page := parsePage(t, `<html><body><p>undated</p></body></html>`)
		assert.Empty(t, pageDate(page))
	})
}

func TestExtract_MetadataReadBeforeBoilerplateRemoval(t *testing.T) {
	page := parsePage(t, `<html><head><title>Remarks on Energy</title></head><body>
<header><time datetime="2026-01-28">28 January 2026</time></header>
<article><p>The body of the speech.</p></article>
</body></html>`)

	ex := extract(page)
	assert.Equal(t, "2026-01-28", ex.date, "a date inside stripped boilerplate must still be harvested")
	assert.Equal(t, "Remarks on Energy", ex.title)
	assert.Equal(t, "The body of the speech.", ex.text)
}
