package core_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const pipelineTranscript = "Thank you all for joining us here today. " +
	"Our economic outlook remains stable despite persistent global headwinds. " +
	"Inflation has moderated over the past two quarters and we expect that trend to continue. " +
	"The committee reviewed a wide range of indicators before reaching its decision. " +
	"We are committed to transparent and predictable policy decisions. " +
	"Investment in digital infrastructure will define the next decade of growth. " +
	"We must balance innovation with sensible safeguards for consumers. " +
	"I want to be clear that no single measure can address every challenge. " +
	"We will take questions at the end of the session."

const pipelineCategorization = `{
  "entities": [
    {
      "entity_name": "Central Reserve Bank",
      "entity_type": "organization",
      "mentions": [
        {
          "topic": "economics",
          "context": "The speaker credited the Central Reserve Bank with steady inflation control.",
          "subjects": [
            {
              "subject_name": "interest rates",
              "sentiment": "neutral",
              "quotes": ["we expect that trend to continue"]
            }
          ]
        }
      ]
    },
    {
      "entity_name": "Aurora Broadband Program",
      "entity_type": "program",
      "mentions": [
        {
          "topic": "technology",
          "context": "The speaker tied future growth to the Aurora Broadband Program rollout.",
          "subjects": [
            {
              "subject_name": "digital infrastructure",
              "sentiment": "positive",
              "quotes": ["define the next decade of growth"]
            }
          ]
        }
      ]
    }
  ]
}`

// TestPipeline_SingleItemAllStages drives one item from a feed entry to
// graph nodes using the real processors end to end. Only the model
// client is stubbed; fetching runs against a local server and the graph
// lands in the in-memory store.
func TestPipeline_SingleItemAllStages(t *testing.T) {
	articlePath := "/2026/02/10/remarks-on-monetary-policy"

	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Speeches</title>
<item>
  <title>Remarks on Monetary Policy</title>
  <link>http://%s%s</link>
  <pubDate>Tue, 10 Feb 2026 10:00:00 GMT</pubDate>
</item>
</channel></rss>`, r.Host, articlePath)
	})
	mux.HandleFunc(articlePath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
  <title>Remarks on Monetary Policy</title>
  <meta property="og:title" content="Remarks on Monetary Policy">
  <meta property="article:published_time" content="2026-02-10T10:00:00Z">
</head>
<body>
  <nav>Home | Speeches | About</nav>
  <article><p>%s</p></article>
  <footer>Site footer</footer>
</body>
</html>`, pipelineTranscript)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	registry, err := speakers.Parse([]byte(fmt.Sprintf(`{
  "alex hartwell": {
    "display_name": "Alex Hartwell",
    "role": "Governor",
    "organization": "Central Reserve Bank",
    "industry": "finance",
    "region": "US",
    "sources": [{"type": "rss", "url": "%s/feed.xml"}]
  }
}`, server.URL)))
	require.NoError(t, err)

	sb, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	journ, err := journal.Open(sb, "test")
	require.NoError(t, err)
	store := artifact.NewStore(sb, "test")
	runtime := core.NewRuntime(journ, store).WithFanout(2)

	fetcher := fetch.New(fetch.Config{
		Timeout:       5 * time.Second,
		RetryDelay:    time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	completer := llm.CompleterFunc(func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: pipelineCategorization, Model: "stub"}, nil
	})
	graphStore := graph.NewMemoryStore()

	ctx := context.Background()
	req := core.DiscoverRequest{
		Speaker: "alex hartwell",
		Start:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	}

	discoverReport, err := runtime.RunDiscover(ctx, discover.New(fetcher, registry), req)
	require.NoError(t, err)
	require.Equal(t, 1, discoverReport.Succeeded)
	assert.Equal(t, 1, discoverReport.ItemsTotal)
	assert.Zero(t, discoverReport.Skipped)

	states := journ.All()
	require.Len(t, states, 1)
	id := states[0].ID
	assert.True(t, strings.HasPrefix(id, "2026-02-10-remarks-on-monetary-policy-"), "id %q", id)
	assert.Equal(t, models.ContentTypeSpeech, states[0].ContentType)
	require.NotNil(t, states[0].NextStage)
	assert.Equal(t, models.StageScrape, *states[0].NextStage)

	// A second discover over the same window creates nothing new.
	rediscover, err := runtime.RunDiscover(ctx, discover.New(fetcher, registry), req)
	require.NoError(t, err)
	assert.Zero(t, rediscover.Succeeded)
	assert.Equal(t, 1, rediscover.Skipped)

	stages := []core.Processor{
		scrape.New(fetcher),
		summarize.New(1000),
		categorize.New(completer),
		graphstage.New(graph.NewBuilder(registry), graphStore),
	}
	for _, p := range stages {
		report, err := runtime.RunStage(ctx, p)
		require.NoError(t, err, "stage %s", p.Stage())
		require.Equal(t, 1, report.Succeeded, "stage %s: %+v", p.Stage(), report.Failures)
		require.Zero(t, report.Failed, "stage %s", p.Stage())
	}

	// The item is complete: every stage recorded, nothing left to run.
	final, err := journ.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Nil(t, final.NextStage)
	require.NotNil(t, final.LatestCompletedStage)
	assert.Equal(t, models.StageGraph, *final.LatestCompletedStage)
	assert.Zero(t, final.RetryCount)
	assert.Empty(t, final.ErrorMessage)
	assert.Len(t, final.FilePaths, 5)
	assert.Equal(t, "Remarks on Monetary Policy", final.Title)
	assert.Equal(t, "2026-02-10", final.ContentDate)

	rerun, err := runtime.RunStage(ctx, scrape.New(fetcher))
	require.NoError(t, err)
	assert.Zero(t, rerun.ItemsTotal, "completed items are never re-dispatched")

	var report models.GraphReport
	require.NoError(t, store.LoadFor(final, models.StageGraph, &report))
	assert.Equal(t, 8, report.NodesCreated)
	assert.Zero(t, report.NodesMerged)
	assert.Equal(t, 7, report.EdgesCreated)
	assert.Equal(t, 2, report.MentionCount)
	assert.Equal(t, 2, report.SubjectCount)
	assert.Empty(t, report.Warnings)

	speaker, ok := graphStore.Speaker("alex hartwell")
	require.True(t, ok)
	assert.Equal(t, "Alex Hartwell", speaker.DisplayName)

	comm, ok := graphStore.Communication(id)
	require.True(t, ok)
	assert.Equal(t, len(strings.Fields(pipelineTranscript)), comm.WordCount)
	assert.False(t, comm.WasSummarized)

	entity, ok := graphStore.Entity("central reserve bank")
	require.True(t, ok)
	assert.Equal(t, models.EntityTypeOrganization, entity.EntityType)

	mention, ok := graphStore.Mention(id, "central reserve bank", models.TopicEconomics)
	require.True(t, ok)
	assert.NotEmpty(t, mention.Context)
	require.Len(t, graphStore.Subjects(id, "central reserve bank", models.TopicEconomics), 1)
	assert.Equal(t, models.SentimentNeutral, graphStore.Subjects(id, "central reserve bank", models.TopicEconomics)[0].Sentiment)
}
