package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleDataGenerator(t *testing.T) {
	gen := NewSampleDataGenerator()
	require.NotNil(t, gen)
	require.NotNil(t, gen.rng)
}

func TestNewSampleDataGeneratorWithSeed(t *testing.T) {
	gen1 := NewSampleDataGeneratorWithSeed(42)
	gen2 := NewSampleDataGeneratorWithSeed(42)

	// Same seed should produce same results
	assert.Equal(t, gen1.RandomSpeakerName(), gen2.RandomSpeakerName())
	assert.Equal(t, gen1.RandomTitle(), gen2.RandomTitle())
}

func TestRandomSpeakerName(t *testing.T) {
	gen := NewSampleDataGenerator()

	for i := 0; i < 10; i++ {
		name := gen.RandomSpeakerName()
		assert.NotEmpty(t, name)
		assert.Contains(t, SpeakerNames, name)
	}
}

func TestRandomTitle(t *testing.T) {
	gen := NewSampleDataGenerator()

	for i := 0; i < 10; i++ {
		title := gen.RandomTitle()
		assert.NotEmpty(t, title)
		assert.Contains(t, TitleTemplates, title)
	}
}

func TestGenerateSpeaker(t *testing.T) {
	gen := NewSampleDataGenerator()

	speaker := gen.GenerateSpeaker("Alex Hartwell")
	require.NoError(t, speaker.Validate())

	assert.Equal(t, "Alex Hartwell", speaker.DisplayName)
	assert.Contains(t, Roles, speaker.Role)
	assert.Contains(t, Organizations, speaker.Organization)
	assert.Contains(t, Regions, speaker.Region)
	require.NotNil(t, speaker.InfluenceScore)
	assert.GreaterOrEqual(t, *speaker.InfluenceScore, 0.3)
	assert.Less(t, *speaker.InfluenceScore, 0.95)

	require.Len(t, speaker.Sources, 1)
	assert.Equal(t, models.SourceKindRSS, speaker.Sources[0].Kind)
	assert.Contains(t, speaker.Sources[0].URL, "alex-hartwell")
}

func TestGenerateRegistry(t *testing.T) {
	gen := NewSampleDataGenerator()

	registry := gen.GenerateRegistry(3)
	require.Len(t, registry, 3)

	for key, speaker := range registry {
		assert.Equal(t, models.CanonicalName(speaker.DisplayName), key)
		assert.NoError(t, speaker.Validate())
	}
}

func TestGenerateRegistry_MoreThanPool(t *testing.T) {
	gen := NewSampleDataGenerator()

	// Names past the pool get a numeric suffix so keys stay distinct.
	count := len(SpeakerNames) + 2
	registry := gen.GenerateRegistry(count)
	assert.Len(t, registry, count)
}

func TestGenerateSampleItems(t *testing.T) {
	gen := NewSampleDataGenerator()
	opts := DefaultGenerateOptions()
	opts.Speaker = "morgan vale"
	opts.ContentType = models.ContentTypeInterview
	opts.StartDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	items := gen.GenerateSampleItems(10, opts)
	require.Len(t, items, 10)

	seenIDs := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	for i, item := range items {
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}-[a-z0-9-]+-[0-9a-f]{8}$`, item.ID)
		assert.Equal(t, opts.StartDate.AddDate(0, 0, i).Format("2006-01-02"), item.ContentDate)
		assert.Equal(t, "morgan vale", item.Speaker)
		assert.Equal(t, models.ContentTypeInterview, item.ContentType)
		assert.Contains(t, item.SourceURL, "speeches.example.org")
		assert.Contains(t, TitleTemplates, item.Title)

		seenIDs[item.ID] = struct{}{}
		seenURLs[item.SourceURL] = struct{}{}
	}
	assert.Len(t, seenIDs, 10, "item ids should be unique")
	assert.Len(t, seenURLs, 10, "source urls should be unique")
}

func TestSampleItem_ToDiscoverArtifact(t *testing.T) {
	item := SampleItem{
		ID:          "2026-03-01-remarks-on-monetary-policy-deadbeef",
		Title:       "Remarks on Monetary Policy",
		ContentDate: "2026-03-01",
		SourceURL:   "https://speeches.example.org/2026-03-01-remarks-on-monetary-policy-deadbeef",
		ContentType: models.ContentTypeSpeech,
		Speaker:     "alex hartwell",
	}

	art := item.ToDiscoverArtifact()
	assert.Equal(t, item.ID, art.ID)
	assert.Equal(t, item.Title, art.Title)
	assert.Equal(t, item.ContentDate, art.ContentDate)
	assert.Equal(t, item.SourceURL, art.SourceURL)
	assert.Equal(t, item.ContentType, art.ContentType)
	assert.Equal(t, item.Speaker, art.Speaker)
}

func TestSampleItem_ToState(t *testing.T) {
	gen := NewSampleDataGeneratorWithSeed(7)
	items := gen.GenerateSampleItems(1, DefaultGenerateOptions())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	state := items[0].ToState("test/alex hartwell/discover/speech/item.json", now)
	require.NotNil(t, state)

	assert.Equal(t, items[0].ID, state.ID)
	assert.Equal(t, models.StatusCompleted, state.Status)
	require.NotNil(t, state.LatestCompletedStage)
	assert.Equal(t, models.StageDiscover, *state.LatestCompletedStage)
	require.NotNil(t, state.NextStage)
	assert.Equal(t, models.StageScrape, *state.NextStage)
	assert.Equal(t, "test/alex hartwell/discover/speech/item.json", state.FilePaths[models.StageDiscover])
	assert.Equal(t, now, state.CreatedAt)
}

func TestGenerateTranscript(t *testing.T) {
	gen := NewSampleDataGenerator()

	transcript := gen.GenerateTranscript(200)
	words := strings.Fields(transcript)
	assert.GreaterOrEqual(t, len(words), 200)
	assert.True(t, strings.HasSuffix(transcript, "."))
}

func TestGenerateScrapeArtifact(t *testing.T) {
	gen := NewSampleDataGenerator()
	items := gen.GenerateSampleItems(1, DefaultGenerateOptions())

	art := gen.GenerateScrapeArtifact(items[0], 150)
	assert.Equal(t, len(strings.Fields(art.FullText)), art.WordCount)
	assert.GreaterOrEqual(t, art.WordCount, 150)
	assert.Equal(t, items[0].Title, art.Title)
	assert.Equal(t, items[0].ContentDate, art.ContentDate)
	assert.Equal(t, items[0].ContentType, art.ContentType)
	assert.Equal(t, items[0].SourceURL, art.SourceURL)
}

func TestGenerateSummarizeArtifact(t *testing.T) {
	gen := NewSampleDataGenerator()
	items := gen.GenerateSampleItems(1, DefaultGenerateOptions())
	scrape := gen.GenerateScrapeArtifact(items[0], 300)

	art := gen.GenerateSummarizeArtifact(scrape, 50)
	assert.True(t, art.WasSummarized)
	assert.True(t, art.Success)
	assert.Equal(t, 50, art.SummaryWordCount)
	assert.Equal(t, 50, art.TargetWordCount)
	assert.Equal(t, scrape.WordCount, art.OriginalWordCount)
	assert.Len(t, strings.Fields(art.Summary), 50)
	require.NotNil(t, art.CompressionRatio)
	assert.Greater(t, *art.CompressionRatio, 0.0)
	assert.Less(t, *art.CompressionRatio, 1.0)
}

func TestGenerateSummarizeArtifact_ShortTranscript(t *testing.T) {
	gen := NewSampleDataGenerator()
	items := gen.GenerateSampleItems(1, DefaultGenerateOptions())
	scrape := gen.GenerateScrapeArtifact(items[0], 20)

	art := gen.GenerateSummarizeArtifact(scrape, 1000)
	assert.False(t, art.WasSummarized)
	assert.Equal(t, scrape.FullText, art.Summary)
	assert.Equal(t, scrape.WordCount, art.SummaryWordCount)
	assert.Nil(t, art.CompressionRatio)
}

func TestGenerateCategorizeArtifact(t *testing.T) {
	gen := NewSampleDataGenerator()

	art := gen.GenerateCategorizeArtifact(4)
	require.NoError(t, art.Validate())
	require.Len(t, art.Entities, 4)

	for _, e := range art.Entities {
		require.Len(t, e.Mentions, 1)
		require.Len(t, e.Mentions[0].Subjects, 1)
		assert.Contains(t, SubjectNames, e.Mentions[0].Subjects[0].SubjectName)
	}
}

func TestGenerateCategorizeArtifact_CappedAtPool(t *testing.T) {
	gen := NewSampleDataGenerator()

	art := gen.GenerateCategorizeArtifact(100)
	assert.Len(t, art.Entities, len(EntitySeeds))
	assert.NoError(t, art.Validate())
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Remarks on Monetary Policy", "remarks-on-monetary-policy"},
		{"Q&A: 2026 Outlook", "q-a-2026-outlook"},
		{"  spaced   out  ", "spaced-out"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, slugify(tt.in))
		})
	}
}
