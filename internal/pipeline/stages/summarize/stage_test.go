package summarize

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

func newTestProcessor(targetWords int) *Processor {
	return New(targetWords).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func scrapePriors(t *testing.T, fullText string) map[models.Stage]json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(models.ScrapeArtifact{
		FullText:  fullText,
		WordCount: len(strings.Fields(fullText)),
		SourceURL: "https://example.org/speech",
	})
	require.NoError(t, err)
	return map[models.Stage]json.RawMessage{models.StageScrape: raw}
}

func testState() *models.PipelineState {
	return &models.PipelineState{
		ID:          "2026-01-28-remarks-abcd1234",
		Speaker:     "jane doe",
		ContentType: models.ContentTypeSpeech,
	}
}

func TestProcess_PassthroughWithinBudget(t *testing.T) {
	text := "A short statement about policy. Nothing needs trimming."
	result, err := newTestProcessor(0).Process(context.Background(), testState(), scrapePriors(t, text))
	require.NoError(t, err)

	art, ok := result.Artifact.(models.SummarizeArtifact)
	require.True(t, ok)
	assert.Equal(t, text, art.Summary)
	assert.False(t, art.WasSummarized)
	assert.Nil(t, art.CompressionRatio, "passthrough must not report a ratio")
	assert.Equal(t, art.OriginalWordCount, art.SummaryWordCount)
	assert.Equal(t, DefaultTargetWords, art.TargetWordCount)
	assert.True(t, art.Success)
	assert.Empty(t, art.ErrorMessage)
}

func TestProcess_Summarizes(t *testing.T) {
	parts := append([]string{}, themeSentences...)
	parts = append(parts, outlierSentence)
	text := strings.Join(parts, " ")

	result, err := newTestProcessor(50).Process(context.Background(), testState(), scrapePriors(t, text))
	require.NoError(t, err)

	art, ok := result.Artifact.(models.SummarizeArtifact)
	require.True(t, ok)
	assert.True(t, art.WasSummarized)
	assert.Equal(t, 50, art.TargetWordCount)
	assert.LessOrEqual(t, art.SummaryWordCount, 50)
	assert.Equal(t, 63, art.OriginalWordCount)
	require.NotNil(t, art.CompressionRatio)
	assert.Greater(t, *art.CompressionRatio, 0.0)
	assert.Less(t, *art.CompressionRatio, 1.0)
	assert.True(t, art.Success)
}

func TestProcess_CorruptScrapeArtifact(t *testing.T) {
	priors := map[models.Stage]json.RawMessage{
		models.StageScrape: json.RawMessage(`{"full_text": 42}`),
	}

	_, err := newTestProcessor(0).Process(context.Background(), testState(), priors)
	require.Error(t, err)
	assert.Equal(t, core.KindArtifactCorrupt, core.Classify(err))
}

func TestProcess_EmptyTranscript(t *testing.T) {
	_, err := newTestProcessor(0).Process(context.Background(), testState(), scrapePriors(t, "   "))
	require.Error(t, err)
	assert.Equal(t, core.KindValidationError, core.Classify(err))
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestProcessor(0).Process(ctx, testState(), scrapePriors(t, "Some text to work on."))
	require.ErrorIs(t, err, context.Canceled)
}
