package journal

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

func testJournal(t *testing.T) (*Journal, *storage.Sandbox) {
	t.Helper()
	sb, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	j, err := Open(sb, "test")
	require.NoError(t, err)
	return j, sb
}

func discovered(i int, createdAt time.Time) *models.PipelineState {
	id := fmt.Sprintf("2024-01-%02d-item-%08x", (i%27)+1, i)
	return models.NewDiscoveredState(models.DiscoverArtifact{
		ID:          id,
		SourceURL:   fmt.Sprintf("https://example.org/item/%d", i),
		ContentType: models.ContentTypeSpeech,
		Title:       fmt.Sprintf("Item %d", i),
		Speaker:     "jane doe",
	}, fmt.Sprintf("test/jane doe/discover/speech/%s.json", id), createdAt)
}

func TestOpen_MissingFile(t *testing.T) {
	j, _ := testJournal(t)
	assert.Equal(t, 0, j.Len())
}

func TestCreate_PersistsAndReloads(t *testing.T) {
	j, sb := testJournal(t)
	state := discovered(1, time.Now().UTC())

	require.NoError(t, j.Create(state))

	data, err := sb.ReadFile(j.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"), "journal lines are newline-terminated")

	reloaded, err := Open(sb, "test")
	require.NoError(t, err)
	got, err := reloaded.Get(state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.SourceURL, got.SourceURL)
	assert.Equal(t, models.StageScrape, *got.NextStage)
}

func TestCreate_DuplicateID(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	dup := state.Clone()
	dup.SourceURL = "https://example.org/other"
	err := j.Create(dup)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreate_DuplicateSourceURL(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	dup := discovered(2, time.Now().UTC())
	dup.SourceURL = state.SourceURL
	err := j.Create(dup)
	assert.ErrorIs(t, err, ErrDuplicateSourceURL)
}

func TestCreate_AfterInvalidateReleasesSourceURL(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))
	require.NoError(t, j.Invalidate(state.ID))

	replacement := discovered(2, time.Now().UTC())
	replacement.SourceURL = state.SourceURL
	assert.NoError(t, j.Create(replacement))
}

func TestGet_NotFound(t *testing.T) {
	j, _ := testJournal(t)
	_, err := j.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsCopy(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	got, err := j.Get(state.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.FilePaths[models.StageScrape] = "sneaky.json"

	again, err := j.Get(state.ID)
	require.NoError(t, err)
	assert.Equal(t, "Item 1", again.Title)
	assert.NotContains(t, again.FilePaths, models.StageScrape)
}

func TestItemsReadyFor_OrderedByCreation(t *testing.T) {
	j, _ := testJournal(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// Insert newest first to prove ordering is by creation time.
	for i := 3; i >= 1; i-- {
		require.NoError(t, j.Create(discovered(i, base.Add(time.Duration(i)*time.Minute))))
	}

	ready := j.ItemsReadyFor(models.StageScrape)
	require.Len(t, ready, 3)
	assert.True(t, ready[0].CreatedAt.Before(ready[1].CreatedAt))
	assert.True(t, ready[1].CreatedAt.Before(ready[2].CreatedAt))

	assert.Empty(t, j.ItemsReadyFor(models.StageGraph))
}

func TestUpdateOnSuccess_AdvancesStage(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	meta := models.Metadata{Title: "Scraped Title", ContentDate: "2024-02-28"}
	updated, err := j.UpdateOnSuccess(state.ID, models.StageScrape, "test/jane doe/scrape/speech/x.json", meta, 1500*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, models.StageScrape, *updated.LatestCompletedStage)
	assert.Equal(t, models.StageSummarize, *updated.NextStage)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, "Scraped Title", updated.Title)
	assert.Equal(t, "2024-02-28", updated.ContentDate)
	assert.Equal(t, "test/jane doe/scrape/speech/x.json", updated.FilePaths[models.StageScrape])
	assert.InDelta(t, 1.5, updated.ProcessingTimeSeconds, 0.001)
	assert.Zero(t, updated.RetryCount)
}

func TestUpdateOnSuccess_ClearsFailureState(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	_, err := j.UpdateOnFailure(state.ID, "boom", "raw output")
	require.NoError(t, err)

	updated, err := j.UpdateOnSuccess(state.ID, models.StageScrape, "p.json", models.Metadata{}, time.Second)
	require.NoError(t, err)
	assert.Empty(t, updated.ErrorMessage)
	assert.Empty(t, updated.FailedOutput)
	assert.Zero(t, updated.RetryCount)
}

func TestUpdateOnSuccess_AccumulatesTime(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	_, err := j.UpdateOnSuccess(state.ID, models.StageScrape, "a.json", models.Metadata{}, 1234*time.Millisecond)
	require.NoError(t, err)
	updated, err := j.UpdateOnSuccess(state.ID, models.StageSummarize, "b.json", models.Metadata{}, 2*time.Second)
	require.NoError(t, err)

	assert.InDelta(t, 3.23, updated.ProcessingTimeSeconds, 0.001)
}

func TestUpdateOnSuccess_WrongStage(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	_, err := j.UpdateOnSuccess(state.ID, models.StageGraph, "g.json", models.Metadata{}, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ready for scrape")
}

func TestUpdateOnSuccess_ToTerminal(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	stages := []models.Stage{models.StageScrape, models.StageSummarize, models.StageCategorize, models.StageGraph}
	for _, stage := range stages {
		_, err := j.UpdateOnSuccess(state.ID, stage, "test/"+stage.String()+".json", models.Metadata{}, time.Second)
		require.NoError(t, err)
	}

	final, err := j.Get(state.ID)
	require.NoError(t, err)
	assert.True(t, final.IsTerminal())
	assert.Nil(t, final.NextStage)
	assert.Equal(t, models.StageGraph, *final.LatestCompletedStage)

	_, err = j.UpdateOnSuccess(state.ID, models.StageGraph, "again.json", models.Metadata{}, time.Second)
	assert.ErrorContains(t, err, "already complete")
}

func TestUpdateOnFailure(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	updated, err := j.UpdateOnFailure(state.ID, "timeout", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, updated.Status)
	assert.Equal(t, "timeout", updated.ErrorMessage)
	assert.Equal(t, 1, updated.RetryCount)
	assert.Equal(t, models.StageScrape, *updated.NextStage, "failure keeps the item eligible for retry")

	updated, err = j.UpdateOnFailure(state.ID, "timeout again", "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.RetryCount)
}

func TestUpdateOnFailure_CapsOutput(t *testing.T) {
	j, _ := testJournal(t)
	j.WithFailedOutputLimit(10)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	updated, err := j.UpdateOnFailure(state.ID, "boom", strings.Repeat("é", 20))
	require.NoError(t, err)

	assert.LessOrEqual(t, len(updated.FailedOutput), 10)
	assert.Equal(t, strings.Repeat("é", 5), updated.FailedOutput, "truncation never splits a rune")
}

func TestMarkInProgress(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	updated, err := j.MarkInProgress(state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
}

func TestInvalidate(t *testing.T) {
	j, _ := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))

	require.NoError(t, j.Invalidate(state.ID))

	got, err := j.Get(state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInvalidated, got.Status)
	assert.Empty(t, j.ItemsReadyFor(models.StageScrape))

	assert.ErrorIs(t, j.Invalidate("missing"), ErrNotFound)
}

func TestPersistence_SurvivesUpdates(t *testing.T) {
	j, sb := testJournal(t)
	state := discovered(1, time.Now().UTC())
	require.NoError(t, j.Create(state))
	_, err := j.UpdateOnSuccess(state.ID, models.StageScrape, "s.json", models.Metadata{}, time.Second)
	require.NoError(t, err)
	_, err = j.UpdateOnFailure(state.ID, "llm unavailable", "stack")
	require.NoError(t, err)

	reloaded, err := Open(sb, "test")
	require.NoError(t, err)
	got, err := reloaded.Get(state.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StageSummarize, *got.NextStage)
	assert.Equal(t, "llm unavailable", got.ErrorMessage)
	assert.Equal(t, "stack", got.FailedOutput)
	assert.Equal(t, 1, got.RetryCount)
}

func TestOpen_RejectsMalformedLine(t *testing.T) {
	sb, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sb.AtomicWrite("state/pipeline_state_test.jsonl", []byte("not json\n")))

	_, err = Open(sb, "test")
	assert.ErrorContains(t, err, "line 1")
}
