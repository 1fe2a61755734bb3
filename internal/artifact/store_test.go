package artifact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

func testStore(t *testing.T) (*Store, *storage.Sandbox) {
	t.Helper()
	sb, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return NewStore(sb, "test"), sb
}

func sampleState() *models.PipelineState {
	return models.NewDiscoveredState(models.DiscoverArtifact{
		ID:          "2024-02-28-remarks-on-trade-ab12cd34",
		SourceURL:   "https://example.org/remarks",
		ContentType: models.ContentTypeSpeech,
		Title:       "Remarks on Trade",
		Speaker:     "jane doe",
	}, "test/jane doe/discover/speech/2024-02-28-remarks-on-trade-ab12cd34.json", time.Now().UTC())
}

func TestPathFor(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	got := store.PathFor(state, models.StageScrape)
	assert.Equal(t, "test/jane doe/scrape/speech/2024-02-28-remarks-on-trade-ab12cd34.json", got)
}

func TestPathFor_UnknownContentType(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()
	state.ContentType = ""

	got := store.PathFor(state, models.StageScrape)
	assert.Contains(t, got, "/scrape/unknown/")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	art := models.ScrapeArtifact{
		FullText:  "We gathered today to talk about trade.",
		WordCount: 8,
		Title:     "Remarks on Trade",
		SourceURL: state.SourceURL,
	}

	relPath, err := store.Save(state, models.StageScrape, art)
	require.NoError(t, err)
	assert.Equal(t, store.PathFor(state, models.StageScrape), relPath)

	var loaded models.ScrapeArtifact
	require.NoError(t, store.Load(relPath, &loaded))
	assert.Equal(t, art, loaded)
}

func TestSave_Overwrites(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	_, err := store.Save(state, models.StageScrape, models.ScrapeArtifact{FullText: "first"})
	require.NoError(t, err)
	relPath, err := store.Save(state, models.StageScrape, models.ScrapeArtifact{FullText: "second"})
	require.NoError(t, err)

	var loaded models.ScrapeArtifact
	require.NoError(t, store.Load(relPath, &loaded))
	assert.Equal(t, "second", loaded.FullText)
}

func TestLoad_Missing(t *testing.T) {
	store, _ := testStore(t)

	var out models.ScrapeArtifact
	err := store.Load("test/jane doe/scrape/speech/nope.json", &out)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestLoad_Corrupt(t *testing.T) {
	store, sb := testStore(t)
	require.NoError(t, sb.AtomicWrite("test/bad.json", []byte("{truncated")))

	var out map[string]any
	err := store.Load("test/bad.json", &out)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoadFor_ResolvesThroughFilePaths(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	relPath, err := store.Save(state, models.StageScrape, models.ScrapeArtifact{FullText: "text", WordCount: 1})
	require.NoError(t, err)
	state.FilePaths[models.StageScrape] = relPath

	var loaded models.ScrapeArtifact
	require.NoError(t, store.LoadFor(state, models.StageScrape, &loaded))
	assert.Equal(t, "text", loaded.FullText)
}

func TestLoadFor_NoRecordedPath(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	var out models.ScrapeArtifact
	err := store.LoadFor(state, models.StageScrape, &out)
	require.ErrorIs(t, err, ErrMissing)
	assert.Contains(t, err.Error(), "no recorded scrape artifact")
}

func TestLoadFor_SchemaMismatchIsCorrupt(t *testing.T) {
	store, _ := testStore(t)
	state := sampleState()

	relPath, err := store.Save(state, models.StageCategorize, map[string]any{"entities": "not a list"})
	require.NoError(t, err)
	state.FilePaths[models.StageCategorize] = relPath

	var out models.CategorizeArtifact
	err = store.LoadFor(state, models.StageCategorize, &out)
	assert.ErrorIs(t, err, ErrCorrupt)
}
