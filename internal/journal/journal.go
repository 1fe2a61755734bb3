// Package journal persists pipeline state records as JSONL and serves
// as the sole authority on item progress. One record per item; the whole
// file is rewritten atomically on every mutation and all access is
// serialized through a single mutex.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/storage"
)

// DefaultFailedOutputLimit caps captured failure output stored per record.
const DefaultFailedOutputLimit = 64 * 1024

// Sentinel errors returned by journal operations.
var (
	// ErrNotFound indicates the requested item id has no record.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateID indicates a create with an id that already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDuplicateSourceURL indicates a create whose source URL already
	// belongs to a non-invalidated record.
	ErrDuplicateSourceURL = errors.New("duplicate source_url")
)

// Journal is the single-writer pipeline state store for one environment.
type Journal struct {
	mu                sync.Mutex
	sandbox           *storage.Sandbox
	relPath           string
	logger            *slog.Logger
	failedOutputLimit int

	items    map[string]*models.PipelineState
	order    []string
	bySource map[string]string
}

// RelPath returns the journal file path for an environment, relative to
// the sandbox root.
func RelPath(environment string) string {
	return path.Join("state", fmt.Sprintf("pipeline_state_%s.jsonl", environment))
}

// Open loads (or initializes) the journal for an environment inside the
// given sandbox. A missing journal file yields an empty journal; a
// malformed file is an error.
func Open(sandbox *storage.Sandbox, environment string) (*Journal, error) {
	j := &Journal{
		sandbox:           sandbox,
		relPath:           RelPath(environment),
		logger:            slog.Default(),
		failedOutputLimit: DefaultFailedOutputLimit,
		items:             make(map[string]*models.PipelineState),
		bySource:          make(map[string]string),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// WithLogger sets the logger.
func (j *Journal) WithLogger(logger *slog.Logger) *Journal {
	j.logger = logger.With("component", "journal")
	return j
}

// WithFailedOutputLimit overrides the failure output cap in bytes.
func (j *Journal) WithFailedOutputLimit(limit int) *Journal {
	if limit >= 0 {
		j.failedOutputLimit = limit
	}
	return j
}

// Path returns the journal file path relative to the sandbox root.
func (j *Journal) Path() string {
	return j.relPath
}

// load reads the whole journal file and rebuilds the in-memory index.
func (j *Journal) load() error {
	data, err := j.sandbox.ReadFile(j.relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading journal: %w", err)
	}

	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var state models.PipelineState
		if err := json.Unmarshal(line, &state); err != nil {
			return fmt.Errorf("loading journal: line %d: %w", i+1, err)
		}
		if _, dup := j.items[state.ID]; dup {
			return fmt.Errorf("loading journal: line %d: %w: %s", i+1, ErrDuplicateID, state.ID)
		}
		j.index(&state)
	}
	return nil
}

// index inserts a record into the in-memory maps. Caller holds the lock
// or is still single-threaded in load.
func (j *Journal) index(state *models.PipelineState) {
	j.items[state.ID] = state
	j.order = append(j.order, state.ID)
	if !state.IsInvalidated() {
		j.bySource[state.SourceURL] = state.ID
	}
}

// persistLocked rewrites the whole journal file. Records keep their
// insertion order; the file is newline-terminated.
func (j *Journal) persistLocked() error {
	var buf bytes.Buffer
	for _, id := range j.order {
		line, err := json.Marshal(j.items[id])
		if err != nil {
			return fmt.Errorf("encoding journal record %s: %w", id, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := j.sandbox.AtomicWrite(j.relPath, buf.Bytes()); err != nil {
		return fmt.Errorf("persisting journal: %w", err)
	}
	return nil
}

// Create inserts a new record. The id must be unique across all records
// and the source URL unique among non-invalidated ones.
func (j *Journal) Create(state *models.PipelineState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.items[state.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, state.ID)
	}
	if id, exists := j.bySource[state.SourceURL]; exists {
		return fmt.Errorf("%w: %s already held by %s", ErrDuplicateSourceURL, state.SourceURL, id)
	}

	j.index(state.Clone())
	if err := j.persistLocked(); err != nil {
		j.dropLocked(state.ID)
		return err
	}
	return nil
}

// dropLocked removes a record from the in-memory maps after a failed
// persist, keeping memory consistent with disk.
func (j *Journal) dropLocked(id string) {
	state, ok := j.items[id]
	if !ok {
		return
	}
	delete(j.items, id)
	if j.bySource[state.SourceURL] == id {
		delete(j.bySource, state.SourceURL)
	}
	for i, oid := range j.order {
		if oid == id {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the record for id.
func (j *Journal) Get(id string) (*models.PipelineState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	state, ok := j.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return state.Clone(), nil
}

// Len returns the number of records, invalidated ones included.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.items)
}

// All returns copies of every record ordered by creation time.
func (j *Journal) All() []*models.PipelineState {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]*models.PipelineState, 0, len(j.items))
	for _, state := range j.items {
		out = append(out, state.Clone())
	}
	sortByCreation(out)
	return out
}

// ItemsReadyFor returns copies of the records whose next stage matches,
// oldest first. Invalidated records are excluded.
func (j *Journal) ItemsReadyFor(stage models.Stage) []*models.PipelineState {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*models.PipelineState
	for _, state := range j.items {
		if state.ReadyFor(stage) {
			out = append(out, state.Clone())
		}
	}
	sortByCreation(out)
	return out
}

// FindBySourceURL returns a copy of the non-invalidated record holding
// the given source URL.
func (j *Journal) FindBySourceURL(sourceURL string) (*models.PipelineState, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id, ok := j.bySource[sourceURL]
	if !ok {
		return nil, false
	}
	return j.items[id].Clone(), true
}

// MarkInProgress records that a worker owns the item for an attempt.
func (j *Journal) MarkInProgress(id string) (*models.PipelineState, error) {
	return j.update(id, func(state *models.PipelineState) error {
		state.Status = models.StatusInProgress
		return nil
	})
}

// UpdateOnSuccess records a completed stage for an item: the stage
// becomes the latest completed, the next stage advances per the static
// sequence, the artifact path is recorded, metadata is merged, failure
// fields are cleared, and the attempt duration is added to the
// cumulative processing time.
func (j *Journal) UpdateOnSuccess(id string, stage models.Stage, artifactPath string, meta models.Metadata, elapsed time.Duration) (*models.PipelineState, error) {
	return j.update(id, func(state *models.PipelineState) error {
		if state.NextStage == nil {
			return fmt.Errorf("item %s already complete", id)
		}
		if *state.NextStage != stage {
			return fmt.Errorf("item %s is ready for %s, not %s", id, *state.NextStage, stage)
		}

		latest := stage
		state.LatestCompletedStage = &latest
		if next, ok := stage.Next(); ok {
			state.NextStage = &next
		} else {
			state.NextStage = nil
		}
		state.FilePaths[stage] = artifactPath
		state.MergeMetadata(meta)
		state.Status = models.StatusCompleted
		state.ErrorMessage = ""
		state.FailedOutput = ""
		state.RetryCount = 0
		state.ProcessingTimeSeconds = round2(state.ProcessingTimeSeconds + elapsed.Seconds())
		return nil
	})
}

// UpdateOnFailure records a failed attempt: the next stage is unchanged
// so the item stays eligible for retry, the error is recorded with
// size-capped output, and the retry count grows.
func (j *Journal) UpdateOnFailure(id string, errMsg string, failedOutput string) (*models.PipelineState, error) {
	return j.update(id, func(state *models.PipelineState) error {
		state.Status = models.StatusFailed
		state.ErrorMessage = errMsg
		state.FailedOutput = truncateUTF8(failedOutput, j.failedOutputLimit)
		state.RetryCount++
		return nil
	})
}

// Invalidate excludes an item from all future runs and releases its
// source URL for rediscovery.
func (j *Journal) Invalidate(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev, ok := j.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := prev.Clone()
	next.Status = models.StatusInvalidated
	next.UpdatedAt = time.Now().UTC()

	j.items[id] = next
	if err := j.persistLocked(); err != nil {
		j.items[id] = prev
		return err
	}
	if j.bySource[next.SourceURL] == id {
		delete(j.bySource, next.SourceURL)
	}
	return nil
}

// update applies fn to a copy of the record, swaps it in, and persists.
// On persist failure the previous record is restored.
func (j *Journal) update(id string, fn func(*models.PipelineState) error) (*models.PipelineState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev, ok := j.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := prev.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()

	j.items[id] = next
	if err := j.persistLocked(); err != nil {
		j.items[id] = prev
		return nil, err
	}
	return next.Clone(), nil
}

// sortByCreation orders records oldest first, ties broken by id for
// deterministic batches.
func sortByCreation(states []*models.PipelineState) {
	sort.SliceStable(states, func(a, b int) bool {
		if states[a].CreatedAt.Equal(states[b].CreatedAt) {
			return states[a].ID < states[b].ID
		}
		return states[a].CreatedAt.Before(states[b].CreatedAt)
	})
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
