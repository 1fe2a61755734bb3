package models

import (
	"strings"
	"time"
)

// PipelineState tracks one communication's progress through the stage
// sequence. It is the unit of the journal; the journal is the sole
// authority on progress, and only the runtime mutates records.
type PipelineState struct {
	// ID is the stable item identifier assigned at discover time.
	ID string `json:"id"`

	// RunTimestamp records when the item first entered the system.
	RunTimestamp time.Time `json:"run_timestamp"`

	// Speaker is the registry key namespacing the artifact layout.
	Speaker string `json:"speaker"`

	// ContentType is set at discover; "unknown" before that.
	ContentType ContentType `json:"content_type"`

	// SourceURL is the original source, used for deduplication.
	SourceURL string `json:"source_url"`

	// Title and ContentDate accumulate as stages contribute metadata.
	Title       string `json:"title,omitempty"`
	ContentDate string `json:"content_date,omitempty"`

	// LatestCompletedStage is the last stage that finished successfully,
	// nil before any.
	LatestCompletedStage *Stage `json:"latest_completed_stage"`

	// NextStage is the stage the item is ready for, nil when complete.
	NextStage *Stage `json:"next_stage"`

	// Status reflects the outcome of the most recent stage attempt.
	Status StageStatus `json:"status"`

	// FilePaths maps each completed stage to its artifact path.
	// Grows monotonically.
	FilePaths map[Stage]string `json:"file_paths"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ProcessingTimeSeconds accumulates successful attempt durations.
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`

	// RetryCount counts failed attempts since the last success on
	// NextStage; zeroed on success.
	RetryCount int `json:"retry_count"`

	// ErrorMessage holds the most recent failure reason; cleared on success.
	ErrorMessage string `json:"error_message,omitempty"`

	// FailedOutput holds captured output from the last failure, size-capped
	// by the journal.
	FailedOutput string `json:"failed_output,omitempty"`
}

// Metadata carries the item fields a processor may contribute alongside
// its artifact. Zero values mean "not provided".
type Metadata struct {
	Title       string      `json:"title,omitempty"`
	ContentDate string      `json:"content_date,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
}

// NewDiscoveredState builds the record for a freshly discovered item.
// Discovery is itself the first completed stage, so the record starts
// with its artifact path recorded and next stage set to scrape.
func NewDiscoveredState(art DiscoverArtifact, artifactPath string, now time.Time) *PipelineState {
	latest := StageDiscover
	next := StageScrape
	ct := art.ContentType
	if ct == "" {
		ct = ContentTypeUnknown
	}
	return &PipelineState{
		ID:                   art.ID,
		RunTimestamp:         now,
		Speaker:              art.Speaker,
		ContentType:          ct,
		SourceURL:            art.SourceURL,
		Title:                art.Title,
		ContentDate:          art.ContentDate,
		LatestCompletedStage: &latest,
		NextStage:            &next,
		Status:               StatusCompleted,
		FilePaths:            map[Stage]string{StageDiscover: artifactPath},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Clone returns a deep copy so callers can mutate freely without
// aliasing the journal's in-memory record.
func (s *PipelineState) Clone() *PipelineState {
	c := *s
	if s.LatestCompletedStage != nil {
		v := *s.LatestCompletedStage
		c.LatestCompletedStage = &v
	}
	if s.NextStage != nil {
		v := *s.NextStage
		c.NextStage = &v
	}
	if s.FilePaths != nil {
		c.FilePaths = make(map[Stage]string, len(s.FilePaths))
		for k, v := range s.FilePaths {
			c.FilePaths[k] = v
		}
	}
	return &c
}

// IsTerminal reports whether the item has completed the full sequence.
func (s *PipelineState) IsTerminal() bool {
	return s.NextStage == nil
}

// IsInvalidated reports whether the item is excluded from future runs.
func (s *PipelineState) IsInvalidated() bool {
	return s.Status == StatusInvalidated
}

// ReadyFor reports whether the item should be picked up by a run of the
// given stage.
func (s *PipelineState) ReadyFor(stage Stage) bool {
	return !s.IsInvalidated() && s.NextStage != nil && *s.NextStage == stage
}

// MergeMetadata folds processor-contributed metadata into the record.
// Provided values overwrite; absent values never clear existing ones.
// An "unknown" content type counts as absent.
func (s *PipelineState) MergeMetadata(meta Metadata) {
	if t := strings.TrimSpace(meta.Title); t != "" {
		s.Title = t
	}
	if d := strings.TrimSpace(meta.ContentDate); d != "" {
		s.ContentDate = d
	}
	if meta.ContentType != "" && meta.ContentType != ContentTypeUnknown {
		s.ContentType = meta.ContentType
	}
}

// Validate performs basic validation on the record, including the
// consistency of FilePaths with NextStage: every stage before NextStage
// recorded, none at or beyond it.
func (s *PipelineState) Validate() error {
	if s.ID == "" {
		return ErrIDRequired
	}
	if s.Speaker == "" {
		return ErrSpeakerRequired
	}
	if s.SourceURL == "" {
		return ErrSourceURLRequired
	}
	if s.ContentType != "" && !s.ContentType.Valid() {
		return ErrValidation{Field: "content_type", Message: "unknown value " + string(s.ContentType)}
	}
	if s.Status != "" && !s.Status.Valid() {
		return ErrValidation{Field: "status", Message: "unknown value " + string(s.Status)}
	}

	boundary := len(StageSequence)
	if s.NextStage != nil {
		if !s.NextStage.Valid() {
			return ErrValidation{Field: "next_stage", Message: "unknown stage " + s.NextStage.String()}
		}
		boundary = s.NextStage.Index()
	}
	for i, stage := range StageSequence {
		_, present := s.FilePaths[stage]
		if i < boundary && !present {
			return ErrStageOrder
		}
		if i >= boundary && present {
			return ErrStageOrder
		}
	}
	return nil
}
