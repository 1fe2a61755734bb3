package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/discoursekg/discoursekg/internal/artifact"
	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/speakers"
)

// Kind classifies a failure for operator triage.
type Kind string

const (
	// KindProcessorError is any unclassified processor failure.
	KindProcessorError Kind = "PROCESSOR_ERROR"
	// KindTimeout is a stage attempt exceeding its per-item timeout.
	KindTimeout Kind = "TIMEOUT"
	// KindValidationError is an artifact failing schema or invariants.
	KindValidationError Kind = "VALIDATION_ERROR"
	// KindArtifactMissing is a required prior artifact that does not exist.
	KindArtifactMissing Kind = "ARTIFACT_MISSING"
	// KindArtifactCorrupt is a prior artifact that cannot be decoded.
	KindArtifactCorrupt Kind = "ARTIFACT_CORRUPT"
	// KindJournalError is a journal read or write failure. It aborts the
	// whole invocation rather than failing a single item.
	KindJournalError Kind = "JOURNAL_ERROR"
	// KindDuplicateSourceURL is a discover result whose source URL is
	// already held by a live record.
	KindDuplicateSourceURL Kind = "DUPLICATE_SOURCE_URL"
	// KindSpeakerUnknown is an item whose speaker has no registry entry.
	KindSpeakerUnknown Kind = "SPEAKER_UNKNOWN"
)

// Classify maps an error to its failure kind.
func Classify(err error) Kind {
	var validation models.ErrValidation
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, artifact.ErrMissing):
		return KindArtifactMissing
	case errors.Is(err, artifact.ErrCorrupt):
		return KindArtifactCorrupt
	case errors.Is(err, journal.ErrDuplicateSourceURL):
		return KindDuplicateSourceURL
	case errors.Is(err, speakers.ErrUnknown):
		return KindSpeakerUnknown
	case errors.As(err, &validation):
		return KindValidationError
	default:
		return KindProcessorError
	}
}

// ItemError wraps one item's failure with its stage and kind.
type ItemError struct {
	ID    string
	Stage models.Stage
	Kind  Kind
	Err   error
}

// Error implements the error interface.
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: item %s at %s: %v", e.Kind, e.ID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemError) Unwrap() error {
	return e.Err
}

// OutputError carries captured processor output alongside a failure so
// post-mortems can inspect what the processor produced. The output ends
// up in the journal record's failed_output, size-capped.
type OutputError struct {
	Err    error
	Output string
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *OutputError) Unwrap() error {
	return e.Err
}

// WithOutput wraps err with captured output.
func WithOutput(err error, output string) error {
	if err == nil {
		return nil
	}
	return &OutputError{Err: err, Output: output}
}
