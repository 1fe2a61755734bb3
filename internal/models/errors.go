package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrIDRequired indicates a required id field is empty.
	ErrIDRequired = errors.New("id is required")

	// ErrSpeakerRequired indicates a required speaker field is empty.
	ErrSpeakerRequired = errors.New("speaker is required")

	// ErrSourceURLRequired indicates a required source URL field is empty.
	ErrSourceURLRequired = errors.New("source_url is required")

	// ErrInvalidURL indicates a malformed URL.
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrStageOrder indicates file_paths is inconsistent with next_stage.
	ErrStageOrder = errors.New("file_paths inconsistent with next_stage")

	// ErrDisplayNameRequired indicates a required display name field is empty.
	ErrDisplayNameRequired = errors.New("display_name is required")

	// ErrSourceURLMissing indicates a speaker source without a URL.
	ErrSourceURLMissing = errors.New("speaker source url is required")
)
