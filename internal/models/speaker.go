package models

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceKind is the type of a discovery source.
type SourceKind string

const (
	// SourceKindRSS is an RSS or Atom feed of communications.
	SourceKindRSS SourceKind = "rss"
	// SourceKindIndex is an HTML index page linking to communications.
	SourceKindIndex SourceKind = "index"
)

// Valid reports whether the source kind is one of the known values.
func (k SourceKind) Valid() bool {
	return k == SourceKindRSS || k == SourceKindIndex
}

// MarshalText implements encoding.TextMarshaler.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (k *SourceKind) UnmarshalText(text []byte) error {
	v := SourceKind(text)
	if !v.Valid() {
		return fmt.Errorf("unknown source kind: %q", string(text))
	}
	*k = v
	return nil
}

// SpeakerSource is one place discovery looks for new communications from
// a speaker.
type SpeakerSource struct {
	Kind SourceKind `json:"type"`
	URL  string     `json:"url"`
	// ContentType, when set, is assigned to every item found via this
	// source instead of being inferred.
	ContentType ContentType `json:"content_type,omitempty"`
}

// Speaker is a registry record describing a tracked public figure.
// Registry keys are the speaker's name run through CanonicalName.
type Speaker struct {
	DisplayName    string          `json:"display_name"`
	Role           string          `json:"role,omitempty"`
	Organization   string          `json:"organization,omitempty"`
	Industry       Industry        `json:"industry"`
	Region         string          `json:"region,omitempty"`
	DateOfBirth    string          `json:"date_of_birth,omitempty"`
	Bio            string          `json:"bio,omitempty"`
	InfluenceScore *float64        `json:"influence_score,omitempty"`
	Sources        []SpeakerSource `json:"sources,omitempty"`
}

// Sanitize trims whitespace from user-provided fields.
func (s *Speaker) Sanitize() {
	s.DisplayName = strings.TrimSpace(s.DisplayName)
	s.Role = strings.TrimSpace(s.Role)
	s.Organization = strings.TrimSpace(s.Organization)
	s.Region = strings.TrimSpace(s.Region)
	for i := range s.Sources {
		s.Sources[i].URL = strings.TrimSpace(s.Sources[i].URL)
	}
}

// Validate performs basic validation on the speaker record.
func (s *Speaker) Validate() error {
	s.Sanitize()

	if s.DisplayName == "" {
		return ErrDisplayNameRequired
	}
	if s.Industry != "" && !s.Industry.Valid() {
		return ErrValidation{Field: "industry", Message: "unknown value " + string(s.Industry)}
	}
	for _, src := range s.Sources {
		if src.URL == "" {
			return ErrSourceURLMissing
		}
		if _, err := url.Parse(src.URL); err != nil {
			return ErrInvalidURL
		}
		if !src.Kind.Valid() {
			return ErrValidation{Field: "sources.type", Message: "unknown value " + string(src.Kind)}
		}
	}
	return nil
}
