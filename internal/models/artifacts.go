package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Bounds for categorize artifact validation.
const (
	MinContextLength = 10
	MaxContextLength = 500
	MinSubjectWords  = 2
	MaxSubjectWords  = 3
	MinQuotes        = 1
	MaxQuotes        = 6
)

// DiscoverArtifact is the initial artifact written for a discovered item.
type DiscoverArtifact struct {
	ID          string      `json:"id"`
	SourceURL   string      `json:"source_url"`
	ContentType ContentType `json:"content_type"`
	Title       string      `json:"title"`
	ContentDate string      `json:"content_date,omitempty"`
	Speaker     string      `json:"speaker"`
}

// ScrapeArtifact is the transcript extracted from the source URL.
type ScrapeArtifact struct {
	FullText    string      `json:"full_text"`
	WordCount   int         `json:"word_count"`
	Title       string      `json:"title,omitempty"`
	ContentDate string      `json:"content_date,omitempty"`
	ContentType ContentType `json:"content_type,omitempty"`
	SourceURL   string      `json:"source_url"`
}

// SummarizeArtifact is the condensed transcript. When WasSummarized is
// false the summary equals the original text and CompressionRatio is
// absent.
type SummarizeArtifact struct {
	Summary               string   `json:"summary"`
	WasSummarized         bool     `json:"was_summarized"`
	CompressionRatio      *float64 `json:"compression_ratio,omitempty"`
	OriginalWordCount     int      `json:"original_word_count"`
	SummaryWordCount      int      `json:"summary_word_count"`
	TargetWordCount       int      `json:"target_word_count"`
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	Success               bool     `json:"success"`
	ErrorMessage          string   `json:"error_message,omitempty"`
}

// Subject is a 2-3 word aspect of an entity within one topical mention,
// carrying a sentiment and verbatim supporting quotes.
type Subject struct {
	SubjectName string    `json:"subject_name"`
	Sentiment   Sentiment `json:"sentiment"`
	Quotes      []string  `json:"quotes"`
}

// TopicMention files an entity mention under one topic with its
// surrounding context and subject-level sentiment.
type TopicMention struct {
	Topic    Topic     `json:"topic"`
	Context  string    `json:"context"`
	Subjects []Subject `json:"subjects"`
}

// EntityMention groups all topical mentions of one entity within a
// communication.
type EntityMention struct {
	EntityName string         `json:"entity_name"`
	EntityType EntityType     `json:"entity_type"`
	Mentions   []TopicMention `json:"mentions"`
}

// CategorizeArtifact is the entity/topic/sentiment extraction for one
// communication. Zero entities is valid.
type CategorizeArtifact struct {
	Entities []EntityMention `json:"entities"`
}

// Sanitize trims every string field in place.
func (a *CategorizeArtifact) Sanitize() {
	for i := range a.Entities {
		e := &a.Entities[i]
		e.EntityName = strings.TrimSpace(e.EntityName)
		for j := range e.Mentions {
			m := &e.Mentions[j]
			m.Context = strings.TrimSpace(m.Context)
			for k := range m.Subjects {
				s := &m.Subjects[k]
				s.SubjectName = strings.TrimSpace(s.SubjectName)
				for q := range s.Quotes {
					s.Quotes[q] = strings.TrimSpace(s.Quotes[q])
				}
			}
		}
	}
}

// Validate checks the artifact against its structural rules: entity
// names unique (case-folded), topics unique per entity, context length
// within bounds, subject names 2-3 words, quote lists 1-6 long, enums
// drawn from their closed sets.
func (a *CategorizeArtifact) Validate() error {
	seenEntities := make(map[string]struct{}, len(a.Entities))
	for _, e := range a.Entities {
		if e.EntityName == "" {
			return ErrValidation{Field: "entity_name", Message: "must not be empty"}
		}
		if !e.EntityType.Valid() {
			return ErrValidation{Field: "entity_type", Message: "unknown value " + string(e.EntityType)}
		}
		key := CanonicalName(e.EntityName)
		if _, dup := seenEntities[key]; dup {
			return ErrValidation{Field: "entity_name", Message: "duplicate entity " + e.EntityName}
		}
		seenEntities[key] = struct{}{}

		seenTopics := make(map[Topic]struct{}, len(e.Mentions))
		for _, m := range e.Mentions {
			if !m.Topic.Valid() {
				return ErrValidation{Field: "topic", Message: "unknown value " + string(m.Topic)}
			}
			if _, dup := seenTopics[m.Topic]; dup {
				return ErrValidation{
					Field:   "topic",
					Message: fmt.Sprintf("duplicate topic %s for entity %s", m.Topic, e.EntityName),
				}
			}
			seenTopics[m.Topic] = struct{}{}

			if n := utf8.RuneCountInString(m.Context); n < MinContextLength || n > MaxContextLength {
				return ErrValidation{
					Field:   "context",
					Message: fmt.Sprintf("length %d outside %d-%d", n, MinContextLength, MaxContextLength),
				}
			}

			for _, s := range m.Subjects {
				if words := len(strings.Fields(s.SubjectName)); words < MinSubjectWords || words > MaxSubjectWords {
					return ErrValidation{
						Field:   "subject_name",
						Message: fmt.Sprintf("%q must be %d-%d words", s.SubjectName, MinSubjectWords, MaxSubjectWords),
					}
				}
				if !s.Sentiment.Valid() {
					return ErrValidation{Field: "sentiment", Message: "unknown value " + string(s.Sentiment)}
				}
				if n := len(s.Quotes); n < MinQuotes || n > MaxQuotes {
					return ErrValidation{
						Field:   "quotes",
						Message: fmt.Sprintf("%d quotes outside %d-%d", n, MinQuotes, MaxQuotes),
					}
				}
			}
		}
	}
	return nil
}

// GraphReport is the graph stage's artifact: a summary of the upserts
// performed for one item.
type GraphReport struct {
	NodesCreated int      `json:"nodes_created"`
	NodesMerged  int      `json:"nodes_merged"`
	EdgesCreated int      `json:"edges_created"`
	MentionCount int      `json:"mention_count"`
	SubjectCount int      `json:"subject_count"`
	Warnings     []string `json:"warnings"`
}
