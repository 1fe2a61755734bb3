package models

import "fmt"

// ContentType classifies the kind of communication an item captures.
type ContentType string

const (
	// ContentTypeSpeech is a prepared address delivered to an audience.
	ContentTypeSpeech ContentType = "speech"
	// ContentTypeInterview is a question-and-answer exchange.
	ContentTypeInterview ContentType = "interview"
	// ContentTypeDebate is a moderated multi-party exchange.
	ContentTypeDebate ContentType = "debate"
	// ContentTypeOther covers communications outside the named kinds.
	ContentTypeOther ContentType = "other"
	// ContentTypeUnknown is the placeholder before discovery assigns a kind.
	ContentTypeUnknown ContentType = "unknown"
)

// Valid reports whether the content type is one of the known values.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeSpeech, ContentTypeInterview, ContentTypeDebate, ContentTypeOther, ContentTypeUnknown:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (c ContentType) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (c *ContentType) UnmarshalText(text []byte) error {
	v := ContentType(text)
	if !v.Valid() {
		return fmt.Errorf("unknown content_type: %q", string(text))
	}
	*c = v
	return nil
}

// EntityType classifies what kind of thing an extracted entity is.
type EntityType string

const (
	EntityTypeOrganization EntityType = "organization"
	EntityTypeLocation     EntityType = "location"
	EntityTypePerson       EntityType = "person"
	EntityTypeProgram      EntityType = "program"
	EntityTypeProduct      EntityType = "product"
	EntityTypeEvent        EntityType = "event"
	EntityTypeOther        EntityType = "other"
)

// Valid reports whether the entity type is one of the known values.
func (e EntityType) Valid() bool {
	switch e {
	case EntityTypeOrganization, EntityTypeLocation, EntityTypePerson,
		EntityTypeProgram, EntityTypeProduct, EntityTypeEvent, EntityTypeOther:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (e EntityType) MarshalText() ([]byte, error) {
	return []byte(e), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (e *EntityType) UnmarshalText(text []byte) error {
	v := EntityType(text)
	if !v.Valid() {
		return fmt.Errorf("unknown entity_type: %q", string(text))
	}
	*e = v
	return nil
}

// Topic is the closed set of policy areas a mention is filed under.
type Topic string

const (
	TopicEconomics      Topic = "economics"
	TopicTechnology     Topic = "technology"
	TopicForeignAffairs Topic = "foreign_affairs"
	TopicHealthcare     Topic = "healthcare"
	TopicEnergy         Topic = "energy"
	TopicDefense        Topic = "defense"
	TopicSocial         Topic = "social"
	TopicRegulation     Topic = "regulation"
	TopicOther          Topic = "other"
)

// Valid reports whether the topic is one of the known values.
func (t Topic) Valid() bool {
	switch t {
	case TopicEconomics, TopicTechnology, TopicForeignAffairs, TopicHealthcare,
		TopicEnergy, TopicDefense, TopicSocial, TopicRegulation, TopicOther:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (t Topic) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (t *Topic) UnmarshalText(text []byte) error {
	v := Topic(text)
	if !v.Valid() {
		return fmt.Errorf("unknown topic: %q", string(text))
	}
	*t = v
	return nil
}

// Sentiment is the stance a subject expresses toward its entity.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentUnclear  Sentiment = "unclear"
)

// Valid reports whether the sentiment is one of the known values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral, SentimentUnclear:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s Sentiment) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (s *Sentiment) UnmarshalText(text []byte) error {
	v := Sentiment(text)
	if !v.Valid() {
		return fmt.Errorf("unknown sentiment: %q", string(text))
	}
	*s = v
	return nil
}

// StageStatus records the outcome of an item's most recent stage attempt.
type StageStatus string

const (
	// StatusPending indicates the item is waiting for its next stage.
	StatusPending StageStatus = "PENDING"
	// StatusInProgress indicates a worker currently owns the item.
	StatusInProgress StageStatus = "IN_PROGRESS"
	// StatusCompleted indicates the most recent attempt succeeded.
	StatusCompleted StageStatus = "COMPLETED"
	// StatusFailed indicates the most recent attempt failed.
	StatusFailed StageStatus = "FAILED"
	// StatusInvalidated excludes the item from all future runs.
	StatusInvalidated StageStatus = "INVALIDATED"
)

// Valid reports whether the status is one of the known values.
func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusInvalidated:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s StageStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (s *StageStatus) UnmarshalText(text []byte) error {
	v := StageStatus(text)
	if !v.Valid() {
		return fmt.Errorf("unknown stage status: %q", string(text))
	}
	*s = v
	return nil
}

// Industry classifies a speaker's primary domain.
type Industry string

const (
	IndustryPolitics   Industry = "politics"
	IndustryTechnology Industry = "technology"
	IndustryFinance    Industry = "finance"
	IndustryHealthcare Industry = "healthcare"
	IndustryEnergy     Industry = "energy"
	IndustryMedia      Industry = "media"
	IndustryAcademia   Industry = "academia"
)

// Valid reports whether the industry is one of the known values.
func (i Industry) Valid() bool {
	switch i {
	case IndustryPolitics, IndustryTechnology, IndustryFinance,
		IndustryHealthcare, IndustryEnergy, IndustryMedia, IndustryAcademia:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (i Industry) MarshalText() ([]byte, error) {
	return []byte(i), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown values.
func (i *Industry) UnmarshalText(text []byte) error {
	v := Industry(text)
	if !v.Valid() {
		return fmt.Errorf("unknown industry: %q", string(text))
	}
	*i = v
	return nil
}
