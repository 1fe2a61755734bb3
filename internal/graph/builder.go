package graph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/speakers"
)

// Builder assembles upsert payloads from an item's accumulated
// artifacts. It is a pure transformation; the store does the writing.
type Builder struct {
	registry *speakers.Registry
	logger   *slog.Logger
}

// NewBuilder creates a builder resolving speakers through registry.
func NewBuilder(registry *speakers.Registry) *Builder {
	return &Builder{
		registry: registry,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger.With("component", "graph")
	return b
}

// Build produces the node set for one communication. The speaker must
// resolve in the registry and mention keys must be unique within the
// item; either failure is fatal for the item.
func (b *Builder) Build(state *models.PipelineState, scrape models.ScrapeArtifact, sum models.SummarizeArtifact, cat models.CategorizeArtifact) (*Payload, error) {
	entry, err := b.registry.Get(state.Speaker)
	if err != nil {
		return nil, fmt.Errorf("resolving speaker %q: %w", state.Speaker, err)
	}

	payload := &Payload{
		Speaker:       speakerNode(entry),
		Communication: communicationNode(state, scrape, sum),
	}

	seen := make(map[string]struct{})
	for _, e := range cat.Entities {
		canonical := models.CanonicalName(e.EntityName)
		if canonical == "" {
			return nil, models.ErrValidation{Field: "entity_name", Message: "must not be empty"}
		}
		payload.Entities = append(payload.Entities, EntityNode{
			CanonicalName: canonical,
			Name:          strings.TrimSpace(e.EntityName),
			EntityType:    e.EntityType,
		})

		for _, m := range e.Mentions {
			key := canonical + "\x00" + string(m.Topic)
			if _, dup := seen[key]; dup {
				return nil, models.ErrValidation{
					Field:   "mention",
					Message: fmt.Sprintf("MENTION_DUPLICATE: (%s, %s, %s)", state.ID, canonical, m.Topic),
				}
			}
			seen[key] = struct{}{}

			agg, err := encodeAggregatedSentiment(m.Subjects)
			if err != nil {
				return nil, fmt.Errorf("aggregating sentiment for %s/%s: %w", canonical, m.Topic, err)
			}

			node := MentionNode{
				CommunicationID:     state.ID,
				EntityName:          canonical,
				Topic:               m.Topic,
				Context:             strings.TrimSpace(m.Context),
				AggregatedSentiment: agg,
			}
			for _, s := range m.Subjects {
				node.Subjects = append(node.Subjects, subjectNode(s))
			}
			payload.Mentions = append(payload.Mentions, node)
		}
	}

	b.logger.Debug("payload assembled",
		slog.String("item", state.ID),
		slog.Int("entities", len(payload.Entities)),
		slog.Int("mentions", payload.MentionCount()),
		slog.Int("subjects", payload.SubjectCount()),
	)
	return payload, nil
}

func speakerNode(entry *speakers.Entry) SpeakerNode {
	sp := entry.Speaker
	node := SpeakerNode{
		NameID:       entry.Key,
		DisplayName:  sp.DisplayName,
		Role:         sp.Role,
		Organization: sp.Organization,
		Industry:     string(sp.Industry),
		Region:       sp.Region,
		DateOfBirth:  sp.DateOfBirth,
		Bio:          sp.Bio,
	}
	if sp.InfluenceScore != nil {
		score := *sp.InfluenceScore
		node.InfluenceScore = &score
	}
	return node
}

func communicationNode(state *models.PipelineState, scrape models.ScrapeArtifact, sum models.SummarizeArtifact) CommunicationNode {
	title := state.Title
	if title == "" {
		title = scrape.Title
	}
	date := state.ContentDate
	if date == "" {
		date = scrape.ContentDate
	}
	contentType := state.ContentType
	if contentType == "" {
		contentType = models.ContentTypeUnknown
	}

	node := CommunicationNode{
		ID:            state.ID,
		Title:         title,
		ContentType:   string(contentType),
		ContentDate:   date,
		SourceURL:     state.SourceURL,
		FullText:      scrape.FullText,
		WordCount:     len(strings.Fields(scrape.FullText)),
		WasSummarized: sum.WasSummarized,
	}
	if sum.CompressionRatio != nil {
		ratio := *sum.CompressionRatio
		node.CompressionRatio = &ratio
	}
	return node
}

func subjectNode(s models.Subject) SubjectNode {
	name := strings.TrimSpace(s.SubjectName)
	quotes := make([]string, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		quotes = append(quotes, strings.TrimSpace(q))
	}
	if len(quotes) > models.MaxQuotes {
		quotes = quotes[:models.MaxQuotes]
	}
	return SubjectNode{
		Key:         models.CanonicalName(name),
		SubjectName: name,
		Sentiment:   s.Sentiment,
		Quotes:      quotes,
	}
}

// SentimentShare is one sentiment's slice of a mention's subjects.
type SentimentShare struct {
	Count int     `json:"count"`
	Prop  float64 `json:"prop"`
}

// aggregateSentiment tallies subject sentiments into per-value counts
// and proportions. Zero subjects yield an empty map.
func aggregateSentiment(subjects []models.Subject) map[models.Sentiment]SentimentShare {
	shares := make(map[models.Sentiment]SentimentShare, len(subjects))
	if len(subjects) == 0 {
		return shares
	}
	counts := make(map[models.Sentiment]int, 4)
	for _, s := range subjects {
		counts[s.Sentiment]++
	}
	total := float64(len(subjects))
	for sentiment, n := range counts {
		shares[sentiment] = SentimentShare{
			Count: n,
			Prop:  math.Round(float64(n)/total*1000) / 1000,
		}
	}
	return shares
}

// encodeAggregatedSentiment renders the tally as a JSON object for
// storage as a node property. Keys sort lexically, so the encoding is
// deterministic.
func encodeAggregatedSentiment(subjects []models.Subject) (string, error) {
	data, err := json.Marshal(aggregateSentiment(subjects))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
