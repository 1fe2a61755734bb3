// Package testutil provides test utilities including sample data generation.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/discoursekg/discoursekg/internal/models"
)

// Standard fictional people and organizations for test data.
// NEVER use real public figures, companies, or institutions.
var (
	SpeakerNames = []string{
		"Alex Hartwell",
		"Morgan Vale",
		"Jordan Ashcroft",
		"Casey Lindqvist",
		"Riley Okafor",
		"Avery Stanton",
		"Quinn Navarro",
		"Rowan Castellane",
	}

	Organizations = []string{
		"Central Reserve Bank",
		"Meridian Technology Group",
		"Northbridge Capital",
		"Atlantic Policy Institute",
		"Helios Energy Partners",
		"Vantage Health Systems",
	}

	Roles = []string{
		"Governor",
		"Chief Executive",
		"Senator",
		"Finance Minister",
		"Board Chair",
		"Director of Research",
	}

	Regions = []string{"US", "EU", "UK", "APAC"}

	Industries = []models.Industry{
		models.IndustryPolitics,
		models.IndustryTechnology,
		models.IndustryFinance,
		models.IndustryHealthcare,
		models.IndustryEnergy,
		models.IndustryMedia,
		models.IndustryAcademia,
	}

	// TitleTemplates provides fictional communication titles.
	TitleTemplates = []string{
		"Remarks on Monetary Policy",
		"Address to the National Technology Forum",
		"Opening Statement at the Budget Hearing",
		"Interview on Energy Market Reform",
		"Keynote on Digital Infrastructure",
		"Testimony on Healthcare Funding",
		"Speech at the Trade Council Summit",
		"Panel Remarks on Regional Security",
	}

	// TranscriptSentences is the pool transcripts are assembled from.
	TranscriptSentences = []string{
		"Thank you all for joining us here today.",
		"Our economic outlook remains stable despite persistent global headwinds.",
		"Inflation has moderated over the past two quarters and we expect that trend to continue.",
		"We are committed to transparent and predictable policy decisions.",
		"Investment in digital infrastructure will define the next decade of growth.",
		"The committee reviewed a wide range of indicators before reaching its decision.",
		"Energy markets have shown remarkable resilience this year.",
		"We must balance innovation with sensible safeguards for consumers.",
		"Regional cooperation remains the cornerstone of our trade policy.",
		"Healthcare access continues to improve across rural districts.",
		"I want to be clear that no single measure can address every challenge.",
		"We will take questions at the end of the session.",
	}

	// SubjectNames are 2-3 word aspects usable in categorize artifacts.
	SubjectNames = []string{
		"interest rates",
		"supply chains",
		"data privacy",
		"labor markets",
		"grid capacity",
		"trade relations",
		"public funding",
		"market stability",
	}

	// SubjectQuotes are short verbatim-style supporting quotes.
	SubjectQuotes = []string{
		"we expect that trend to continue",
		"no single measure can address every challenge",
		"remarkable resilience this year",
		"sensible safeguards for consumers",
		"the cornerstone of our trade policy",
	}

	// EntitySeeds pairs fictional entity names with their types.
	EntitySeeds = []EntitySeed{
		{Name: "Central Reserve Bank", Type: models.EntityTypeOrganization},
		{Name: "Meridian Technology Group", Type: models.EntityTypeOrganization},
		{Name: "Jordan Ashcroft", Type: models.EntityTypePerson},
		{Name: "Northgate District", Type: models.EntityTypeLocation},
		{Name: "Aurora Broadband Program", Type: models.EntityTypeProgram},
		{Name: "Helios Storage Platform", Type: models.EntityTypeProduct},
		{Name: "Westbrook Trade Summit", Type: models.EntityTypeEvent},
	}

	topics = []models.Topic{
		models.TopicEconomics,
		models.TopicTechnology,
		models.TopicForeignAffairs,
		models.TopicHealthcare,
		models.TopicEnergy,
		models.TopicDefense,
		models.TopicSocial,
		models.TopicRegulation,
		models.TopicOther,
	}

	sentiments = []models.Sentiment{
		models.SentimentPositive,
		models.SentimentNegative,
		models.SentimentNeutral,
		models.SentimentUnclear,
	}
)

// EntitySeed pairs a fictional entity name with its type.
type EntitySeed struct {
	Name string
	Type models.EntityType
}

// SampleItem represents a generated communication for testing.
type SampleItem struct {
	ID          string
	Title       string
	ContentDate string
	SourceURL   string
	ContentType models.ContentType
	Speaker     string
}

// ToDiscoverArtifact converts a SampleItem to a models.DiscoverArtifact.
func (s *SampleItem) ToDiscoverArtifact() models.DiscoverArtifact {
	return models.DiscoverArtifact{
		ID:          s.ID,
		SourceURL:   s.SourceURL,
		ContentType: s.ContentType,
		Title:       s.Title,
		ContentDate: s.ContentDate,
		Speaker:     s.Speaker,
	}
}

// ToState builds the journal record for the item as freshly discovered.
func (s *SampleItem) ToState(artifactPath string, now time.Time) *models.PipelineState {
	return models.NewDiscoveredState(s.ToDiscoverArtifact(), artifactPath, now)
}

// SampleDataGenerator generates realistic but fictional discourse data
// for testing.
type SampleDataGenerator struct {
	rng *rand.Rand
}

// NewSampleDataGenerator creates a new sample data generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewSampleDataGeneratorWithSeed creates a new generator with a fixed seed for reproducibility.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// RandomSpeakerName returns a random fictional speaker name.
func (g *SampleDataGenerator) RandomSpeakerName() string {
	return SpeakerNames[g.rng.Intn(len(SpeakerNames))]
}

// RandomOrganization returns a random fictional organization.
func (g *SampleDataGenerator) RandomOrganization() string {
	return Organizations[g.rng.Intn(len(Organizations))]
}

// RandomRole returns a random role.
func (g *SampleDataGenerator) RandomRole() string {
	return Roles[g.rng.Intn(len(Roles))]
}

// RandomTitle returns a random communication title.
func (g *SampleDataGenerator) RandomTitle() string {
	return TitleTemplates[g.rng.Intn(len(TitleTemplates))]
}

// GenerateSpeaker builds a registry record for the given display name.
func (g *SampleDataGenerator) GenerateSpeaker(displayName string) *models.Speaker {
	score := 0.3 + g.rng.Float64()*0.65
	return &models.Speaker{
		DisplayName:    displayName,
		Role:           g.RandomRole(),
		Organization:   g.RandomOrganization(),
		Industry:       Industries[g.rng.Intn(len(Industries))],
		Region:         Regions[g.rng.Intn(len(Regions))],
		DateOfBirth:    fmt.Sprintf("19%02d-%02d-%02d", 50+g.rng.Intn(40), 1+g.rng.Intn(12), 1+g.rng.Intn(28)),
		Bio:            fmt.Sprintf("%s at %s.", Roles[g.rng.Intn(len(Roles))], g.RandomOrganization()),
		InfluenceScore: &score,
		Sources: []models.SpeakerSource{
			{Kind: models.SourceKindRSS, URL: fmt.Sprintf("https://feeds.example.org/%s.xml", slugify(displayName))},
		},
	}
}

// GenerateRegistry builds a speaker registry with count distinct
// speakers, keyed by canonical name.
func (g *SampleDataGenerator) GenerateRegistry(count int) map[string]*models.Speaker {
	registry := make(map[string]*models.Speaker, count)
	for i := 0; i < count; i++ {
		name := SpeakerNames[i%len(SpeakerNames)]
		if i >= len(SpeakerNames) {
			name = fmt.Sprintf("%s %d", name, i/len(SpeakerNames)+1)
		}
		registry[models.CanonicalName(name)] = g.GenerateSpeaker(name)
	}
	return registry
}

// GenerateOptions configures sample item generation.
type GenerateOptions struct {
	Speaker       string             // Registry key the items belong to
	ContentType   models.ContentType // Content type for every item
	StartDate     time.Time          // Content date of the first item; advances one day per item
	SourceURLBase string             // Base URL for source links
}

// DefaultGenerateOptions returns default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Speaker:       "alex hartwell",
		ContentType:   models.ContentTypeSpeech,
		StartDate:     time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour),
		SourceURLBase: "https://speeches.example.org",
	}
}

// GenerateSampleItems generates count items with unique ids and source
// URLs, one day apart.
func (g *SampleDataGenerator) GenerateSampleItems(count int, opts GenerateOptions) []SampleItem {
	items := make([]SampleItem, count)

	for i := 0; i < count; i++ {
		title := g.RandomTitle()
		date := opts.StartDate.AddDate(0, 0, i).Format("2006-01-02")
		id := fmt.Sprintf("%s-%s-%08x", date, slugify(title), g.rng.Uint32())

		items[i] = SampleItem{
			ID:          id,
			Title:       title,
			ContentDate: date,
			SourceURL:   fmt.Sprintf("%s/%s", opts.SourceURLBase, id),
			ContentType: opts.ContentType,
			Speaker:     opts.Speaker,
		}
	}

	return items
}

// GenerateTranscript assembles a transcript of at least wordCount words
// from the sentence pool.
func (g *SampleDataGenerator) GenerateTranscript(wordCount int) string {
	var b strings.Builder
	words := 0
	for words < wordCount {
		sentence := TranscriptSentences[g.rng.Intn(len(TranscriptSentences))]
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		words += len(strings.Fields(sentence))
	}
	return b.String()
}

// GenerateScrapeArtifact builds a scrape artifact for the item with a
// transcript of roughly wordCount words.
func (g *SampleDataGenerator) GenerateScrapeArtifact(item SampleItem, wordCount int) models.ScrapeArtifact {
	text := g.GenerateTranscript(wordCount)
	return models.ScrapeArtifact{
		FullText:    text,
		WordCount:   len(strings.Fields(text)),
		Title:       item.Title,
		ContentDate: item.ContentDate,
		ContentType: item.ContentType,
		SourceURL:   item.SourceURL,
	}
}

// GenerateSummarizeArtifact condenses the scrape artifact to at most
// targetWords words, mirroring the summarize stage's output shape.
func (g *SampleDataGenerator) GenerateSummarizeArtifact(scrape models.ScrapeArtifact, targetWords int) models.SummarizeArtifact {
	words := strings.Fields(scrape.FullText)
	art := models.SummarizeArtifact{
		Summary:           scrape.FullText,
		OriginalWordCount: len(words),
		SummaryWordCount:  len(words),
		TargetWordCount:   targetWords,
		Success:           true,
	}

	if len(words) > targetWords {
		art.Summary = strings.Join(words[:targetWords], " ")
		art.SummaryWordCount = targetWords
		art.WasSummarized = true
		ratio := float64(len(art.Summary)) / float64(len(scrape.FullText))
		art.CompressionRatio = &ratio
	}

	return art
}

// GenerateCategorizeArtifact builds a valid categorize artifact with
// entityCount distinct entities, each carrying one topical mention with
// one subject.
func (g *SampleDataGenerator) GenerateCategorizeArtifact(entityCount int) models.CategorizeArtifact {
	if entityCount > len(EntitySeeds) {
		entityCount = len(EntitySeeds)
	}

	art := models.CategorizeArtifact{Entities: make([]models.EntityMention, entityCount)}
	for i := 0; i < entityCount; i++ {
		seed := EntitySeeds[i]
		art.Entities[i] = models.EntityMention{
			EntityName: seed.Name,
			EntityType: seed.Type,
			Mentions: []models.TopicMention{{
				Topic:   topics[i%len(topics)],
				Context: fmt.Sprintf("The speaker discussed %s at length during the session.", seed.Name),
				Subjects: []models.Subject{{
					SubjectName: SubjectNames[g.rng.Intn(len(SubjectNames))],
					Sentiment:   sentiments[g.rng.Intn(len(sentiments))],
					Quotes:      []string{SubjectQuotes[g.rng.Intn(len(SubjectQuotes))]},
				}},
			}},
		}
	}
	return art
}

// slugify lowercases text and joins alphanumeric runs with dashes.
func slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), "-")
}
