package categorize

import (
	"fmt"
	"strings"

	"github.com/discoursekg/discoursekg/internal/models"
)

// enumGuidance pairs an enum value with the hint the model sees for it.
type enumGuidance struct {
	value string
	desc  string
}

var entityTypeGuidance = []enumGuidance{
	{string(models.EntityTypeOrganization), "companies, institutions, government bodies"},
	{string(models.EntityTypeLocation), "countries, regions, cities"},
	{string(models.EntityTypePerson), "individuals, public figures"},
	{string(models.EntityTypeProgram), "initiatives, policies, projects, mechanisms"},
	{string(models.EntityTypeProduct), "products, services, tools, platforms"},
	{string(models.EntityTypeEvent), "conferences, summits, incidents, launches"},
	{string(models.EntityTypeOther), "anything else"},
}

var sentimentGuidance = []enumGuidance{
	{string(models.SentimentPositive), "excellent, great, support"},
	{string(models.SentimentNegative), "terrible, bad, oppose"},
	{string(models.SentimentNeutral), "factual mention without emotion"},
	{string(models.SentimentUnclear), "can't determine from text"},
}

var topicGuidance = []enumGuidance{
	{string(models.TopicEconomics), "taxes, trade, monetary policy, financial markets"},
	{string(models.TopicTechnology), "AI, data privacy, tech competition, innovation"},
	{string(models.TopicForeignAffairs), "diplomacy, international agreements, global conflicts"},
	{string(models.TopicHealthcare), "health insurance, medical costs, public health"},
	{string(models.TopicEnergy), "renewable energy, fossil fuels, climate change"},
	{string(models.TopicDefense), "military spending, national security, defense"},
	{string(models.TopicSocial), "education, welfare, social programs, inequality"},
	{string(models.TopicRegulation), "oversight, regulations, compliance, standards"},
	{string(models.TopicOther), "anything else"},
}

func guidanceBlock(items []enumGuidance) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "  " + item.value + ": " + item.desc
	}
	return strings.Join(lines, "\n")
}

const systemTemplate = `You are an expert content analyst specializing in communications analysis across all domains.

ENTITY TYPE OPTIONS:
%s

SENTIMENT OPTIONS:
%s

TOPIC CATEGORIES:
%s

Return a JSON object with an "entities" array. Each entity has:
- entity_name: canonical name for the entity
- entity_type: one of the entity types above
- mentions: array of mention objects, ONE per unique topic

Each mention object has:
- topic: topic category where the entity was discussed, unique within the entity
- context: summary of how the entity was discussed in this topic (%d-%d characters)
- subjects: array of subject objects, one per specific matter discussed

Each subject object has:
- subject_name: %d-%d word name for the specific subject
- sentiment: the speaker's feeling toward this subject, one of the sentiment options above
- quotes: %d-%d verbatim quotes about this subject`

// systemPrompt renders the system instruction. Bounds come from the
// artifact validation rules so the model is told exactly what will be
// accepted.
func systemPrompt() string {
	return fmt.Sprintf(systemTemplate,
		guidanceBlock(entityTypeGuidance),
		guidanceBlock(sentimentGuidance),
		guidanceBlock(topicGuidance),
		models.MinContextLength, models.MaxContextLength,
		models.MinSubjectWords, models.MaxSubjectWords,
		models.MinQuotes, models.MaxQuotes,
	)
}

const userTemplate = `Analyze the following communication and extract structured entity mentions:

TITLE: %s
CONTENT DATE: %s
CONTENT: %s

INSTRUCTIONS:
1. Identify all significant entities mentioned (organizations, locations, people, programs, products, events)
2. For each unique entity, determine its type
3. Use canonical names for entities (e.g., "Apple Inc." -> "Apple", "President Biden" -> "Joe Biden")
4. For each entity, create ONE mention per unique topic category where it was discussed
5. Within each mention, split the discussion into specific subjects, each with its own sentiment
6. Only classify sentiment when clearly expressed by the speaker; otherwise use "unclear"

QUOTE RULES:
- Quotes must be verbatim excerpts from the content, copied exactly as written
- Do not paraphrase, summarize, or modify the original language
- Choose quotes that best show the speaker's sentiment toward each subject
- Include the 1-2 most relevant quotes per subject

CRITICAL: Each entity must have EXACTLY ONE mention per unique topic. Do not repeat topics for the same entity.`

// userPrompt renders the user turn. Empty title or date read as
// "unknown" so the template never shows blank fields.
func userPrompt(title, contentDate, content string) string {
	return fmt.Sprintf(userTemplate, orUnknown(title), orUnknown(contentDate), content)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

// truncateRunes caps s at n runes. Non-positive n leaves s unchanged.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
