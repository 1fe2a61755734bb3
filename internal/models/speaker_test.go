package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeaker_Validate(t *testing.T) {
	speaker := Speaker{
		DisplayName:  " Jane Doe ",
		Role:         "Senator",
		Organization: "US Senate",
		Industry:     IndustryPolitics,
		Region:       "US",
		Sources: []SpeakerSource{
			{Kind: SourceKindRSS, URL: "https://example.org/feed.xml"},
			{Kind: SourceKindIndex, URL: "https://example.org/speeches", ContentType: ContentTypeSpeech},
		},
	}

	require.NoError(t, speaker.Validate())
	assert.Equal(t, "Jane Doe", speaker.DisplayName, "validation trims fields")
}

func TestSpeaker_Validate_Errors(t *testing.T) {
	speaker := Speaker{}
	assert.ErrorIs(t, speaker.Validate(), ErrDisplayNameRequired)

	speaker = Speaker{DisplayName: "Jane Doe", Sources: []SpeakerSource{{Kind: SourceKindRSS}}}
	assert.ErrorIs(t, speaker.Validate(), ErrSourceURLMissing)

	speaker = Speaker{DisplayName: "Jane Doe", Sources: []SpeakerSource{{Kind: "ftp", URL: "https://x.org"}}}
	assert.Error(t, speaker.Validate())
}

func TestSpeaker_DecodeStrictIndustry(t *testing.T) {
	raw := `{"display_name":"Jane Doe","industry":"astrology"}`
	var speaker Speaker
	assert.ErrorContains(t, json.Unmarshal([]byte(raw), &speaker), "unknown industry")
}
