package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGemini_DefaultsModel(t *testing.T) {
	g := NewGemini("key", "")
	assert.Equal(t, DefaultModel, g.Model())

	g = NewGemini("key", "gemini-2.5-pro")
	assert.Equal(t, "gemini-2.5-pro", g.Model())
}

func TestCompleterFunc(t *testing.T) {
	var seen Request
	c := CompleterFunc(func(_ context.Context, req Request) (*Response, error) {
		seen = req
		return &Response{Text: "ok"}, nil
	})

	resp, err := c.Complete(context.Background(), Request{User: "hello", JSONOutput: true})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "hello", seen.User)
	assert.True(t, seen.JSONOutput)
}

func TestExtractText(t *testing.T) {
	t.Run("concatenates parts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "first "},
					{Text: "second"},
				}},
			}},
		}
		assert.Equal(t, "first second", extractText(resp))
	})

	t.Run("nil and empty responses", func(t *testing.T) {
		assert.Empty(t, extractText(nil))
		assert.Empty(t, extractText(&genai.GenerateContentResponse{}))
		assert.Empty(t, extractText(&genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{}},
		}))
	})
}

func TestStripMarkdownJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"clean json", `{"entities": []}`, `{"entities": []}`},
		{"json fence", "```json\n{\"entities\": []}\n```", `{"entities": []}`},
		{"bare fence", "```\n{\"entities\": []}\n```", `{"entities": []}`},
		{"leading prose", "Here is the analysis:\n{\"entities\": []}", `{"entities": []}`},
		{"template braces in prose", "{{speaker}} said:\n{\"entities\": []}", `{"entities": []}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StripMarkdownJSON(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("pretty printed with trailing prose", func(t *testing.T) {
		got, err := StripMarkdownJSON("analysis:\n```json\n{\n  \"entities\": []\n}\n```\nnotes after")
		require.NoError(t, err)
		assert.Equal(t, byte('{'), got[0])
	})

	t.Run("no object", func(t *testing.T) {
		_, err := StripMarkdownJSON("the speaker made several points")
		assert.Error(t, err)
	})
}
