package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"
)

// ErrEmptyCompletion is returned when the model produces no text.
var ErrEmptyCompletion = errors.New("empty completion")

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Gemini is a Completer backed by the Gemini API. The underlying client
// is created lazily on first use so construction never needs a context
// or network access.
type Gemini struct {
	apiKey string
	model  string
	logger *slog.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGemini creates a Gemini completer. An empty model selects
// DefaultModel.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		apiKey: apiKey,
		model:  model,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger and returns the completer.
func (g *Gemini) WithLogger(logger *slog.Logger) *Gemini {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

func (g *Gemini) ensureClient(ctx context.Context) error {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.initErr
}

// Complete implements Completer.
func (g *Gemini) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := g.ensureClient(ctx); err != nil {
		return nil, fmt.Errorf("gemini: client init failed: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.User, genai.RoleUser),
	}

	g.logger.Debug("calling model", slog.String("model", g.model))
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	out := &Response{Text: text, Model: g.model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = resp.UsageMetadata.PromptTokenCount
		out.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	g.logger.Debug("completion received",
		slog.String("model", g.model),
		slog.Int("prompt_tokens", int(out.PromptTokens)),
		slog.Int("output_tokens", int(out.OutputTokens)),
	)
	return out, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var text string
	for _, part := range content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text
}
