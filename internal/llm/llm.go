// Package llm provides the language model client used by the categorize
// stage. The Completer interface keeps processors testable without
// network access; Gemini is the production implementation.
package llm

import "context"

// Request is one completion request.
type Request struct {
	// System is the system instruction, optional.
	System string
	// User is the user turn content.
	User string
	// Temperature overrides the model default when set.
	Temperature *float32
	// MaxOutputTokens bounds the completion length. Zero means the model
	// default.
	MaxOutputTokens int32
	// JSONOutput asks the model for a raw JSON response body.
	JSONOutput bool
}

// Response is one completion.
type Response struct {
	Text         string
	Model        string
	PromptTokens int32
	OutputTokens int32
}

// Completer produces one completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
