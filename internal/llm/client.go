// Package llm defines the language-model collaborator boundary: a single
// "answer this prompt" capability returning text plus token metrics, or a
// classified failure.
package llm

import "context"

// Request is one prompt to the model.
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float32
}

// Answer is a successful model response. Latency is measured by the caller
// around the call boundary, not here.
type Answer struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	Model        string
}

// Client is the external LLM collaborator. Implementations must be safe for
// concurrent use; the core assumes no shared mutable session state.
type Client interface {
	Answer(ctx context.Context, req Request) (*Answer, error)
}

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultModel is used when a request does not name one.
const DefaultModel = "gemini-2.5-flash"

// AvailableModels is the fixed catalog of selectable Gemini models.
func AvailableModels() []ModelInfo {
	return []ModelInfo{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Fast and efficient"},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Most capable"},
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Description: "Previous gen fast"},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Description: "Stable fast model"},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Description: "Stable pro model"},
	}
}

// KnownModel reports whether id is in the catalog.
func KnownModel(id string) bool {
	for _, m := range AvailableModels() {
		if m.ID == id {
			return true
		}
	}
	return false
}
