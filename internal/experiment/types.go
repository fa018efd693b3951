// Package experiment drives LLM calls against the dataset representations
// and collects comparable outcome metrics.
package experiment

import (
	"github.com/mosaictheory-jt/unstructured-analytics/internal/llm"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
)

// RunStatus is the lifecycle of one experiment run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// RunResult is the outcome of one LLM call. A failed run carries its
// classified cause and never a fabricated answer.
type RunResult struct {
	ID       string           `json:"id"`
	Question string           `json:"question"`
	Format   represent.Format `json:"format"`
	Status   RunStatus        `json:"status"`
	Model    string           `json:"model"`

	Answer       string  `json:"answer,omitempty"`
	LatencyMS    float64 `json:"latency_ms"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`

	Error     string        `json:"error,omitempty"`
	ErrorKind llm.ErrorKind `json:"error_kind,omitempty"`
}

// Succeeded reports whether the run produced an answer.
func (r *RunResult) Succeeded() bool { return r.Status == StatusSucceeded }

// ComparisonResult maps every requested representation kind to its
// RunResult for a single question. Entries are present for all formats
// regardless of individual success.
type ComparisonResult struct {
	Question string                          `json:"question"`
	Expected string                          `json:"expected,omitempty"`
	Results  map[represent.Format]*RunResult `json:"results"`
}
