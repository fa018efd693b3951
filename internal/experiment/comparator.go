package experiment

import (
	"errors"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
)

// Summary holds fields derived from a ComparisonResult. It is computed
// without mutating the underlying RunResults.
type Summary struct {
	// FastestFormat is the succeeded format with the lowest latency.
	FastestFormat represent.Format `json:"fastest_format,omitempty"`
	// ShortestAnswerFormat is the succeeded format with the shortest answer.
	ShortestAnswerFormat represent.Format `json:"shortest_answer_format,omitempty"`
	// TokenEfficiency is output tokens per input token, per succeeded format.
	TokenEfficiency map[represent.Format]float64 `json:"token_efficiency"`
	Succeeded       int                          `json:"succeeded"`
	Failed          int                          `json:"failed"`
}

// ErrEmptyComparison is returned when there is nothing to summarize.
var ErrEmptyComparison = errors.New("comparison result has no entries")

// Summarize aggregates a ComparisonResult into presentation-agnostic
// derived fields. Pure: no failure modes beyond missing input.
func Summarize(cr *ComparisonResult) (*Summary, error) {
	if cr == nil || len(cr.Results) == 0 {
		return nil, ErrEmptyComparison
	}

	s := &Summary{TokenEfficiency: make(map[represent.Format]float64)}

	// Iterate in the fixed format order so ties resolve deterministically.
	var bestLatency float64
	var shortest int
	for _, f := range represent.Formats() {
		r, ok := cr.Results[f]
		if !ok {
			continue
		}
		if !r.Succeeded() {
			s.Failed++
			continue
		}
		s.Succeeded++

		if s.FastestFormat == "" || r.LatencyMS < bestLatency {
			s.FastestFormat = f
			bestLatency = r.LatencyMS
		}
		if s.ShortestAnswerFormat == "" || len(r.Answer) < shortest {
			s.ShortestAnswerFormat = f
			shortest = len(r.Answer)
		}
		if r.InputTokens > 0 {
			s.TokenEfficiency[f] = float64(r.OutputTokens) / float64(r.InputTokens)
		}
	}

	return s, nil
}
