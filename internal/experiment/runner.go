package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/llm"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/metrics"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
	"github.com/mosaictheory-jt/unstructured-analytics/pkg/retry"
)

const systemPrompt = `You are a data analyst assistant. Answer the question based solely on the provided data.
Be precise and concise. If you need to perform calculations, show your reasoning briefly.
Give a direct answer first, then explain if needed.`

// promptSeparator joins the data section and the question.
const promptSeparator = "\n\n---\n\n"

var dataIntro = map[represent.Format]string{
	represent.FormatRawCSV:           "Here is the data in CSV format:",
	represent.FormatCSVWithMetadata:  "Here is the data in CSV format with schema metadata:",
	represent.FormatEnglishNarrative: "Here is the e-commerce data described in natural language:",
}

// Options tune one run.
type Options struct {
	Model       string
	Temperature float32
}

// Config configures a Runner.
type Config struct {
	Client llm.Client
	Logger *slog.Logger
	Clock  clockwork.Clock

	// DefaultModel is used when a run does not name one.
	DefaultModel string

	// EnableRetry allows one bounded retry with backoff on transient
	// failures (timeout, rate limit). Permanent failures are never retried.
	EnableRetry bool
	Retry       retry.Config
}

// Runner issues the same question against one or more representations of
// the shared dataset and records comparable metrics. The representation
// texts are built once at construction; run latency measures only the LLM
// call boundary.
type Runner struct {
	cfg   Config
	texts map[represent.Format]string
}

// NewRunner builds the three representation texts from the model and wires
// the runner.
func NewRunner(m *dataset.Model, cfg Config) (*Runner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("experiment: llm client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = llm.DefaultModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	texts, err := represent.BuildAll(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build representations: %w", err)
	}
	return &Runner{cfg: cfg, texts: texts}, nil
}

// RepresentationText returns the prebuilt text for one format. This is the
// same text used in prompts; any preview truncation is a presentation
// concern, not a core one.
func (r *Runner) RepresentationText(f represent.Format) (string, bool) {
	text, ok := r.texts[f]
	return text, ok
}

// Prompt assembles the full user prompt for one format and question.
func (r *Runner) Prompt(f represent.Format, question string) string {
	return dataIntro[f] + "\n\n" + r.texts[f] +
		promptSeparator +
		"Question: " + question + "\n\nPlease provide your answer:"
}

// RunSingle issues one prompt for one representation and measures
// wall-clock latency around the call boundary only; when a transient
// failure is retried, LatencyMS covers the last attempt. The outcome,
// including any classified failure, is carried on the returned RunResult.
func (r *Runner) RunSingle(ctx context.Context, question string, format represent.Format, opts Options) *RunResult {
	model := opts.Model
	if model == "" {
		model = r.cfg.DefaultModel
	}

	result := &RunResult{
		ID:       uuid.NewString(),
		Question: question,
		Format:   format,
		Status:   StatusPending,
		Model:    model,
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      r.Prompt(format, question),
		Model:       model,
		Temperature: opts.Temperature,
	}

	r.cfg.Logger.Info("experiment run starting", "runID", result.ID, "format", format, "model", model)
	result.Status = StatusRunning

	// Latency is measured per attempt so a retried run reports the final
	// call boundary only, never the backoff sleep.
	var answer *llm.Answer
	var callLatency time.Duration
	err := r.withRetry(ctx, func() error {
		start := r.cfg.Clock.Now()
		var callErr error
		answer, callErr = r.cfg.Client.Answer(ctx, req)
		callLatency = r.cfg.Clock.Since(start)
		return callErr
	})
	result.LatencyMS = float64(callLatency.Microseconds()) / 1000

	if err != nil {
		ce := llm.Classify(err)
		result.Status = StatusFailed
		result.Error = ce.Error()
		result.ErrorKind = ce.Kind
		metrics.RecordExperimentRun(string(format), false)
		r.cfg.Logger.Error("experiment run failed", "runID", result.ID, "format", format, "kind", ce.Kind, "error", err)
		return result
	}

	result.Status = StatusSucceeded
	result.Answer = answer.Text
	result.InputTokens = answer.InputTokens
	result.OutputTokens = answer.OutputTokens
	if answer.Model != "" {
		result.Model = answer.Model
	}
	metrics.RecordExperimentRun(string(format), true)
	r.cfg.Logger.Info("experiment run completed",
		"runID", result.ID,
		"format", format,
		"latencyMS", result.LatencyMS,
		"inputTokens", result.InputTokens,
		"outputTokens", result.OutputTokens,
	)
	return result
}

func (r *Runner) withRetry(ctx context.Context, fn func() error) error {
	if !r.cfg.EnableRetry {
		return fn()
	}
	return retry.Do(ctx, r.cfg.Retry, func(err error) bool {
		ce := llm.Classify(err)
		return ce != nil && ce.Transient()
	}, fn)
}

// RunCompare issues the same question once per representation kind,
// concurrently, and returns an entry for every format. One representation's
// failure never aborts the others; cancellation of ctx abandons all
// outstanding calls for this comparison only.
func (r *Runner) RunCompare(ctx context.Context, question string, opts Options) *ComparisonResult {
	formats := represent.Formats()
	results := make([]*RunResult, len(formats))

	g := new(errgroup.Group)
	g.SetLimit(len(formats))
	for i, f := range formats {
		g.Go(func() error {
			results[i] = r.RunSingle(ctx, question, f, opts)
			return nil
		})
	}
	_ = g.Wait()

	cr := &ComparisonResult{
		Question: question,
		Results:  make(map[represent.Format]*RunResult, len(formats)),
	}
	for i, f := range formats {
		cr.Results[f] = results[i]
	}
	metrics.ComparisonsTotal.Inc()
	return cr
}
