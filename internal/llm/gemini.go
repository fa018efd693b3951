package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/metrics"
)

// APIKeyEnv is the required credential variable. Its absence is a fatal
// startup condition, not a per-request error.
const APIKeyEnv = "GOOGLE_API_KEY"

// GeminiClient implements Client using the Gemini API.
type GeminiClient struct {
	client *genai.Client
	log    *slog.Logger
}

// NewGeminiClient creates a Gemini-backed client. It fails when the
// GOOGLE_API_KEY credential is missing from the environment.
func NewGeminiClient(ctx context.Context, log *slog.Logger) (*GeminiClient, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s is not set", APIKeyEnv)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, log: log}, nil
}

// Answer sends one prompt to Gemini and returns the response text with
// token usage. Failures come back as classified ClientErrors.
func (c *GeminiClient) Answer(ctx context.Context, req Request) (*Answer, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	span := sentry.StartSpan(ctx, "gen_ai.chat", sentry.WithDescription(fmt.Sprintf("chat %s", model)))
	span.SetData("gen_ai.operation.name", "chat")
	span.SetData("gen_ai.request.model", model)
	span.SetData("gen_ai.system", "gemini")
	ctx = span.Context()
	defer span.Finish()

	start := time.Now()
	c.log.Info("Gemini API call starting", "model", model, "promptLen", len(req.Prompt))

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)

	duration := time.Since(start)
	metrics.RecordGeminiRequest(model, duration, err)
	if err != nil {
		ce := Classify(fmt.Errorf("gemini API error: %w", err))
		c.log.Error("Gemini API call failed", "model", model, "duration", duration, "kind", ce.Kind, "error", err)
		span.Status = sentry.SpanStatusInternalError
		return nil, ce
	}

	text := resp.Text()
	var inputTokens, outputTokens int64
	if resp.UsageMetadata != nil {
		inputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}

	c.log.Info("Gemini API call completed",
		"model", model,
		"duration", duration,
		"inputTokens", inputTokens,
		"outputTokens", outputTokens,
	)
	metrics.RecordGeminiTokens(inputTokens, outputTokens)

	span.SetData("gen_ai.usage.input_tokens", inputTokens)
	span.SetData("gen_ai.usage.output_tokens", outputTokens)

	return &Answer{
		Text:         text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        model,
	}, nil
}

// statusCode extracts an HTTP status code from a Gemini API error, or any
// error exposing a StatusCode method.
func statusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	type hasStatusCode interface {
		StatusCode() int
	}
	var sc hasStatusCode
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}
