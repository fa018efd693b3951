package experiment_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/experiment"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/llm"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
	"github.com/mosaictheory-jt/unstructured-analytics/pkg/logger"
	"github.com/mosaictheory-jt/unstructured-analytics/pkg/retry"
)

func testModel(t *testing.T) *dataset.Model {
	t.Helper()
	m, err := dataset.LoadSource(dataset.Source{
		Customers: strings.NewReader("customer_id,name,segment\n" +
			"C1,Emily Nakamura,VIP\nC2,Robert Kim,Standard\n"),
		Suppliers: strings.NewReader("supplier_id,name\nS1,TechWorld Distribution\n"),
		Products: strings.NewReader("product_id,name,category,price,supplier_id\n" +
			"P1,Wireless Mouse,Electronics,10.00,S1\n" +
			"P2,Green Tea,Grocery,5.00,\n" +
			"P3,Notebook,Stationery,7.50,S1\n"),
		Orders: strings.NewReader("order_id,customer_id,order_date,status\n" +
			"O1,C1,2024-01-05,Delivered\nO2,C2,2024-01-09,Pending\n"),
		OrderItems: strings.NewReader("order_id,product_id,quantity,unit_price\n" +
			"O1,P1,2,10.00\nO1,P2,1,5.00\nO2,P3,3,7.50\n"),
	})
	require.NoError(t, err)
	return m
}

// mockClient scripts per-call behavior and records every request.
type mockClient struct {
	mu       sync.Mutex
	requests []llm.Request
	answer   func(ctx context.Context, req llm.Request) (*llm.Answer, error)
}

func (c *mockClient) Answer(ctx context.Context, req llm.Request) (*llm.Answer, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	return c.answer(ctx, req)
}

func (c *mockClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func okAnswer(text string) func(context.Context, llm.Request) (*llm.Answer, error) {
	return func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		return &llm.Answer{Text: text, InputTokens: 1200, OutputTokens: 40, Model: req.Model}, nil
	}
}

func newRunner(t *testing.T, cfg experiment.Config) *experiment.Runner {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logger.NewTest()
	}
	r, err := experiment.NewRunner(testModel(t), cfg)
	require.NoError(t, err)
	return r
}

func TestRunSingle_Success(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	client := &mockClient{}
	client.answer = func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		clock.Advance(150 * time.Millisecond)
		return okAnswer("The total revenue is 47.50.")(ctx, req)
	}
	r := newRunner(t, experiment.Config{Client: client, Clock: clock})

	result := r.RunSingle(context.Background(), "total revenue?", represent.FormatRawCSV, experiment.Options{})

	require.Equal(t, experiment.StatusSucceeded, result.Status)
	require.True(t, result.Succeeded())
	require.Equal(t, "The total revenue is 47.50.", result.Answer)
	require.Greater(t, result.LatencyMS, 0.0)
	require.InDelta(t, 150.0, result.LatencyMS, 0.001)
	require.Greater(t, result.InputTokens, int64(0))
	require.Equal(t, llm.DefaultModel, result.Model)
	require.NotEmpty(t, result.ID)
	require.Empty(t, result.Error)
}

func TestRunSingle_PromptAssembly(t *testing.T) {
	t.Parallel()
	client := &mockClient{answer: okAnswer("ok")}
	r := newRunner(t, experiment.Config{Client: client})

	r.RunSingle(context.Background(), "total revenue?", represent.FormatEnglishNarrative, experiment.Options{Model: "gemini-2.5-pro"})

	require.Equal(t, 1, client.callCount())
	req := client.requests[0]
	require.Equal(t, "gemini-2.5-pro", req.Model)
	require.Contains(t, req.System, "data analyst assistant")
	require.Contains(t, req.Prompt, "described in natural language")
	require.Contains(t, req.Prompt, "Emily Nakamura ordered 2 x Wireless Mouse")
	require.Contains(t, req.Prompt, "\n\n---\n\nQuestion: total revenue?")
	require.True(t, strings.HasSuffix(req.Prompt, "Please provide your answer:"))
}

func TestRunSingle_FailureCarriesClassifiedCause(t *testing.T) {
	t.Parallel()
	client := &mockClient{answer: func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		return nil, &llm.ClientError{Kind: llm.ErrAuth, Err: errors.New("invalid api key")}
	}}
	r := newRunner(t, experiment.Config{Client: client})

	result := r.RunSingle(context.Background(), "q", represent.FormatRawCSV, experiment.Options{})

	require.Equal(t, experiment.StatusFailed, result.Status)
	require.Equal(t, llm.ErrAuth, result.ErrorKind)
	require.Contains(t, result.Error, "invalid api key")
	require.Empty(t, result.Answer, "a failed run must never carry a fabricated answer")
}

func TestRunCompare_AllSucceed(t *testing.T) {
	t.Parallel()
	client := &mockClient{answer: okAnswer("47.50")}
	r := newRunner(t, experiment.Config{Client: client})

	cr := r.RunCompare(context.Background(), "total revenue?", experiment.Options{})

	require.Len(t, cr.Results, 3)
	for _, f := range represent.Formats() {
		res := cr.Results[f]
		require.NotNil(t, res, "missing entry for %s", f)
		require.Equal(t, f, res.Format)
		require.Equal(t, experiment.StatusSucceeded, res.Status)
		require.Greater(t, res.InputTokens, int64(0))
	}
	require.Equal(t, 3, client.callCount())
}

func TestRunCompare_PartialFailureIsIsolated(t *testing.T) {
	t.Parallel()
	client := &mockClient{}
	client.answer = func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		if strings.Contains(req.Prompt, "described in natural language") {
			return nil, &llm.ClientError{Kind: llm.ErrTimeout, Err: context.DeadlineExceeded}
		}
		return okAnswer("47.50")(ctx, req)
	}
	r := newRunner(t, experiment.Config{Client: client})

	cr := r.RunCompare(context.Background(), "total revenue?", experiment.Options{})

	require.Len(t, cr.Results, 3)
	require.Equal(t, experiment.StatusSucceeded, cr.Results[represent.FormatRawCSV].Status)
	require.Equal(t, experiment.StatusSucceeded, cr.Results[represent.FormatCSVWithMetadata].Status)

	failed := cr.Results[represent.FormatEnglishNarrative]
	require.Equal(t, experiment.StatusFailed, failed.Status)
	require.Equal(t, llm.ErrTimeout, failed.ErrorKind)
}

func TestRunSingle_TransientErrorRetriedOnce(t *testing.T) {
	t.Parallel()
	var calls int
	var mu sync.Mutex
	client := &mockClient{answer: func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return nil, &llm.ClientError{Kind: llm.ErrRateLimit, Err: errors.New("quota exceeded")}
		}
		return okAnswer("ok")(ctx, req)
	}}
	r := newRunner(t, experiment.Config{
		Client:      client,
		EnableRetry: true,
		Retry:       retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})

	result := r.RunSingle(context.Background(), "q", represent.FormatRawCSV, experiment.Options{})

	require.Equal(t, experiment.StatusSucceeded, result.Status)
	require.Equal(t, 2, client.callCount())
}

func TestRunSingle_RetriedRunReportsFinalAttemptLatency(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	var calls int
	var mu sync.Mutex
	client := &mockClient{answer: func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			clock.Advance(400 * time.Millisecond)
			return nil, &llm.ClientError{Kind: llm.ErrRateLimit, Err: errors.New("quota exceeded")}
		}
		clock.Advance(150 * time.Millisecond)
		return okAnswer("ok")(ctx, req)
	}}
	r := newRunner(t, experiment.Config{
		Client:      client,
		Clock:       clock,
		EnableRetry: true,
		Retry:       retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})

	result := r.RunSingle(context.Background(), "q", represent.FormatRawCSV, experiment.Options{})

	require.Equal(t, experiment.StatusSucceeded, result.Status)
	require.Equal(t, 2, client.callCount())
	// The failed first attempt and the backoff sleep are excluded.
	require.InDelta(t, 150.0, result.LatencyMS, 0.001)
}

func TestRunSingle_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()
	client := &mockClient{answer: func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		return nil, &llm.ClientError{Kind: llm.ErrAuth, Err: errors.New("bad key")}
	}}
	r := newRunner(t, experiment.Config{
		Client:      client,
		EnableRetry: true,
		Retry:       retry.Config{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})

	result := r.RunSingle(context.Background(), "q", represent.FormatRawCSV, experiment.Options{})

	require.Equal(t, experiment.StatusFailed, result.Status)
	require.Equal(t, llm.ErrAuth, result.ErrorKind)
	require.Equal(t, 1, client.callCount(), "auth failures must not be retried")
}

func TestRunCompare_CancellationPropagates(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	client := &mockClient{answer: func(ctx context.Context, req llm.Request) (*llm.Answer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newRunner(t, experiment.Config{Client: client})

	done := make(chan *experiment.ComparisonResult, 1)
	go func() { done <- r.RunCompare(ctx, "q", experiment.Options{}) }()

	cancel()
	select {
	case cr := <-done:
		require.Len(t, cr.Results, 3)
		for _, res := range cr.Results {
			require.Equal(t, experiment.StatusFailed, res.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("compare did not return after cancellation")
	}
}

func TestRepresentationText(t *testing.T) {
	t.Parallel()
	r := newRunner(t, experiment.Config{Client: &mockClient{answer: okAnswer("ok")}})

	text, ok := r.RepresentationText(represent.FormatRawCSV)
	require.True(t, ok)
	require.Contains(t, text, "=== TABLE: customers ===")

	_, ok = r.RepresentationText("json")
	require.False(t, ok)
}
