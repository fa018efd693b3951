// Package server exposes the dataset representations and the experiment
// harness over HTTP. Validation failures are rejected before any LLM call
// is attempted.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/mosaictheory-jt/unstructured-analytics/internal/dataset"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/experiment"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/llm"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/metrics"
	"github.com/mosaictheory-jt/unstructured-analytics/internal/represent"
)

// Config holds the server configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Server is the HTTP API over the shared dataset model and runner.
type Server struct {
	router *chi.Mux
	log    *slog.Logger
	model  *dataset.Model
	mirror *dataset.SQLMirror
	runner *experiment.Runner
	cfg    Config
	srv    *http.Server

	experimentLimiter *RateLimiter
	queryLimiter      *RateLimiter
}

// New wires the router. The model, mirror, and runner are built once at
// startup and shared read-only across requests.
func New(cfg Config, log *slog.Logger, model *dataset.Model, mirror *dataset.SQLMirror, runner *experiment.Runner) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    log,
		model:  model,
		mirror: mirror,
		runner: runner,
		cfg:    cfg,
		// Experiment requests cost upstream model quota, so they get a much
		// tighter budget than ad-hoc SQL queries.
		experimentLimiter: NewRateLimiter(rate.Every(time.Minute/30), 5),
		queryLimiter:      NewRateLimiter(rate.Every(time.Minute/100), 20),
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Experiment requests block on the upstream model call.
		WriteTimeout:   cfg.RequestTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", "error", err)
		}
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/data/preview", s.handlePreview)
		r.Get("/data/schema", s.handleSchema)
		r.Get("/data/tables/{table}", s.handleTable)
		r.With(RateLimitMiddleware(s.queryLimiter)).Post("/data/query", s.handleQuery)
		r.Get("/questions", s.handleQuestions)
		r.Get("/models", s.handleModels)
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.experimentLimiter))
			r.Post("/experiment/single", s.handleExperimentSingle)
			r.Post("/experiment/compare", s.handleExperimentCompare)
		})
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: http listening", "address", s.cfg.Addr)

	select {
	case <-ctx.Done():
		s.log.Info("server: stopping", "reason", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	case err := <-serveErrCh:
		return err
	}
}

// --- handlers ---

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	texts := make(map[represent.Format]string, len(represent.Formats()))
	for _, f := range represent.Formats() {
		text, ok := s.runner.RepresentationText(f)
		if !ok {
			s.writeError(w, http.StatusInternalServerError, "missing representation "+string(f))
			return
		}
		texts[f] = text
	}

	counts := make(map[string]int, len(dataset.TableOrder))
	for _, table := range dataset.TableOrder {
		counts[table] = s.model.RowCount(table)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"representations": texts,
		"table_counts":    counts,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"schema": s.model.Schema()})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	rows, ok := s.model.TableRows(table)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("table %q not found", table))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"table_name": table,
		"columns":    dataset.Headers[table],
		"rows":       rows,
		"row_count":  len(rows),
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.mirror.Query(r.Context(), req.Query))
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"questions": experiment.Questions()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"models": llm.AvailableModels()})
}

type experimentRequest struct {
	QuestionID   string  `json:"question_id,omitempty"`
	QuestionText string  `json:"question_text,omitempty"`
	Format       string  `json:"format,omitempty"`
	Model        string  `json:"model,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
}

// resolve validates the request and returns the question text to ask.
func (req *experimentRequest) resolve() (string, error) {
	if req.Model != "" && !llm.KnownModel(req.Model) {
		return "", fmt.Errorf("unknown model %q", req.Model)
	}
	if req.QuestionID != "" {
		q, err := experiment.QuestionByID(req.QuestionID)
		if err != nil {
			return "", err
		}
		return q.Text, nil
	}
	if req.QuestionText == "" {
		return "", errors.New("question_id or question_text is required")
	}
	return req.QuestionText, nil
}

func (s *Server) handleExperimentSingle(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	format, err := represent.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	question, err := req.resolve()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.runner.RunSingle(r.Context(), question, format, experiment.Options{
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExperimentCompare(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Format != "" {
		s.writeError(w, http.StatusBadRequest, "compare runs every format; do not pass one")
		return
	}
	question, err := req.resolve()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cr := s.runner.RunCompare(r.Context(), question, experiment.Options{
		Model:       req.Model,
		Temperature: req.Temperature,
	})

	summary, err := experiment.Summarize(cr)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"question": cr.Question,
		"results":  cr.Results,
		"summary":  summary,
	})
}

// --- response helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
